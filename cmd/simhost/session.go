package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/simhost/config"
	"github.com/wippyai/simhost/diag"
	"github.com/wippyai/simhost/driver"
	"github.com/wippyai/simhost/input"
	"github.com/wippyai/simhost/present"
	"github.com/wippyai/simhost/runtime"
	"github.com/wippyai/simhost/tui"
)

// chromeRows is the terminal height taken by everything but the frame.
const chromeRows = tui.LogLines + 8

// session runs one guest to completion, interactively when stdout is a
// terminal and the config does not ask for headless.
func (a *app) session(ctx context.Context, out io.Writer, title string, image, boot []byte) error {
	cfg := a.cfg
	fd := int(os.Stdout.Fd())
	interactive := !cfg.Run.Headless && term.IsTerminal(fd)

	if interactive && a.logFile == "" {
		// Host logs would tear the alternate screen; the TUI shows guest records.
		a.setLogger(zap.NewNop())
	}

	logs := diag.NewRecorder(tui.LogLines)
	sink := diag.Tee(diag.NewZapSink(a.logger.Named("guest")), logs)
	snapshot := present.NewSnapshot(cfg.Display.Width, cfg.Display.Height)

	var (
		screen    *present.Terminal
		pad       *input.State
		presenter driver.Presenter = snapshot
	)
	opts := runtime.Options{Config: cfg, Sink: sink, BootImage: boot}
	if interactive {
		screen = present.NewTerminal(cfg.Display.Width, cfg.Display.Height, fitScale(fd, cfg))
		pad = input.NewState(input.DefaultHoldFrames)
		presenter = present.Multi(screen, snapshot)
		opts.Input = pad
	}
	opts.Presenter = presenter

	host, err := runtime.Load(ctx, image, opts)
	if err != nil {
		return err
	}
	defer host.Close(ctx)

	if err := host.Driver().Start(ctx); err != nil {
		return err
	}

	if interactive {
		m, err := tui.Run(ctx, tui.Options{
			Title:    title,
			Driver:   host.Driver(),
			Screen:   screen,
			Pad:      pad,
			Logs:     logs,
			Keys:     input.DefaultKeyMap(),
			Period:   driver.Period(cfg.Timing.RefreshHz),
			MaxTicks: cfg.Run.Frames,
		})
		if err == nil {
			err = host.Driver().Err()
		}
		if err == nil && m.Halted() {
			err = m.Err()
		}
		a.finish(out, host, snapshot)
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	var sched driver.Scheduler = driver.Immediate{}
	if cfg.Run.Frames == 0 {
		clock := driver.NewFrameClock(cfg.Timing.RefreshHz)
		defer clock.Stop()
		sched = clock
	}
	err = host.Driver().RunFrames(ctx, sched, cfg.Run.Frames)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	a.finish(out, host, snapshot)
	return err
}

func (a *app) finish(out io.Writer, host *runtime.Host, snapshot *present.Snapshot) {
	st := host.Driver().Stats()
	fmt.Fprintf(out, "session %s: %s after %d ticks, %d frames, %d cycles\n",
		host.Driver().Session().ID, st.State, st.Ticks, st.Frames, st.Cycles)

	path := a.cfg.Run.Snapshot
	if path == "" || snapshot.Count() == 0 {
		return
	}
	if err := snapshot.SavePNG(path); err != nil {
		a.logger.Warn("snapshot not written", zap.String("path", path), zap.Error(err))
		return
	}
	fmt.Fprintf(out, "last frame written to %s\n", path)
}

// fitScale returns the configured scale, raised until the frame fits the terminal.
func fitScale(fd int, cfg *config.Config) int {
	scale := cfg.Display.Scale
	cols, rows, err := term.GetSize(fd)
	if err != nil || cols <= 0 || rows <= chromeRows {
		return scale
	}
	w, h := int(cfg.Display.Width), int(cfg.Display.Height)
	for scale < 8 && ((w+scale-1)/scale > cols || (h+2*scale-1)/(2*scale) > rows-chromeRows) {
		scale++
	}
	return scale
}
