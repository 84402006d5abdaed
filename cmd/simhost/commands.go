package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/simhost/errors"
	"github.com/wippyai/simhost/internal/demo"
	"github.com/wippyai/simhost/runtime"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		bootImage string
		snapshot  string
		frames    uint64
		cycles    uint32
		scale     int
		headless  bool
	)

	cmd := &cobra.Command{
		Use:   "run [module.wasm]",
		Short: "Run a guest module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if len(args) == 1 {
				cfg.Module.Path = args[0]
			}
			flags := cmd.Flags()
			if flags.Changed("boot-image") {
				cfg.Module.BootImage = bootImage
			}
			if flags.Changed("snapshot") {
				cfg.Run.Snapshot = snapshot
			}
			if flags.Changed("frames") {
				cfg.Run.Frames = frames
			}
			if flags.Changed("cycles") {
				cfg.Timing.CyclesPerTick = cycles
			}
			if flags.Changed("scale") {
				cfg.Display.Scale = scale
			}
			if flags.Changed("headless") {
				cfg.Run.Headless = headless
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Module.Path == "" {
				return errors.InvalidConfig("no module given: pass a path or set [module] path", nil)
			}

			image, err := runtime.LoadImage(cfg.Module.Path)
			if err != nil {
				return err
			}

			var boot []byte
			if cfg.Module.BootImage != "" {
				boot, err = os.ReadFile(cfg.Module.BootImage)
				if err != nil {
					return errors.Load("read boot image "+cfg.Module.BootImage, err)
				}
			}

			return a.session(cmd.Context(), cmd.OutOrStdout(), cfg.Module.Path, image, boot)
		},
	}

	f := cmd.Flags()
	f.StringVar(&bootImage, "boot-image", "", "boot image written where the guest asks for it")
	f.StringVar(&snapshot, "snapshot", "", "write the last frame to this PNG file")
	f.Uint64Var(&frames, "frames", 0, "stop after this many ticks (0 = until halted); headless runs unpaced when set")
	f.Uint32Var(&cycles, "cycles", 0, "guest cycles per tick (0 = clock / refresh)")
	f.IntVar(&scale, "scale", 1, "terminal downscale factor")
	f.BoolVar(&headless, "headless", false, "no terminal UI")
	return cmd
}

func newImportsCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "imports module.wasm",
		Short: "Show how a module's imports resolve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := runtime.LoadImage(args[0])
			if err != nil {
				return err
			}
			rep, err := runtime.Inspect(cmd.Context(), image)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imports (%d, %d stubbed):\n", rep.Table.Len(), len(rep.Table.Stubs()))
			fmt.Fprint(out, rep.Table.Describe())
			fmt.Fprintf(out, "\nExports:\n")
			for _, name := range rep.Exports {
				fmt.Fprintf(out, "  %s\n", name)
			}
			if !rep.ExportsMemory {
				fmt.Fprintln(out, "\nwarning: module exports no memory; frames cannot be read")
			}
			return nil
		},
	}
}

func newDemoCmd(a *app) *cobra.Command {
	var (
		frames   uint64
		headless bool
		snapshot string
		blue     uint8
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the built-in gradient guest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			cfg.Display.Width, cfg.Display.Height = demo.Width, demo.Height
			if cmd.Flags().Changed("frames") {
				cfg.Run.Frames = frames
			}
			if cmd.Flags().Changed("headless") {
				cfg.Run.Headless = headless
			}
			if cmd.Flags().Changed("snapshot") {
				cfg.Run.Snapshot = snapshot
			}
			return a.session(cmd.Context(), cmd.OutOrStdout(), "demo", demo.Image(), demo.BootImage(blue))
		},
	}

	f := cmd.Flags()
	f.Uint64Var(&frames, "frames", 0, "stop after this many ticks")
	f.BoolVar(&headless, "headless", false, "no terminal UI")
	f.StringVar(&snapshot, "snapshot", "", "write the last frame to this PNG file")
	f.Uint8Var(&blue, "blue", 0x40, "base blue level from the boot image")
	return cmd
}
