package demo

import (
	"context"
	"testing"

	"github.com/wippyai/simhost/config"
	"github.com/wippyai/simhost/diag"
	"github.com/wippyai/simhost/driver"
	"github.com/wippyai/simhost/input"
	"github.com/wippyai/simhost/present"
	"github.com/wippyai/simhost/runtime"
)

func TestDemo_SixtyFrames(t *testing.T) {
	ctx := context.Background()

	frames := present.NewRecorder(Width, Height, 1)
	logs := diag.NewRecorder(0)
	pad := input.NewState(0)
	pad.Press(input.B)

	host, err := runtime.Load(ctx, Image(), runtime.Options{
		Config:    config.Default(),
		Sink:      logs,
		Presenter: frames,
		Input:     pad,
		BootImage: BootImage(0x10),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer host.Close(ctx)

	if n := len(host.Table().Stubs()); n != 0 {
		t.Errorf("demo guest has %d stubbed imports", n)
	}

	d := host.Driver()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.RunFrames(ctx, driver.Immediate{}, 60); err != nil {
		t.Fatalf("RunFrames: %v", err)
	}

	last := frames.Frames()[0]
	if len(last) != Width*Height*4 {
		t.Fatalf("frame size %d", len(last))
	}
	for _, pt := range []struct{ x, y int }{{0, 0}, {3, 2}, {159, 143}} {
		i := (pt.y*Width + pt.x) * 4
		want := Pixel(pt.x, pt.y, 60, uint32(input.B), 0x10)
		got := [4]byte{last[i], last[i+1], last[i+2], last[i+3]}
		if got != want {
			t.Errorf("pixel (%d,%d) = %v, want %v", pt.x, pt.y, got, want)
		}
	}

	records := logs.Records()
	if len(records) != 2 {
		t.Fatalf("records = %v", records)
	}
	if records[0].Text != ReadyMessage || records[1].Text != SixtyMessage || records[1].Tick != 60 {
		t.Errorf("records = %+v", records)
	}
}
