// Package present holds frame consumers for the driver.
//
// Every presenter receives frames of exactly width*height*4 RGBA bytes. The
// frame slice is lent for the duration of Present; implementations that keep
// a frame copy it.
package present

import (
	"fmt"
	"sync"

	"github.com/wippyai/simhost/errors"
)

const bytesPerPixel = 4

func checkFrame(frame []byte, width, height uint32) error {
	if want := int(width) * int(height) * bytesPerPixel; len(frame) != want {
		return errors.New(errors.PhasePresent, errors.KindInvalidInput).
			Value(len(frame)).
			Detail("frame has %d bytes, want %d", len(frame), want).
			Build()
	}
	return nil
}

// Discard accepts and drops every frame.
type Discard struct{}

// Present implements driver.Presenter.
func (Discard) Present([]byte) error { return nil }

// Recorder keeps copies of the most recent frames.
type Recorder struct {
	frames [][]byte
	width  uint32
	height uint32
	limit  int
	total  uint64
	mu     sync.Mutex
}

// NewRecorder keeps up to limit frames; 0 keeps all.
func NewRecorder(width, height uint32, limit int) *Recorder {
	return &Recorder{width: width, height: height, limit: limit}
}

// Present implements driver.Presenter.
func (r *Recorder) Present(frame []byte) error {
	if err := checkFrame(frame, r.width, r.height); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, append([]byte(nil), frame...))
	if r.limit > 0 && len(r.frames) > r.limit {
		r.frames = r.frames[1:]
	}
	r.total++
	return nil
}

// Frames returns the kept frames, oldest first.
func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.frames...)
}

// Total counts every frame ever presented.
func (r *Recorder) Total() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Presenter is the driver's frame consumer, restated to avoid an import cycle.
type Presenter interface {
	Present(frame []byte) error
}

type multi []Presenter

// Multi fans each frame out to every presenter, stopping at the first error.
func Multi(ps ...Presenter) Presenter {
	out := make(multi, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (m multi) Present(frame []byte) error {
	for i, p := range m {
		if err := p.Present(frame); err != nil {
			return fmt.Errorf("presenter %d: %w", i, err)
		}
	}
	return nil
}
