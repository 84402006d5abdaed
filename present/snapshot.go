package present

import (
	"image"
	"image/png"
	"io"
	"os"
	"sync"

	"github.com/wippyai/simhost/errors"
)

// Snapshot keeps the most recent frame and can write it as a PNG.
type Snapshot struct {
	last   []byte
	width  uint32
	height uint32
	count  uint64
	mu     sync.Mutex
}

// NewSnapshot creates a snapshot presenter for width x height frames.
func NewSnapshot(width, height uint32) *Snapshot {
	return &Snapshot{width: width, height: height}
}

// Present implements driver.Presenter.
func (s *Snapshot) Present(frame []byte) error {
	if err := checkFrame(frame, s.width, s.height); err != nil {
		return err
	}
	s.mu.Lock()
	s.last = append(s.last[:0], frame...)
	s.count++
	s.mu.Unlock()
	return nil
}

// Frame returns a copy of the last frame, or nil before the first.
func (s *Snapshot) Frame() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	return append([]byte(nil), s.last...)
}

// Count returns the number of frames seen.
func (s *Snapshot) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Image returns the last frame as an image.
func (s *Snapshot) Image() (*image.NRGBA, error) {
	frame := s.Frame()
	if frame == nil {
		return nil, errors.New(errors.PhasePresent, errors.KindNotFound).Detail("no frame presented yet").Build()
	}
	img := image.NewNRGBA(image.Rect(0, 0, int(s.width), int(s.height)))
	copy(img.Pix, frame)
	return img, nil
}

// WritePNG encodes the last frame to w.
func (s *Snapshot) WritePNG(w io.Writer) error {
	img, err := s.Image()
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// SavePNG writes the last frame to path.
func (s *Snapshot) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.WritePNG(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
