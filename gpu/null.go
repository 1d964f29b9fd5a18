package gpu

import (
	"sync"

	"github.com/gogpu/termcore/frame"
	"github.com/gogpu/termcore/glyph"
)

// NullSurface is a Surface that records every call instead of touching a
// GPU. It backs headless operation and the render loop tests; LoseNext
// scripts surface-lost failures to exercise recovery paths.
type NullSurface struct {
	mu        sync.Mutex
	uploads   []glyph.Uploads
	submitted []*frame.CommandList
	presented int
	width     int
	height    int
	mode      PresentMode
	released  bool
	loseNext  int
}

// NewNullSurface creates a recording surface with the given initial size.
func NewNullSurface(width, height int) *NullSurface {
	return &NullSurface{width: width, height: height}
}

// LoseNext makes the next n Submit calls fail with ErrSurfaceLost.
func (s *NullSurface) LoseNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loseNext = n
}

// UploadAtlas records the upload.
func (s *NullSurface) UploadAtlas(up glyph.Uploads) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, up)
	return nil
}

// Submit validates and records the command list. The list is retained as
// given; callers that mutate lists between frames should not also inspect
// old recordings.
func (s *NullSurface) Submit(list *frame.CommandList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loseNext > 0 {
		s.loseNext--
		return ErrSurfaceLost
	}
	if err := list.Validate(); err != nil {
		return err
	}
	s.submitted = append(s.submitted, list)
	return nil
}

// Present counts the flip.
func (s *NullSurface) Present() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presented++
	return nil
}

// Resize records the new size.
func (s *NullSurface) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
	return nil
}

// SetPresentMode records the pacing mode.
func (s *NullSurface) SetPresentMode(mode PresentMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	return nil
}

// Release marks the surface released.
func (s *NullSurface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
}

// Submitted returns the recorded command lists.
func (s *NullSurface) Submitted() []*frame.CommandList {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*frame.CommandList, len(s.submitted))
	copy(out, s.submitted)
	return out
}

// AtlasUploads returns the recorded atlas uploads.
func (s *NullSurface) AtlasUploads() []glyph.Uploads {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]glyph.Uploads, len(s.uploads))
	copy(out, s.uploads)
	return out
}

// Presented returns the number of Present calls.
func (s *NullSurface) Presented() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

// Size returns the last recorded size.
func (s *NullSurface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Mode returns the last recorded present mode.
func (s *NullSurface) Mode() PresentMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Released reports whether Release was called.
func (s *NullSurface) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

var _ Surface = (*NullSurface)(nil)
