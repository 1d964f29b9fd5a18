package glyph

import "image"

// shelfPacker packs glyph bitmaps into the atlas using horizontal shelves.
// Each shelf has a fixed height set by the tallest bitmap placed on it; new
// bitmaps go left-to-right until the shelf is full, then a new shelf opens
// below. Freed rectangles are kept on a free list and reused first, which
// suits a terminal workload where glyph bitmaps are near-uniform in size.
type shelfPacker struct {
	width   int
	height  int
	padding int
	shelves []shelf

	// freeRects holds rectangles returned by eviction, reused before any
	// new shelf space is consumed.
	freeRects []image.Rectangle

	usedArea int
}

type shelf struct {
	y      int // top of the shelf
	height int // tallest bitmap placed so far
	x      int // next free x position
}

func newShelfPacker(width, height, padding int) *shelfPacker {
	return &shelfPacker{
		width:   width,
		height:  height,
		padding: padding,
		shelves: make([]shelf, 0, 16),
	}
}

// allocate finds space for a w×h bitmap. Returns the placed rectangle and
// false if no space remains.
func (p *shelfPacker) allocate(w, h int) (image.Rectangle, bool) {
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, false
	}

	// Reuse a freed rectangle when one fits. First fit keeps this O(n)
	// over a list that stays short in steady state.
	for i, r := range p.freeRects {
		if r.Dx() >= w && r.Dy() >= h {
			p.freeRects = append(p.freeRects[:i], p.freeRects[i+1:]...)
			placed := image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Min.Y+h)
			p.usedArea += w * h
			return placed, true
		}
	}

	paddedW := w + p.padding
	paddedH := h + p.padding

	for i := range p.shelves {
		s := &p.shelves[i]
		if s.x+paddedW > p.width {
			continue
		}
		if h > s.height {
			// Taller than the shelf; only the last shelf can grow.
			if i == len(p.shelves)-1 && s.y+paddedH <= p.height {
				s.height = h
				r := image.Rect(s.x, s.y, s.x+w, s.y+h)
				s.x += paddedW
				p.usedArea += w * h
				return r, true
			}
			continue
		}
		r := image.Rect(s.x, s.y, s.x+w, s.y+h)
		s.x += paddedW
		p.usedArea += w * h
		return r, true
	}

	// Open a new shelf below the last one.
	newY := 0
	if n := len(p.shelves); n > 0 {
		last := p.shelves[n-1]
		newY = last.y + last.height + p.padding
	}
	if newY+paddedH > p.height {
		return image.Rectangle{}, false
	}
	p.shelves = append(p.shelves, shelf{y: newY, height: h, x: paddedW})
	p.usedArea += w * h
	return image.Rect(0, newY, w, newY+h), true
}

// free returns an allocated rectangle to the packer for reuse.
func (p *shelfPacker) free(r image.Rectangle) {
	if r.Empty() {
		return
	}
	p.freeRects = append(p.freeRects, r)
	p.usedArea -= r.Dx() * r.Dy()
	if p.usedArea < 0 {
		p.usedArea = 0
	}
}

// grow extends the packer to a larger atlas. Existing shelves keep their
// positions, so resident slots stay valid; the new right and bottom margins
// become available through the normal shelf path.
func (p *shelfPacker) grow(width, height int) {
	if width > p.width {
		p.width = width
	}
	if height > p.height {
		p.height = height
	}
}

// reset clears all allocations.
func (p *shelfPacker) reset() {
	p.shelves = p.shelves[:0]
	p.freeRects = p.freeRects[:0]
	p.usedArea = 0
}

// utilization returns the fraction of atlas area in use, in [0, 1].
func (p *shelfPacker) utilization() float64 {
	if p.width <= 0 || p.height <= 0 {
		return 0
	}
	return float64(p.usedArea) / float64(p.width*p.height)
}
