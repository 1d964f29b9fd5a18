package glyph

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
)

// CacheConfig holds configuration for the glyph Cache.
type CacheConfig struct {
	// Size is the initial atlas texture edge in pixels.
	// Must be a power of 2. Default: 1024
	Size int

	// MaxSize caps atlas growth during resize-and-retry.
	// Default: 4096
	MaxSize int

	// Padding between glyph bitmaps to prevent sampler bleeding.
	// Default: 1
	Padding int

	// PPEM is the font pixel size glyphs are rasterized at.
	// Default: 16
	PPEM float64
}

// DefaultCacheConfig returns the default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Size:    1024,
		MaxSize: 4096,
		Padding: 1,
		PPEM:    16,
	}
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Hits           atomic.Uint64
	Misses         atomic.Uint64
	Evictions      atomic.Uint64
	Rasterizations atomic.Uint64
	Fallbacks      atomic.Uint64
}

// gidKey is the internal cache key after codepoint resolution.
// GID 0 is the per-style missing-glyph box.
type gidKey struct {
	gid   uint16
	style FontStyle
	ppem  int16
}

// runeKey memoizes codepoint-to-glyph resolution.
type runeKey struct {
	r     rune
	style FontStyle
}

// entry is an internal cache entry with LRU links.
type entry struct {
	key gidKey
	ref SlotRef

	prev *entry
	next *entry

	// lastFrame is the frame number of the most recent lookup. Entries
	// with lastFrame equal to the current frame are in the pending draw
	// list and exempt from eviction.
	lastFrame uint64

	bounds image.Rectangle
}

// Uploads describes atlas texture data awaiting GPU transfer.
// Rects lists the sub-regions mutated since the last flush; Full indicates
// the whole texture must be re-uploaded (after growth or reset).
type Uploads struct {
	Data  []byte
	Size  int
	Rects []image.Rectangle
	Full  bool
}

// Cache rasterizes glyphs on demand and packs them into a CPU-side alpha
// atlas mirrored to a GPU texture. Lookups are O(1); misses rasterize,
// insert, and record a pending upload rectangle. When the atlas is full the
// least-recently-used slot not referenced by the current frame is evicted
// and insertion retried; when nothing can be evicted the atlas grows up to
// MaxSize.
//
// Cache is safe for concurrent use, but the atlas upload path (TakeUploads)
// must only be driven from the goroutine that owns the GPU texture.
type Cache struct {
	mu     sync.Mutex
	config CacheConfig
	rast   Source

	size   int
	data   []byte
	packer *shelfPacker
	arena  *slotArena

	entries map[gidKey]*entry
	runes   map[runeKey]uint16

	// head is most recently used, tail least.
	head *entry
	tail *entry

	frame uint64

	pending []image.Rectangle
	full    bool

	cellW  int
	cellH  int
	ascent int

	stats CacheStats
}

// Source supplies glyph resolution, metrics, and bitmaps to the cache.
// *Rasterizer is the production implementation.
type Source interface {
	GlyphIndex(rn rune, style FontStyle) (uint16, bool)
	CellMetrics(ppem float64) (width, height, ascent int, err error)
	Rasterize(gid uint16, style FontStyle, ppem float64) (*image.Alpha, Metrics, error)
}

// NewCache creates a glyph cache over the given source.
func NewCache(rast Source, config CacheConfig) (*Cache, error) {
	if rast == nil {
		return nil, ErrNoFont
	}
	if config.Size <= 0 {
		config.Size = 1024
	}
	if config.MaxSize < config.Size {
		config.MaxSize = config.Size
	}
	if config.Padding < 0 {
		config.Padding = 1
	}
	if config.PPEM <= 0 {
		config.PPEM = 16
	}

	cellW, cellH, ascent, err := rast.CellMetrics(config.PPEM)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		config:  config,
		rast:    rast,
		size:    config.Size,
		data:    make([]byte, config.Size*config.Size),
		packer:  newShelfPacker(config.Size, config.Size, config.Padding),
		arena:   newSlotArena(256),
		entries: make(map[gidKey]*entry, 256),
		runes:   make(map[runeKey]uint16, 256),
		cellW:   cellW,
		cellH:   cellH,
		ascent:  ascent,
		full:    true, // first flush uploads the (empty) texture once
	}
	return c, nil
}

// BeginFrame starts a new frame reference scope. Slots looked up after this
// call are pinned against eviction until the next BeginFrame.
func (c *Cache) BeginFrame() {
	c.mu.Lock()
	c.frame++
	c.mu.Unlock()
}

// CellSize returns the monospace cell dimensions in pixels.
func (c *Cache) CellSize() (w, h int) {
	return c.cellW, c.cellH
}

// Ascent returns the baseline ascent in pixels.
func (c *Cache) Ascent() int {
	return c.ascent
}

// AtlasSize returns the current atlas texture edge in pixels.
func (c *Cache) AtlasSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// PPEM returns the configured font pixel size.
func (c *Cache) PPEM() float64 {
	return c.config.PPEM
}

// GetOrRasterize returns the atlas slot for a codepoint key, rasterizing on
// miss. A codepoint absent from the font resolves to the shared
// missing-glyph box for its style (recorded in Fallbacks), never an error.
// The only errors are ErrAtlasExhausted (single bitmap exceeds the maximum
// atlas) and *AtlasFullError (nothing evictable this frame).
func (c *Cache) GetOrRasterize(key Key) (SlotRef, error) {
	gid, ok := c.resolveRune(key.Rune, key.Style)
	if !ok {
		c.stats.Fallbacks.Add(1)
	}
	ppem := key.PPEM
	if ppem <= 0 {
		ppem = int16(c.config.PPEM)
	}
	return c.getOrInsert(gidKey{gid: gid, style: key.Style, ppem: ppem})
}

// GetShaped returns the atlas slot for a shaped glyph index at the cache's
// configured pixel size. Used by the layout engine for ligatures and other
// substituted forms.
func (c *Cache) GetShaped(gid uint16, style FontStyle) (SlotRef, error) {
	return c.getOrInsert(gidKey{gid: gid, style: style, ppem: int16(c.config.PPEM)})
}

// Slot resolves a weak reference. Returns false for refs invalidated by
// eviction or reset.
func (c *Cache) Slot(ref SlotRef) (AtlasSlot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.arena.resolve(ref)
}

// resolveRune memoizes codepoint-to-glyph-index resolution.
func (c *Cache) resolveRune(rn rune, style FontStyle) (uint16, bool) {
	rk := runeKey{r: rn, style: style}

	c.mu.Lock()
	gid, ok := c.runes[rk]
	c.mu.Unlock()
	if ok {
		return gid, gid != 0
	}

	gid, found := c.rast.GlyphIndex(rn, style)
	if !found {
		gid = 0
	}
	c.mu.Lock()
	c.runes[rk] = gid
	c.mu.Unlock()
	return gid, found
}

// getOrInsert is the miss/hit core shared by both lookup paths.
func (c *Cache) getOrInsert(k gidKey) (SlotRef, error) {
	c.mu.Lock()
	if e, ok := c.entries[k]; ok {
		e.lastFrame = c.frame
		c.moveToFront(e)
		ref := e.ref
		c.mu.Unlock()
		c.stats.Hits.Add(1)
		return ref, nil
	}
	c.mu.Unlock()
	c.stats.Misses.Add(1)

	// Rasterize outside the lock; the rasterizer serializes internally.
	mask, metrics, err := c.rasterizeKey(k)
	if err != nil {
		return SlotRef{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after re-acquiring: a concurrent caller may have
	// inserted the same key.
	if e, ok := c.entries[k]; ok {
		e.lastFrame = c.frame
		c.moveToFront(e)
		return e.ref, nil
	}

	slot := AtlasSlot{Metrics: metrics}
	if mask != nil {
		rect, err := c.place(mask.Rect.Dx(), mask.Rect.Dy())
		if err != nil {
			return SlotRef{}, err
		}
		c.blit(mask, rect)
		c.pending = append(c.pending, rect)
		slot.Bounds = rect
	}

	ref := c.arena.insert(slot)
	e := &entry{key: k, ref: ref, lastFrame: c.frame, bounds: slot.Bounds}
	c.entries[k] = e
	c.addToFront(e)
	return ref, nil
}

// rasterizeKey renders the bitmap for a key, substituting the missing-glyph
// box for GID 0 and for rasterization failures.
func (c *Cache) rasterizeKey(k gidKey) (*image.Alpha, Metrics, error) {
	if k.gid == 0 {
		mask, metrics := MissingBox(c.cellW, c.cellH, c.ascent)
		return mask, metrics, nil
	}
	c.stats.Rasterizations.Add(1)
	mask, metrics, err := c.rast.Rasterize(k.gid, k.style, float64(k.ppem))
	if err != nil {
		// Recoverable: substitute the box and keep going.
		c.stats.Fallbacks.Add(1)
		mask, metrics = MissingBox(c.cellW, c.cellH, c.ascent)
		return mask, metrics, nil
	}
	return mask, metrics, nil
}

// place allocates atlas space for a w×h bitmap, evicting and growing as
// needed. Caller holds mu.
func (c *Cache) place(w, h int) (image.Rectangle, error) {
	pad := c.config.Padding
	if w+pad > c.config.MaxSize || h+pad > c.config.MaxSize {
		return image.Rectangle{}, fmt.Errorf("%w: glyph %dx%d exceeds max atlas %d",
			ErrAtlasExhausted, w, h, c.config.MaxSize)
	}

	for {
		if r, ok := c.packer.allocate(w, h); ok {
			return r, nil
		}
		if c.evictOne() {
			continue
		}
		if c.size < c.config.MaxSize {
			c.grow()
			continue
		}
		return image.Rectangle{}, &AtlasFullError{Size: c.size, Resident: c.arena.len()}
	}
}

// evictOne removes the least-recently-used entry not referenced by the
// current frame. Returns false when every resident entry is pinned.
// Caller holds mu.
func (c *Cache) evictOne() bool {
	for e := c.tail; e != nil; e = e.prev {
		if e.lastFrame == c.frame {
			continue
		}
		c.packer.free(e.bounds)
		c.arena.release(e.ref)
		delete(c.entries, e.key)
		c.unlink(e)
		c.stats.Evictions.Add(1)
		return true
	}
	return false
}

// grow doubles the atlas edge, preserving resident bitmap positions.
// Caller holds mu.
func (c *Cache) grow() {
	newSize := c.size * 2
	if newSize > c.config.MaxSize {
		newSize = c.config.MaxSize
	}
	newData := make([]byte, newSize*newSize)
	for y := 0; y < c.size; y++ {
		copy(newData[y*newSize:y*newSize+c.size], c.data[y*c.size:(y+1)*c.size])
	}
	c.data = newData
	c.size = newSize
	c.packer.grow(newSize, newSize)
	c.pending = c.pending[:0]
	c.full = true
}

// blit copies an alpha mask into the atlas at rect. Caller holds mu.
func (c *Cache) blit(mask *image.Alpha, rect image.Rectangle) {
	w := rect.Dx()
	for y := 0; y < rect.Dy(); y++ {
		src := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		dstOff := (rect.Min.Y+y)*c.size + rect.Min.X
		copy(c.data[dstOff:dstOff+w], src)
	}
}

// TakeUploads returns the atlas data plus the regions mutated since the
// previous call, and clears the pending list. Called once per frame by the
// render loop; per-glyph uploads never happen.
func (c *Cache) TakeUploads() Uploads {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.full && len(c.pending) == 0 {
		return Uploads{}
	}
	up := Uploads{
		Data:  c.data,
		Size:  c.size,
		Rects: c.pending,
		Full:  c.full,
	}
	c.pending = nil
	c.full = false
	return up
}

// Reset invalidates every cached glyph. Call after a font or size change;
// all outstanding SlotRefs fail resolution afterwards.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[gidKey]*entry, len(c.entries))
	c.runes = make(map[runeKey]uint16, len(c.runes))
	c.head = nil
	c.tail = nil
	c.arena.reset()
	c.packer.reset()
	for i := range c.data {
		c.data[i] = 0
	}
	c.pending = c.pending[:0]
	c.full = true
}

// SetPPEM changes the rasterization size and invalidates the cache.
func (c *Cache) SetPPEM(ppem float64) error {
	if ppem <= 0 {
		return fmt.Errorf("glyph: invalid ppem %v", ppem)
	}
	cellW, cellH, ascent, err := c.rast.CellMetrics(ppem)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.config.PPEM = ppem
	c.cellW = cellW
	c.cellH = cellH
	c.ascent = ascent
	c.mu.Unlock()
	c.Reset()
	return nil
}

// Len returns the number of resident glyphs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Utilization returns the fraction of atlas area in use.
func (c *Cache) Utilization() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.packer.utilization()
}

// Stats returns cache counters.
func (c *Cache) Stats() (hits, misses, evictions, rasterizations uint64) {
	return c.stats.Hits.Load(),
		c.stats.Misses.Load(),
		c.stats.Evictions.Load(),
		c.stats.Rasterizations.Load()
}

// LRU list management.

func (c *Cache) addToFront(e *entry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *Cache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}
