package layout

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/termcore/glyph"
)

// ShapedGlyph is one glyph produced by shaping a run of cell text.
type ShapedGlyph struct {
	// GID is the glyph index in the style's face. Ligatures and contextual
	// forms produce indices with no codepoint equivalent.
	GID uint16

	// Cluster is the index of the first rune this glyph covers, relative to
	// the shaped run.
	Cluster int

	// XOffset and YOffset are fine positioning adjustments in pixels.
	// YOffset is positive above the baseline.
	XOffset float32
	YOffset float32
}

// Shaper turns runs of runes into positioned glyphs using go-text's HarfBuzz
// implementation. Ligature substitution, kerning, and complex-script shaping
// all happen here; the result addresses the glyph cache by glyph index.
//
// Shaper is safe for concurrent use. Parsed font.Font objects are read-only
// and cached per style; font.Face and shaping.HarfbuzzShaper are not
// concurrent-safe, so faces are created per call and shapers pooled.
type Shaper struct {
	pool sync.Pool

	mu    sync.RWMutex
	fonts [4]*font.Font // indexed by glyph.FontStyle; nil falls back to regular
}

// NewShaper parses font data for the regular face.
func NewShaper(fontData []byte) (*Shaper, error) {
	s := &Shaper{
		pool: sync.Pool{
			New: func() any {
				return &shaping.HarfbuzzShaper{}
			},
		},
	}
	if err := s.SetStyleFont(glyph.StyleRegular, fontData); err != nil {
		return nil, err
	}
	return s, nil
}

// SetStyleFont installs a separate face for a style. Styles without their
// own face fall back to the regular face.
func (s *Shaper) SetStyleFont(style glyph.FontStyle, fontData []byte) error {
	if style > glyph.StyleBoldItalic {
		return fmt.Errorf("layout: unknown style %d", style)
	}
	face, err := font.ParseTTF(bytes.NewReader(fontData))
	if err != nil {
		return fmt.Errorf("layout: parse %v font: %w", style, err)
	}
	s.mu.Lock()
	s.fonts[style] = face.Font
	s.mu.Unlock()
	return nil
}

// fontFor returns the parsed font for a style, falling back to regular.
func (s *Shaper) fontFor(style glyph.FontStyle) *font.Font {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(style) < len(s.fonts) && s.fonts[style] != nil {
		return s.fonts[style]
	}
	return s.fonts[glyph.StyleRegular]
}

// Shape shapes a run of runes at the given pixel size. rtl selects
// right-to-left shaping for the run. The returned slice is freshly allocated
// and owned by the caller.
func (s *Shaper) Shape(runes []rune, style glyph.FontStyle, rtl bool, ppem float64) []ShapedGlyph {
	if len(runes) == 0 {
		return nil
	}
	f := s.fontFor(style)
	if f == nil {
		return nil
	}

	dir := di.DirectionLTR
	if rtl {
		dir = di.DirectionRTL
	}

	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: dir,
		Face:      font.NewFace(f),
		Size:      fixed.Int26_6(ppem * 64),
		Script:    detectScript(runes),
		Language:  language.NewLanguage("en"),
	}

	hb := s.pool.Get().(*shaping.HarfbuzzShaper)
	output := hb.Shape(input)
	s.pool.Put(hb)

	if len(output.Glyphs) == 0 {
		return nil
	}
	result := make([]ShapedGlyph, len(output.Glyphs))
	for i, g := range output.Glyphs {
		result[i] = ShapedGlyph{
			GID:     uint16(g.GlyphID),
			Cluster: g.TextIndex(),
			XOffset: float32(g.XOffset) / 64,
			YOffset: float32(g.YOffset) / 64,
		}
	}
	return result
}

// detectScript returns the script of the first non-space rune. Mixed-script
// runs are split by the bidi pass before shaping, so one script per run is a
// safe assumption here.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}
