package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/termcore"
	"github.com/gogpu/termcore/frame"
)

// Vertex layouts matching cellShaderWGSL:
//
//	solid: position (vec2<f32>) + color (unorm8x4)
//	glyph: position (vec2<f32>) + uv (vec2<f32>) + color (unorm8x4)
const (
	solidVertexStride = 12
	glyphVertexStride = 20

	vertsPerQuad = 6
)

// vertexData is a command list flattened into upload-ready vertex bytes.
// Backgrounds and overlays share the solid buffer, backgrounds first, so
// one vertex buffer serves both solid draw ranges.
type vertexData struct {
	solid []byte
	glyph []byte

	backgroundVerts uint32
	overlayVerts    uint32
	glyphVerts      uint32
}

// buildVertexData flattens list into vertex buffers. The draw order it
// encodes is backgrounds, then glyphs, then overlays.
func buildVertexData(list *frame.CommandList) vertexData {
	var d vertexData

	solidQuads := len(list.Background) + len(list.Overlays)
	d.solid = make([]byte, 0, solidQuads*vertsPerQuad*solidVertexStride)
	d.glyph = make([]byte, 0, len(list.Glyphs)*vertsPerQuad*glyphVertexStride)

	for _, q := range list.Background {
		d.solid = appendSolidQuad(d.solid, q.X, q.Y, q.W, q.H, q.Color)
	}
	d.backgroundVerts = uint32(len(list.Background) * vertsPerQuad)

	for _, q := range list.Overlays {
		d.solid = appendSolidQuad(d.solid, q.X, q.Y, q.W, q.H, q.Color)
	}
	d.overlayVerts = uint32(len(list.Overlays) * vertsPerQuad)

	for _, g := range list.Glyphs {
		d.glyph = appendGlyphQuad(d.glyph, g)
	}
	d.glyphVerts = uint32(len(list.Glyphs) * vertsPerQuad)

	return d
}

// appendSolidQuad appends the two triangles of one rectangle.
func appendSolidQuad(buf []byte, x, y, w, h float32, c termcore.Color) []byte {
	x1, y1 := x+w, y+h
	buf = appendSolidVertex(buf, x, y, c)
	buf = appendSolidVertex(buf, x1, y, c)
	buf = appendSolidVertex(buf, x1, y1, c)
	buf = appendSolidVertex(buf, x, y, c)
	buf = appendSolidVertex(buf, x1, y1, c)
	buf = appendSolidVertex(buf, x, y1, c)
	return buf
}

// appendGlyphQuad appends the two textured triangles of one glyph.
func appendGlyphQuad(buf []byte, g frame.GlyphQuad) []byte {
	x1, y1 := g.X+g.W, g.Y+g.H
	buf = appendGlyphVertex(buf, g.X, g.Y, g.U0, g.V0, g.Color)
	buf = appendGlyphVertex(buf, x1, g.Y, g.U1, g.V0, g.Color)
	buf = appendGlyphVertex(buf, x1, y1, g.U1, g.V1, g.Color)
	buf = appendGlyphVertex(buf, g.X, g.Y, g.U0, g.V0, g.Color)
	buf = appendGlyphVertex(buf, x1, y1, g.U1, g.V1, g.Color)
	buf = appendGlyphVertex(buf, g.X, y1, g.U0, g.V1, g.Color)
	return buf
}

func appendSolidVertex(buf []byte, x, y float32, c termcore.Color) []byte {
	var v [solidVertexStride]byte
	binary.LittleEndian.PutUint32(v[0:4], math.Float32bits(x))
	binary.LittleEndian.PutUint32(v[4:8], math.Float32bits(y))
	v[8], v[9], v[10], v[11] = c.R, c.G, c.B, c.A
	return append(buf, v[:]...)
}

func appendGlyphVertex(buf []byte, x, y, u, vv float32, c termcore.Color) []byte {
	var v [glyphVertexStride]byte
	binary.LittleEndian.PutUint32(v[0:4], math.Float32bits(x))
	binary.LittleEndian.PutUint32(v[4:8], math.Float32bits(y))
	binary.LittleEndian.PutUint32(v[8:12], math.Float32bits(u))
	binary.LittleEndian.PutUint32(v[12:16], math.Float32bits(vv))
	v[16], v[17], v[18], v[19] = c.R, c.G, c.B, c.A
	return append(buf, v[:]...)
}

// makeViewportUniform packs the 16-byte uniform: viewport size (vec2<f32>)
// plus padding.
func makeViewportUniform(w, h int) []byte {
	buf := make([]byte, viewportUniformSize)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(w)))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(float32(h)))
	return buf
}

const viewportUniformSize = 16
