package gpu

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// cellShaderWGSL holds both pipelines of the cell renderer in one module:
// vs_solid/fs_solid fill background and overlay rectangles, vs_glyph/fs_glyph
// draw coverage-mask quads out of the atlas. Cell geometry is pixel aligned,
// so the glyph pass fetches texels directly instead of sampling.
const cellShaderWGSL = `
struct Viewport {
    size: vec2<f32>,
    _pad: vec2<f32>,
}

@group(0) @binding(0) var<uniform> viewport: Viewport;
@group(0) @binding(1) var atlas: texture_2d<f32>;

fn to_clip(pos: vec2<f32>) -> vec4<f32> {
    let ndc = pos / viewport.size * 2.0 - vec2<f32>(1.0, 1.0);
    return vec4<f32>(ndc.x, -ndc.y, 0.0, 1.0);
}

struct SolidVarying {
    @builtin(position) pos: vec4<f32>,
    @location(0) color: vec4<f32>,
}

@vertex
fn vs_solid(
    @location(0) pos: vec2<f32>,
    @location(1) color: vec4<f32>,
) -> SolidVarying {
    var out: SolidVarying;
    out.pos = to_clip(pos);
    out.color = color;
    return out;
}

@fragment
fn fs_solid(in: SolidVarying) -> @location(0) vec4<f32> {
    return vec4<f32>(in.color.rgb * in.color.a, in.color.a);
}

struct GlyphVarying {
    @builtin(position) pos: vec4<f32>,
    @location(0) uv: vec2<f32>,
    @location(1) color: vec4<f32>,
}

@vertex
fn vs_glyph(
    @location(0) pos: vec2<f32>,
    @location(1) uv: vec2<f32>,
    @location(2) color: vec4<f32>,
) -> GlyphVarying {
    var out: GlyphVarying;
    out.pos = to_clip(pos);
    out.uv = uv;
    out.color = color;
    return out;
}

@fragment
fn fs_glyph(in: GlyphVarying) -> @location(0) vec4<f32> {
    let dims = vec2<f32>(textureDimensions(atlas));
    let texel = vec2<i32>(in.uv * dims);
    let coverage = textureLoad(atlas, texel, 0).r;
    let alpha = in.color.a * coverage;
    return vec4<f32>(in.color.rgb * alpha, alpha);
}
`

// compileShaderModule compiles WGSL to SPIR-V via naga and creates the hal
// module. SPIR-V is little-endian 32-bit words.
func compileShaderModule(device hal.Device, label, source string) (hal.ShaderModule, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", label, err)
	}
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirvCode},
	})
}
