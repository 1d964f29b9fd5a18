package gpu

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/termcore/frame"
	"github.com/gogpu/termcore/glyph"
)

// gpuTimeout bounds the fence wait after each frame submission.
const gpuTimeout = 5 * time.Second

// WgpuSurface renders command lists through a wgpu hal device. The device
// and queue are received from the host, the swapchain from the windowing
// layer; the surface owns only the resources it creates (pipelines, the
// atlas texture, vertex and uniform buffers).
type WgpuSurface struct {
	device hal.Device
	queue  hal.Queue
	swap   Swapchain
	log    *slog.Logger

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	solidPipe  hal.RenderPipeline
	glyphPipe  hal.RenderPipeline

	uniformBuf hal.Buffer
	solidBuf   hal.Buffer
	solidCap   int
	glyphBuf   hal.Buffer
	glyphCap   int

	atlasTex  hal.Texture
	atlasView hal.TextureView
	atlasSize int
	bindGroup hal.BindGroup

	width  int
	height int
}

// NewWgpuSurface creates the cell renderer on a host-provided device.
// width and height are the initial backbuffer size in pixels. logger may
// be nil for silence.
func NewWgpuSurface(device hal.Device, queue hal.Queue, swap Swapchain, width, height int, logger *slog.Logger) (*WgpuSurface, error) {
	if device == nil || queue == nil || swap == nil {
		return nil, fmt.Errorf("gpu: nil device, queue, or swapchain")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &WgpuSurface{
		device: device,
		queue:  queue,
		swap:   swap,
		log:    logger,
		width:  width,
		height: height,
	}
	if err := s.createPipelines(); err != nil {
		s.Release()
		return nil, err
	}
	if err := s.createUniform(); err != nil {
		s.Release()
		return nil, err
	}
	// A 1x1 placeholder atlas keeps the bind group valid until the first
	// real upload arrives.
	if err := s.ensureAtlas(1); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

func (s *WgpuSurface) createPipelines() error {
	shader, err := compileShaderModule(s.device, "cell_shader", cellShaderWGSL)
	if err != nil {
		return err
	}
	s.shader = shader

	// Binding 0: viewport uniform (vertex+fragment)
	// Binding 1: glyph atlas texture (fragment)
	bindLayout, err := s.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "cell_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind layout: %w", err)
	}
	s.bindLayout = bindLayout

	pipeLayout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "cell_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{s.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	s.pipeLayout = pipeLayout

	solidPipe, err := s.createRenderPipeline("cell_solid", "vs_solid", "fs_solid", solidVertexLayout())
	if err != nil {
		return err
	}
	s.solidPipe = solidPipe

	glyphPipe, err := s.createRenderPipeline("cell_glyph", "vs_glyph", "fs_glyph", glyphVertexLayout())
	if err != nil {
		return err
	}
	s.glyphPipe = glyphPipe
	return nil
}

func (s *WgpuSurface) createRenderPipeline(label, vsEntry, fsEntry string, buffers []gputypes.VertexBufferLayout) (hal.RenderPipeline, error) {
	premulBlend := gputypes.BlendStatePremultiplied()
	pipe, err := s.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: s.pipeLayout,
		Vertex: hal.VertexState{
			Module:     s.shader,
			EntryPoint: vsEntry,
			Buffers:    buffers,
		},
		Fragment: &hal.FragmentState{
			Module:     s.shader,
			EntryPoint: fsEntry,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    s.swap.Format(),
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline: %w", label, err)
	}
	return pipe, nil
}

// solidVertexLayout matches vs_solid: position (vec2<f32>) + color (unorm8x4).
func solidVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: solidVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatUnorm8x4, Offset: 8, ShaderLocation: 1},
			},
		},
	}
}

// glyphVertexLayout matches vs_glyph: position + uv (vec2<f32>) + color.
func glyphVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: glyphVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
				{Format: gputypes.VertexFormatUnorm8x4, Offset: 16, ShaderLocation: 2},
			},
		},
	}
}

func (s *WgpuSurface) createUniform() error {
	buf, err := s.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cell_viewport_uniform",
		Size:  viewportUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	s.uniformBuf = buf
	s.queue.WriteBuffer(buf, 0, makeViewportUniform(s.width, s.height))
	return nil
}

// ensureAtlas recreates the atlas texture and the bind group when the
// atlas size changes. The cache sends a full upload after every grow, so
// stale texels never survive a recreation.
func (s *WgpuSurface) ensureAtlas(size int) error {
	if size == s.atlasSize && s.atlasTex != nil {
		return nil
	}
	s.destroyAtlas()

	tex, err := s.device.CreateTexture(&hal.TextureDescriptor{
		Label: "glyph_atlas",
		Size: hal.Extent3D{
			Width:              uint32(size),
			Height:             uint32(size),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatR8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create atlas texture %dx%d: %w", size, size, err)
	}
	s.atlasTex = tex

	view, err := s.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: "glyph_atlas_view"})
	if err != nil {
		return fmt.Errorf("create atlas view: %w", err)
	}
	s.atlasView = view
	s.atlasSize = size

	bindGroup, err := s.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "cell_bind",
		Layout: s.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: s.uniformBuf.NativeHandle(), Offset: 0, Size: viewportUniformSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{
				TextureView: s.atlasView.NativeHandle(),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	s.bindGroup = bindGroup
	return nil
}

func (s *WgpuSurface) destroyAtlas() {
	if s.bindGroup != nil {
		s.device.DestroyBindGroup(s.bindGroup)
		s.bindGroup = nil
	}
	if s.atlasView != nil {
		s.device.DestroyTextureView(s.atlasView)
		s.atlasView = nil
	}
	if s.atlasTex != nil {
		s.device.DestroyTexture(s.atlasTex)
		s.atlasTex = nil
	}
	s.atlasSize = 0
}

// UploadAtlas transfers dirty atlas regions before the frame that
// references them. Partial uploads go up as full-width row bands: the atlas
// backing store is one byte per texel, so a band is a contiguous slice.
func (s *WgpuSurface) UploadAtlas(up glyph.Uploads) error {
	if up.Size == 0 {
		return nil
	}
	recreated := up.Size != s.atlasSize
	if err := s.ensureAtlas(up.Size); err != nil {
		return err
	}
	if len(up.Data) == 0 {
		return nil
	}

	size := uint32(up.Size)
	if up.Full || recreated {
		s.queue.WriteTexture(
			&hal.ImageCopyTexture{Texture: s.atlasTex, MipLevel: 0},
			up.Data,
			&hal.ImageDataLayout{Offset: 0, BytesPerRow: size, RowsPerImage: size},
			&hal.Extent3D{Width: size, Height: size, DepthOrArrayLayers: 1},
		)
		return nil
	}

	for _, r := range up.Rects {
		y0, y1 := r.Min.Y, r.Max.Y
		if y0 < 0 || y1 > up.Size || y0 >= y1 {
			continue
		}
		rows := uint32(y1 - y0)
		s.queue.WriteTexture(
			&hal.ImageCopyTexture{
				Texture:  s.atlasTex,
				MipLevel: 0,
				Origin:   hal.Origin3D{X: 0, Y: uint32(y0)},
			},
			up.Data[y0*up.Size:y1*up.Size],
			&hal.ImageDataLayout{Offset: 0, BytesPerRow: size, RowsPerImage: rows},
			&hal.Extent3D{Width: size, Height: rows, DepthOrArrayLayers: 1},
		)
	}
	return nil
}

// Submit encodes and executes one frame of GPU work. Draw order is
// backgrounds, glyphs, overlays; the pass loads the previous contents so a
// partial repaint leaves clean regions untouched.
func (s *WgpuSurface) Submit(list *frame.CommandList) error {
	if err := list.Validate(); err != nil {
		return err
	}
	if list.Width != s.width || list.Height != s.height {
		s.width, s.height = list.Width, list.Height
	}
	s.queue.WriteBuffer(s.uniformBuf, 0, makeViewportUniform(list.Width, list.Height))

	d := buildVertexData(list)
	if err := s.ensureVertexBuffers(len(d.solid), len(d.glyph)); err != nil {
		return err
	}
	if len(d.solid) > 0 {
		s.queue.WriteBuffer(s.solidBuf, 0, d.solid)
	}
	if len(d.glyph) > 0 {
		s.queue.WriteBuffer(s.glyphBuf, 0, d.glyph)
	}

	target, err := s.swap.Acquire()
	if err != nil {
		return fmt.Errorf("acquire backbuffer: %w", err)
	}

	encoder, err := s.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "cell_frame_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("cell_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	loadOp := gputypes.LoadOpLoad
	if list.FullRepaint {
		loadOp = gputypes.LoadOpClear
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "cell_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       target,
				LoadOp:     loadOp,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})
	rp.SetBindGroup(0, s.bindGroup, nil)

	if d.backgroundVerts > 0 {
		rp.SetPipeline(s.solidPipe)
		rp.SetVertexBuffer(0, s.solidBuf, 0)
		rp.Draw(d.backgroundVerts, 1, 0, 0)
	}
	if d.glyphVerts > 0 {
		rp.SetPipeline(s.glyphPipe)
		rp.SetVertexBuffer(0, s.glyphBuf, 0)
		rp.Draw(d.glyphVerts, 1, 0, 0)
	}
	if d.overlayVerts > 0 {
		rp.SetPipeline(s.solidPipe)
		rp.SetVertexBuffer(0, s.solidBuf, 0)
		rp.Draw(d.overlayVerts, 1, d.backgroundVerts, 0)
	}
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer s.device.FreeCommandBuffer(cmdBuf)

	fence, err := s.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer s.device.DestroyFence(fence)

	if err := s.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := s.device.Wait(fence, 1, gpuTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}
	return nil
}

// ensureVertexBuffers grows the persistent vertex buffers to fit the frame.
// Capacity doubles so steady-state frames reuse the same allocation.
func (s *WgpuSurface) ensureVertexBuffers(solidBytes, glyphBytes int) error {
	var err error
	s.solidBuf, s.solidCap, err = s.growBuffer(s.solidBuf, s.solidCap, solidBytes, "cell_solid_vertices")
	if err != nil {
		return err
	}
	s.glyphBuf, s.glyphCap, err = s.growBuffer(s.glyphBuf, s.glyphCap, glyphBytes, "cell_glyph_vertices")
	return err
}

func (s *WgpuSurface) growBuffer(buf hal.Buffer, capacity, need int, label string) (hal.Buffer, int, error) {
	if need == 0 || need <= capacity {
		return buf, capacity, nil
	}
	newCap := capacity
	if newCap == 0 {
		newCap = 4096
	}
	for newCap < need {
		newCap *= 2
	}
	if buf != nil {
		s.device.DestroyBuffer(buf)
	}
	nb, err := s.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(newCap),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("create %s: %w", label, err)
	}
	return nb, newCap, nil
}

// Present flips the frame to the screen.
func (s *WgpuSurface) Present() error {
	return s.swap.Present()
}

// Resize records the new backbuffer size. The swapchain itself is resized
// by the host that owns it; the surface only tracks the viewport.
func (s *WgpuSurface) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("gpu: invalid size %dx%d", width, height)
	}
	s.width, s.height = width, height
	s.queue.WriteBuffer(s.uniformBuf, 0, makeViewportUniform(width, height))
	return nil
}

// SetPresentMode switches swapchain pacing.
func (s *WgpuSurface) SetPresentMode(mode PresentMode) error {
	return s.swap.SetPresentMode(mode)
}

// Release destroys all owned GPU resources in reverse creation order.
func (s *WgpuSurface) Release() {
	if s.device == nil {
		return
	}
	s.destroyAtlas()
	if s.glyphBuf != nil {
		s.device.DestroyBuffer(s.glyphBuf)
		s.glyphBuf = nil
	}
	if s.solidBuf != nil {
		s.device.DestroyBuffer(s.solidBuf)
		s.solidBuf = nil
	}
	if s.uniformBuf != nil {
		s.device.DestroyBuffer(s.uniformBuf)
		s.uniformBuf = nil
	}
	if s.glyphPipe != nil {
		s.device.DestroyRenderPipeline(s.glyphPipe)
		s.glyphPipe = nil
	}
	if s.solidPipe != nil {
		s.device.DestroyRenderPipeline(s.solidPipe)
		s.solidPipe = nil
	}
	if s.pipeLayout != nil {
		s.device.DestroyPipelineLayout(s.pipeLayout)
		s.pipeLayout = nil
	}
	if s.bindLayout != nil {
		s.device.DestroyBindGroupLayout(s.bindLayout)
		s.bindLayout = nil
	}
	if s.shader != nil {
		s.device.DestroyShaderModule(s.shader)
		s.shader = nil
	}
}

var _ Surface = (*WgpuSurface)(nil)
