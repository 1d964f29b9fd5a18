// Package gpu presents frame command lists to the screen. The Surface
// interface is the boundary the render loop drives: atlas upload, command
// submission, present. WgpuSurface implements it on a wgpu hal device
// received from the host; NullSurface records calls for tests and headless
// operation.
package gpu
