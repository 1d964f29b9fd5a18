// Package loop drives the render pipeline: it polls input, hands events to
// the application, rebuilds dirty screen regions into frame command lists,
// and presents them through a gpu.Surface at a paced interval. An idle loop
// blocks on its wake channels and consumes no CPU; an animating effect or a
// dirty region keeps it ticking.
package loop
