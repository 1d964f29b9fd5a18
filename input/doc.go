// Package input carries platform input events to the render loop. Events
// are timestamped where they enter the process, queued through a
// single-producer single-consumer pipeline with mouse-move coalescing, and
// drained once per loop tick. The pipeline also bookkeeps input-to-photon
// latency: a measurement opens when events are polled and closes when the
// frame they influenced is presented.
package input
