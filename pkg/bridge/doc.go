// ABOUTME: Package bridge documentation
// ABOUTME: Method-call adapter between a host application and the engine
// Package bridge exposes the engine through named method calls with loosely
// typed arguments, the shape plugin hosts use. Captured microphone chunks
// are streamed to the sink installed with Listen.
package bridge
