// Package pipeline runs a chain of packet plugins over a shared ring of
// 188-byte transport stream packets: one input filling the ring, any
// number of processors advancing over it, and one output draining it.
//
// Each stage runs on its own goroutine and suspends only inside the
// ring's reserve and acquire waits. Stages terminate individually or
// through the joint termination rendezvous of [Coordinator]; the
// [Pipeline] controller owns both and turns the outcome into a [Status].
package pipeline
