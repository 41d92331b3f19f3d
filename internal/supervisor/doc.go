// Package supervisor launches worker processes on behalf of the controller.
//
// Each job runs in its own process group. Runner reads the primary channel
// through a framing decoder and the diagnostic channel through the progress
// parser at the same time, then classifies the job from the exit status and
// the frame state. A worker that stays silent past the read timeout, or whose
// context ends, is killed along with every process it spawned.
package supervisor
