// Package framing implements the result framing protocol spoken on a worker's
// primary output channel.
//
// A worker emits exactly one frame on success:
//
//	JSON_OUTPUT_START
//	CHUNK:<slice>        (zero or more, in order)
//	JSON_OUTPUT_END
//
// Older workers may instead write the whole payload as a single unprefixed line
// between the sentinels; the Decoder accepts both shapes. Everything outside
// the sentinels is diagnostic noise and is never authoritative. Everything
// between them is payload.
//
// Framer is the writing side and refuses to emit twice. Decoder is the
// parent-side state machine; callers combine its result with the worker's
// exit status to tell ordinary failures from protocol violations.
package framing
