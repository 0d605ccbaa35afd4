// Package engine implements audio.Backend on top of gopxl/beep.
//
// Every channel owns one decoded stream at a time, wrapped in a gain ramp
// (fades) and a volume effect. Streams are mixed by the beep speaker. Channel
// activity and the track completion signal are flipped from the speaker
// goroutine through atomics, so the playback loop can poll them without
// taking the speaker lock.
package engine
