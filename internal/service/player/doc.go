// Package player runs the nursery speaker: the playback state machine and the
// tick loop that feeds it.
//
// Machine owns the current mode, both timers and the audio channels, and is
// touched only from the tick loop. Run wires configuration, the audio engine,
// the command poller, the sentinel monitor and the health endpoint around it.
package player
