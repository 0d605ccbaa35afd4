// Package nursery contains the value types of the sound machine domain.
//
// Mode is the current playback behaviour of the device, Command is a
// normalized remote instruction and Event is the single input the playback
// state machine consumes per tick. Action is what the machine does when the
// song ends or its fade window opens.
package nursery
