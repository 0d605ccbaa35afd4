// Package integration runs the speaker components together against an
// in-process command server.
package integration
