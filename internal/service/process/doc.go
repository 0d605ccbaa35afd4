// Package process keeps one speaker per device and restarts it on request.
//
// The running process list comes from github.com/mitchellh/go-ps. A restarted
// process waits for its parent to exit before claiming the device.
package process
