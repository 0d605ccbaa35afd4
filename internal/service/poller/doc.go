// Package poller runs the background loop that fetches remote commands,
// drops stale ones and hands the rest to the playback loop through the
// command queue.
package poller
