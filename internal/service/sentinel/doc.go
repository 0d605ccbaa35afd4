// Package sentinel watches the stop and restart files that control the
// speaker process from the outside.
//
// The files are watched with fsnotify; the playback loop calls Check once
// per tick and only touches the file system when something changed. When the
// directories cannot be watched, Check falls back to a stat per tick.
package sentinel
