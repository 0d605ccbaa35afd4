// Package logger wraps zap for the speaker daemon:
//   - a global sugared logger writing timestamped console lines to stdout,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level parsing for the --log-level flag.
//
// Components take a context and pull their scoped logger from it, so the
// poller, the playback loop and the sentinel watcher each log under their own name.
package logger
