// Package config loads, validates and saves the speaker settings in YAML format.
//
// Config names the audio assets, the song and fade timings, the command source
// endpoint with its credentials and the process control sentinel files. Any
// missing or invalid field is reported by Load and stops the speaker at startup.
package config
