// Package common holds helpers shared by several services.
//
// It provides the HTTP client for the command source, with basic auth and
// per-request timeouts, and detection of the host and user the speaker runs
// under for its User-Agent.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
