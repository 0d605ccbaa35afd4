// Package status exposes the liveness of the speaker over the standard gRPC
// health protocol.
//
// Two services are reported: the playback loop and the command poller. Any
// grpc_health_probe style client can check them.
package status
