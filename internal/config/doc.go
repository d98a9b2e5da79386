// Package config loads clocksync configuration from CUE files.
//
// A configuration file is plain CUE unified with the embedded #Config
// schema, so omitted fields take their defaults, unknown fields are
// rejected and constraints such as max_sync_offset_ms >= sync_target_ms
// are enforced before any manager is built:
//
//	sync_target_ms:     20
//	max_sync_offset_ms: 80
//	start_clock:        "wall"
package config
