package config

import (
	"os"
	"strings"
)

// OutboxDispatcherEnabled controls the background goroutine that drains the
// event outbox into Pub/Sub. Disable it on instances that only serve HTTP
// (the push worker deployment runs its own dispatcher).
//
// Set via env:
// - OUTBOX_DISPATCHER=false
func OutboxDispatcherEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("OUTBOX_DISPATCHER")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AutoMigrateEnabled gates gorm AutoMigrate at startup. Production schemas
// are managed out of band; dev and test environments opt in.
//
// Set via env:
// - AUTO_MIGRATE=true
func AutoMigrateEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("AUTO_MIGRATE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// TrackTraceSyncEnabled controls whether adjustment and receiving events are
// forwarded to the state track-and-trace reporting API. Vendors in states
// without a reporting mandate run with this off.
//
// Set via env:
// - TRACK_TRACE_SYNC=true
func TrackTraceSyncEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("TRACK_TRACE_SYNC")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
