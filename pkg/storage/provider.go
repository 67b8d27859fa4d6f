// Package storage declares the port the core depends on for raw scan
// bytes. Per spec.md §1/§6, object storage is an external collaborator —
// no concrete object-store SDK is wired here (none appears in the example
// pack this module was grounded on; see DESIGN.md). Callers supply a
// Provider implementation at wiring time (cmd/gradeflow).
package storage

import (
	"context"
	"time"
)

// Provider is the object-storage port the ingest task depends on.
type Provider interface {
	// Put uploads bytes under key with the given content type.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get downloads the bytes stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// SignedURL returns a time-limited, bounded-TTL URL for key. Per
	// spec.md §6, TTLs are bounded to at most 15 minutes.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// MaxSignedURLTTL is the upper bound spec.md §6 places on SignedURL TTLs.
const MaxSignedURLTTL = 15 * time.Minute
