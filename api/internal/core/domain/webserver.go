package domain

import "context"

// WebServerManager wraps the external tools that judge and apply the config tree.
// TestConfig validates every enabled site at once, not just the one being changed.
type WebServerManager interface {
	TestConfig(ctx context.Context) error
	Reload(ctx context.Context) error
}
