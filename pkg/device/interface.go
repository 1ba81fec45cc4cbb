package device

import "context"

// Device is a sampler reachable through its command shell (real or simulated).
type Device interface {
	Connect() error
	Close() error
	Exec(ctx context.Context, line string) ([]string, error)
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Local implements Device.
var _ Device = (*Local)(nil)
