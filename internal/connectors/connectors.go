package connectors

import "context"

// Connector is a chat transport. Start blocks until ctx is done and returns
// nil on a clean shutdown.
type Connector interface {
	Name() string
	Start(ctx context.Context) error
}
