// Package broadcast defines the port for pushing workflow events to connected dashboards.
package broadcast

import "context"

// Broadcaster sends a typed event to every connected client.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
