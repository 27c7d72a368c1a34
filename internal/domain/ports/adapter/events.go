package adapter

import (
	"context"

	"bytebill/internal/domain/model"
)

// AccessEventPublisher delivers grant/revoke events to network control.
// Publish must not block the caller.
type AccessEventPublisher interface {
	Publish(ctx context.Context, ev model.AccessEvent)
}

// OperatorNotifier sends short operational messages to the hotspot operator.
type OperatorNotifier interface {
	Notify(ctx context.Context, text string) error
}

// SettingsProvider returns the current settings record.
type SettingsProvider interface {
	Current() model.Settings
}

// HostInfo reports facts about the machine running the engine.
type HostInfo interface {
	Uptime(ctx context.Context) (uint64, error) // seconds
}
