package audit

import "context"

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher pushes audit events to an external sink (Kafka). Emit must be
// best-effort from the caller's perspective: domain operations never fail
// because the audit stream is down.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
