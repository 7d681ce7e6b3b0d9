// Package notify defines the outbound notification contract. Delivery
// mechanics (SMTP, provider APIs) live behind the Mailer interface; domain
// operations treat sending as best-effort and never fail because of it.
package notify

import (
	"context"
)

// Message is one outbound notification. Templates are identified by name;
// rendering belongs to the mailer collaborator.
type Message struct {
	Subject      string
	Recipients   []string
	TextTemplate string
	HTMLTemplate string
	Context      map[string]string
}

// Mailer sends a message, synchronously or asynchronously per configuration.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Template names used across the lifecycle modules.
const (
	TemplateConfirmationRequest = "confirmation"
	TemplateVoteAudit           = "vote_audit"
	TemplateSyncFailures        = "sync_failures"
)
