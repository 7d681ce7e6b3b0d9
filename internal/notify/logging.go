package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// LogMailer writes notifications to the structured log. Default in
// development and the sink of last resort when no provider is configured.
type LogMailer struct {
	logger *slog.Logger
	from   string
}

func NewLogMailer(logger *slog.Logger, from string) *LogMailer {
	return &LogMailer{logger: logger, from: from}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("notification",
		"from", m.from,
		"subject", msg.Subject,
		"recipients", strings.Join(msg.Recipients, ","),
		"template", msg.TextTemplate,
	)
	return nil
}

// CaptureMailer records messages for assertions in tests.
type CaptureMailer struct {
	mu       sync.Mutex
	messages []Message
	// FailWith, when set, is returned from every Send.
	FailWith error
}

func NewCaptureMailer() *CaptureMailer {
	return &CaptureMailer{}
}

func (m *CaptureMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *CaptureMailer) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}
