package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMailerRecordsSender(t *testing.T) {
	var buf bytes.Buffer
	mailer := NewLogMailer(slog.New(slog.NewTextHandler(&buf, nil)), "no-reply@agora.local")

	err := mailer.Send(context.Background(), Message{
		Subject:      "Candidate requires confirmation",
		Recipients:   []string{"committee@agora.local"},
		TextTemplate: TemplateConfirmationRequest,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "no-reply@agora.local")
	assert.Contains(t, out, "committee@agora.local")
	assert.Contains(t, out, TemplateConfirmationRequest)
}
