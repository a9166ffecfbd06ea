package mail

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

func TestBuildMessage(t *testing.T) {
	t.Run("requires recipients", func(t *testing.T) {
		_, err := buildMessage("office@example.com", Message{Subject: "x"})
		assert.ErrorIs(t, err, ErrNoRecipients)
	})

	t.Run("plain text with attachment", func(t *testing.T) {
		m, err := buildMessage("office@example.com", Message{
			To:          []string{"client@example.com"},
			Subject:     "Invoice INV-2025-0001",
			Body:        "Please find your invoice attached.",
			Attachments: []Attachment{{Filename: "INV-2025-0001.pdf", Data: []byte("%PDF-1.4")}},
		})
		require.NoError(t, err)

		var buf bytes.Buffer
		_, err = m.WriteTo(&buf)
		require.NoError(t, err)
		raw := buf.String()
		assert.Contains(t, raw, "To: client@example.com")
		assert.Contains(t, raw, "Subject: Invoice INV-2025-0001")
		assert.Contains(t, raw, "text/plain")
		assert.Contains(t, raw, `filename="INV-2025-0001.pdf"`)
	})

	t.Run("html body detected", func(t *testing.T) {
		m, err := buildMessage("office@example.com", Message{
			To:   []string{"client@example.com"},
			Body: "<p>Reminder</p>",
		})
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = m.WriteTo(&buf)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "text/html")
	})
}

func TestNewSender(t *testing.T) {
	_, ok := NewSender(config.MailConfig{}, zap.NewNop()).(*LogSender)
	assert.True(t, ok)

	_, ok = NewSender(config.MailConfig{Enabled: true, Host: "smtp.example.com", Port: 587}, zap.NewNop()).(*SMTPSender)
	assert.True(t, ok)
}

func TestMemorySender(t *testing.T) {
	s := &MemorySender{}
	require.NoError(t, s.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "hi"}))
	assert.Len(t, s.Sent(), 1)

	s.Err = errors.New("smtp down")
	assert.Error(t, s.Send(context.Background(), Message{To: []string{"a@example.com"}}))
}
