package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryObjectStorage_RoundTrip(t *testing.T) {
	m := NewMemoryObjectStorage()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "tenants/a/documents/w2.pdf", strings.NewReader("pdf-bytes"), 9, "application/pdf"))

	ok, err := m.Exists(ctx, "tenants/a/documents/w2.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := m.Get(ctx, "tenants/a/documents/w2.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))

	data[0] = 'X'
	again, _ := m.Get(ctx, "tenants/a/documents/w2.pdf")
	assert.Equal(t, "pdf-bytes", string(again))

	assert.Equal(t, []string{"tenants/a/documents/w2.pdf"}, m.Keys("tenants/a/"))

	require.NoError(t, m.Delete(ctx, "tenants/a/documents/w2.pdf"))
	_, err = m.Get(ctx, "tenants/a/documents/w2.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	require.NoError(t, m.Delete(ctx, "missing"))
}

func TestMemoryObjectStorage_PresignGet(t *testing.T) {
	m := NewMemoryObjectStorage()
	u, expiresAt, err := m.PresignGet(context.Background(), "backups/global/x.enc", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "backups/global/x.enc")
	assert.True(t, expiresAt.After(time.Now()))
}

func TestDocumentKey(t *testing.T) {
	tenantID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	docID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"plain", "W-2 Form 2024.PDF", "tenants/11111111-1111-1111-1111-111111111111/documents/w-2-form-2024-22222222-2222-2222-2222-222222222222.pdf"},
		{"no extension", "notes", "tenants/11111111-1111-1111-1111-111111111111/documents/notes-22222222-2222-2222-2222-222222222222"},
		{"only symbols", "???.txt", "tenants/11111111-1111-1111-1111-111111111111/documents/document-22222222-2222-2222-2222-222222222222.txt"},
		{"nested path", "../../etc/passwd.txt", "tenants/11111111-1111-1111-1111-111111111111/documents/passwd-22222222-2222-2222-2222-222222222222.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DocumentKey(tenantID, docID, tt.filename))
		})
	}
}
