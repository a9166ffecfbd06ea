package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Name  string
	Email string
	Fee   string
}

var columns = []Column[row]{
	{Header: "Name", Value: func(r row) string { return r.Name }},
	{Header: "Email", Value: func(r row) string { return r.Email }},
	{Header: "Fee", Value: func(r row) string { return r.Fee }},
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, columns, []row{
		{Name: "Doe, Jane", Email: "jane@example.com", Fee: "-150.00"},
		{Name: "=HYPERLINK(\"x\")", Email: "@evil", Fee: "1200"},
	}, WithBOM(false))
	require.NoError(t, err)

	assert.Equal(t,
		"Name,Email,Fee\n"+
			"\"Doe, Jane\",jane@example.com,-150.00\n"+
			"\"'=HYPERLINK(\"\"x\"\")\",'@evil,1200\n",
		buf.String())
}

func TestWriteCSV_BOMAndEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, columns, nil))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))
	assert.Equal(t, "Name,Email,Fee\n", string(buf.Bytes()[3:]))
}

func TestSanitizeCell(t *testing.T) {
	assert.Equal(t, "", sanitizeCell(""))
	assert.Equal(t, "-12.5", sanitizeCell("-12.5"))
	assert.Equal(t, "'-cmd", sanitizeCell("-cmd"))
	assert.Equal(t, "'+", sanitizeCell("+"))
	assert.Equal(t, "plain", sanitizeCell("plain"))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "contacts-2025-03-01.csv", Filename("contacts", "2025-03-01"))
}

func TestCellFormatters(t *testing.T) {
	assert.Empty(t, ID(nil))
	id := uuid.MustParse("6f1c1e2a-4a59-4f5e-9a57-0c3b8a8b1e11")
	assert.Equal(t, id.String(), ID(&id))
	assert.Empty(t, Date(nil))
	d := time.Date(2025, 4, 15, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-04-15", Date(&d))
	assert.Equal(t, "2024", Int(2024))
	assert.Equal(t, "yes", Bool(true))
	assert.Equal(t, "no", Bool(false))
}
