package printing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxcrm/backend/internal/domain/billing"
)

func sampleInvoice(t *testing.T) *billing.Invoice {
	t.Helper()
	contactID := uuid.New()
	issue := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	inv, err := billing.NewInvoice(uuid.New(), "INV-2025-0042", &contactID, nil, issue, issue.AddDate(0, 0, 30))
	require.NoError(t, err)
	require.NoError(t, inv.ReplaceItems([]billing.LineItem{
		{Description: "Form 1040 preparation", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1250)},
		{Description: "Schedule C <review>", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("87.5")},
	}, decimal.RequireFromString("8.25"), issue.AddDate(0, 0, 30), "Thank you for your business"))
	return inv
}

type fakeRenderer struct {
	last *RenderRequest
	err  error
}

func (f *fakeRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &RenderResult{PDFData: []byte("%PDF-1.4 /Type /Page"), PageCount: 1}, nil
}

func (f *fakeRenderer) Close() error { return nil }

func TestRenderInvoiceHTML(t *testing.T) {
	html, err := RenderInvoiceHTML(InvoiceDocument{
		Practice: InvoiceParty{Name: "Rivera Tax Group", Address: "1 Main St\nAustin, TX"},
		BillTo:   InvoiceParty{Name: "Jane Doe", Email: "jane@example.com"},
		Invoice:  sampleInvoice(t),
	})
	require.NoError(t, err)

	assert.Contains(t, html, "INV-2025-0042")
	assert.Contains(t, html, "Rivera Tax Group")
	assert.Contains(t, html, "1 Main St<br>")
	assert.Contains(t, html, "$1,250.00")
	assert.Contains(t, html, "$175.00")
	assert.Contains(t, html, "Tax (8.25%)")
	assert.Contains(t, html, "Mar 1, 2025")
	assert.Contains(t, html, "Draft")
	assert.Contains(t, html, "Schedule C &lt;review&gt;")
}

func TestRenderInvoiceHTML_RequiresInvoice(t *testing.T) {
	_, err := RenderInvoiceHTML(InvoiceDocument{})
	var rerr *RenderError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, ErrCodeTemplateFailed, rerr.Code)
}

func TestInvoicePrinter(t *testing.T) {
	r := &fakeRenderer{}
	p := NewInvoicePrinter(r)

	pdf, err := p.PrintInvoice(context.Background(), InvoiceDocument{Invoice: sampleInvoice(t)})
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)
	assert.Equal(t, PaperSizeLetter, r.last.PaperSize)
	assert.Equal(t, "INV-2025-0042", r.last.Title)

	r.err = NewRenderError(ErrCodeRenderTimeout, "timed out", nil)
	_, err = p.PrintInvoice(context.Background(), InvoiceDocument{Invoice: sampleInvoice(t)})
	assert.Error(t, err)
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"12.5", "$12.50"},
		{"1234.567", "$1,234.57"},
		{"1000000", "$1,000,000.00"},
		{"-950", "-$950.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatMoney(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestBuildPrintParams(t *testing.T) {
	r := &ChromedpRenderer{config: &ChromedpConfig{Scale: 1}}

	params := r.buildPrintParams(&RenderRequest{PaperSize: PaperSizeLetter, Margins: DefaultMargins()})
	assert.InDelta(t, 8.5, params.paperWidth, 0.01)
	assert.InDelta(t, 11.0, params.paperHeight, 0.01)
	assert.False(t, params.displayFooter)

	params = r.buildPrintParams(&RenderRequest{PaperSize: PaperSizeA4, Landscape: true, FooterHTML: "<span></span>"})
	assert.InDelta(t, mmToInches(210), params.paperWidth, 0.01)
	assert.True(t, params.landscape)
	assert.True(t, params.displayFooter)
	assert.InDelta(t, mmToInches(10), params.marginBottom, 0.001)
}

func TestValidateRequest(t *testing.T) {
	assert.Error(t, validateRequest(nil))
	assert.Error(t, validateRequest(&RenderRequest{HTML: "  "}))
	assert.Error(t, validateRequest(&RenderRequest{HTML: "<p>x</p>", PaperSize: "B5"}))

	req := &RenderRequest{HTML: "<p>x</p>"}
	require.NoError(t, validateRequest(req))
	assert.Equal(t, PaperSizeLetter, req.PaperSize)
}

func TestBuildCompleteHTML(t *testing.T) {
	wrapped := buildCompleteHTML(&RenderRequest{HTML: "<p>hi</p>", Title: "A & B"})
	assert.Contains(t, wrapped, "<!DOCTYPE html>")
	assert.Contains(t, wrapped, "<title>A &amp; B</title>")

	full := "<!DOCTYPE html><html><body>x</body></html>"
	assert.Equal(t, full, buildCompleteHTML(&RenderRequest{HTML: full}))
}

func TestEstimatePageCount(t *testing.T) {
	assert.Equal(t, 2, estimatePageCount([]byte("/Type /Pages /Type /Page x /Type /Page")))
	assert.Equal(t, 1, estimatePageCount([]byte("nothing")))
}
