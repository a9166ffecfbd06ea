package printing

import (
	"bytes"
	"context"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/taxcrm/backend/internal/domain/billing"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// InvoiceParty is the practice or the billed client
type InvoiceParty struct {
	Name    string
	Email   string
	Address string
}

// InvoiceDocument is everything printed on an invoice
type InvoiceDocument struct {
	Practice InvoiceParty
	BillTo   InvoiceParty
	Invoice  *billing.Invoice
}

var invoiceTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money":   formatMoney,
	"date":    formatDate,
	"percent": formatPercent,
	"title":   titleCase,
	"amount":  func(l billing.LineItem) decimal.Decimal { return l.Amount() },
	"lines":   func(s string) []string { return strings.Split(s, "\n") },
}).Parse(`<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>{{.Invoice.Number}}</title>
<style>
body{font-family:Helvetica,Arial,sans-serif;font-size:12px;color:#222}
h1{font-size:22px;margin:0 0 4px}
table{width:100%;border-collapse:collapse;margin-top:16px}
th,td{padding:6px 8px;border-bottom:1px solid #ddd;text-align:left}
td.num,th.num{text-align:right}
.totals td{border:none}
.status{display:inline-block;padding:2px 8px;border:1px solid #888;border-radius:3px}
</style></head>
<body>
<table class="header"><tr>
<td><h1>{{.Practice.Name}}</h1>{{range lines .Practice.Address}}{{.}}<br>{{end}}{{.Practice.Email}}</td>
<td class="num"><h1>Invoice</h1>{{.Invoice.Number}}<br>
Issued {{date .Invoice.IssueDate}}<br>Due {{date .Invoice.DueDate}}<br>
<span class="status">{{title (print .Invoice.Status)}}</span></td>
</tr></table>
<p><strong>Bill to</strong><br>{{.BillTo.Name}}<br>{{range lines .BillTo.Address}}{{.}}<br>{{end}}{{.BillTo.Email}}</p>
<table>
<tr><th>Description</th><th class="num">Qty</th><th class="num">Unit price</th><th class="num">Amount</th></tr>
{{range .Invoice.Items}}<tr><td>{{.Description}}</td><td class="num">{{.Quantity.String}}</td><td class="num">{{money .UnitPrice}}</td><td class="num">{{money (amount .)}}</td></tr>
{{end}}</table>
<table class="totals">
<tr><td></td><td class="num">Subtotal</td><td class="num">{{money .Invoice.Subtotal}}</td></tr>
<tr><td></td><td class="num">Tax ({{percent .Invoice.TaxRate}})</td><td class="num">{{money .Invoice.TaxAmount}}</td></tr>
<tr><td></td><td class="num"><strong>Total</strong></td><td class="num"><strong>{{money .Invoice.Total}}</strong></td></tr>
<tr><td></td><td class="num">Paid</td><td class="num">{{money .Invoice.AmountPaid}}</td></tr>
<tr><td></td><td class="num"><strong>Balance due</strong></td><td class="num"><strong>{{money .Invoice.Balance}}</strong></td></tr>
</table>
{{if .Invoice.Notes}}<p>{{.Invoice.Notes}}</p>{{end}}
</body></html>`))

// RenderInvoiceHTML fills the invoice template
func RenderInvoiceHTML(doc InvoiceDocument) (string, error) {
	if doc.Invoice == nil {
		return "", NewRenderError(ErrCodeTemplateFailed, "invoice is required", nil)
	}
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, doc); err != nil {
		return "", NewRenderError(ErrCodeTemplateFailed, "failed to render invoice template", err)
	}
	return buf.String(), nil
}

// InvoicePrinter turns invoices into PDFs
type InvoicePrinter struct {
	renderer  PDFRenderer
	paperSize PaperSize
}

// NewInvoicePrinter creates an InvoicePrinter on US letter paper
func NewInvoicePrinter(renderer PDFRenderer) *InvoicePrinter {
	return &InvoicePrinter{renderer: renderer, paperSize: PaperSizeLetter}
}

// PrintInvoice renders the invoice PDF
func (p *InvoicePrinter) PrintInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error) {
	html, err := RenderInvoiceHTML(doc)
	if err != nil {
		return nil, err
	}
	res, err := p.renderer.Render(ctx, &RenderRequest{
		HTML:       html,
		Title:      doc.Invoice.Number,
		PaperSize:  p.paperSize,
		Margins:    DefaultMargins(),
		FooterHTML: `<div style="font-size:8px;width:100%;text-align:center"><span class="pageNumber"></span> / <span class="totalPages"></span></div>`,
	})
	if err != nil {
		return nil, err
	}
	return res.PDFData, nil
}

// formatMoney renders dollars with thousands separators: 1234.5 -> "$1,234.50"
func formatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	parts := strings.SplitN(d.StringFixed(2), ".", 2)
	intPart := parts[0]
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteRune(',')
		}
		b.WriteRune(c)
	}
	return sign + "$" + b.String() + "." + parts[1]
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// formatPercent renders a percent rate: 8.25 -> "8.25%"
func formatPercent(d decimal.Decimal) string {
	return d.Round(2).String() + "%"
}

func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}
