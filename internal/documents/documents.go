// Package documents renders the payment instructions attached to an order:
// a one page boleto PDF, or an HTML page for PIX and TED transfers.
package documents

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"agromarket/internal/config"
	"agromarket/internal/models"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// Document is a rendered payment artifact ready to be stored.
type Document struct {
	Type        models.DocumentType
	Filename    string
	ContentType string
	Body        []byte
}

// Generator renders payment documents with the marketplace bank details.
type Generator struct {
	bank    config.BankDetails
	dueDays int
	now     func() time.Time
}

func NewGenerator(bank config.BankDetails, dueDays int) *Generator {
	return &Generator{bank: bank, dueDays: dueDays, now: time.Now}
}

// Generate renders the document matching the order's payment method.
// productNames maps product IDs to display names; unknown IDs print the ID.
func (g *Generator) Generate(order *models.Order, productNames map[string]string) (*Document, error) {
	if order == nil || order.OrderNumber == "" {
		return nil, fmt.Errorf("order without number cannot be documented")
	}
	docType := models.DocumentTypeFor(order.PaymentMethod)
	switch docType {
	case models.DocumentBoleto:
		body, err := g.boletoPDF(order, productNames)
		if err != nil {
			return nil, err
		}
		return &Document{Type: docType, Filename: "boleto.pdf", ContentType: "application/pdf", Body: body}, nil
	default:
		body, err := g.instructionsHTML(order, productNames, docType)
		if err != nil {
			return nil, err
		}
		return &Document{Type: docType, Filename: string(docType) + ".html", ContentType: "text/html; charset=utf-8", Body: body}, nil
	}
}

func (g *Generator) dueDate() time.Time {
	return g.now().AddDate(0, 0, g.dueDays)
}

// FormatBRL renders an amount as R$ 1.234,56.
func FormatBRL(amount decimal.Decimal) string {
	s := amount.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "R$ " + b.String() + "," + frac
	if neg {
		out = "-" + out
	}
	return out
}

func (g *Generator) boletoPDF(order *models.Order, names map[string]string) ([]byte, error) {
	due := g.dueDate()
	barcode := BoletoBarcode(g.bank.BankCode, order, due)

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Boleto "+order.OrderNumber, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(g.bank.BankName+" | "+g.bank.BankCode), "B", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	rows := [][2]string{
		{"Beneficiário", g.bank.Beneficiary + " - CNPJ " + g.bank.BeneficiaryCNPJ},
		{"Agência / Conta", g.bank.Agency + " / " + g.bank.Account},
		{"Pedido", order.OrderNumber},
		{"Data do pedido", order.CreatedAt.Format("02/01/2006")},
		{"Vencimento", due.Format("02/01/2006")},
		{"Valor do documento", FormatBRL(order.TotalAmount)},
	}
	for _, r := range rows {
		pdf.CellFormat(50, 7, tr(r[0]), "1", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, tr(r[1]), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(80, 7, tr("Produto"), "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 7, tr("Volume"), "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, tr("Preço unit."), "1", 0, "R", false, 0, "")
	pdf.CellFormat(0, 7, tr("Total"), "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, it := range order.Items {
		pdf.CellFormat(80, 7, tr(productName(names, it.ProductID)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, it.Volume.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, tr(FormatBRL(it.UnitPrice)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(0, 7, tr(FormatBRL(it.LineTotal)), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Courier", "B", 11)
	pdf.CellFormat(0, 8, groupDigits(barcode), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "I", 8)
	pdf.MultiCell(0, 5, tr("Retirada na unidade após a compensação do pagamento. Não receber após o vencimento."), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render boleto for %s: %w", order.OrderNumber, err)
	}
	return buf.Bytes(), nil
}

func productName(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return id
}

func groupDigits(s string) string {
	var parts []string
	for len(s) > 5 {
		parts = append(parts, s[:5])
		s = s[5:]
	}
	return strings.Join(append(parts, s), " ")
}

var boletoEpoch = time.Date(1997, 10, 7, 0, 0, 0, 0, time.UTC)

// BoletoBarcode builds the 44 digit FEBRABAN barcode: bank, currency, check
// digit, due factor, amount in cents and a 25 digit free field taken from the
// order number.
func BoletoBarcode(bankCode string, order *models.Order, due time.Time) string {
	bank := leftPad(onlyDigits(bankCode), 3)
	if len(bank) > 3 {
		bank = bank[:3]
	}

	days := int(due.UTC().Truncate(24*time.Hour).Sub(boletoEpoch).Hours() / 24)
	factor := days
	if factor > 9999 {
		// The factor restarts at 1000 once it passes 9999.
		factor = (days-10000)%9000 + 1000
	}

	cents := order.TotalAmount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	free := onlyDigits(order.OrderNumber)
	if len(free) > 25 {
		free = free[len(free)-25:]
	}

	body := bank + "9" + fmt.Sprintf("%04d%010d", factor, cents) + leftPad(free, 25)
	return body[:4] + mod11(body) + body[4:]
}

func leftPad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func mod11(digits string) string {
	sum, weight := 0, 2
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	dv := 11 - sum%11
	if dv == 0 || dv == 10 || dv == 11 {
		dv = 1
	}
	return fmt.Sprint(dv)
}

type instructionLine struct {
	Name      string
	Volume    string
	UnitPrice string
	LineTotal string
}

type instructionsView struct {
	Title       string
	Method      string
	OrderNumber string
	OrderDate   string
	DueDate     string
	Total       string
	Bank        config.BankDetails
	Lines       []instructionLine
}

var instructionsTmpl = template.Must(template.New("instructions").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head><meta charset="utf-8"><title>{{.Title}} - {{.OrderNumber}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>Pedido <strong>{{.OrderNumber}}</strong> de {{.OrderDate}}. Pague até {{.DueDate}}.</p>
<p>Valor total: <strong>{{.Total}}</strong></p>
{{if eq .Method "pix"}}
<h2>Chave PIX</h2>
<p><code>{{.Bank.PIXKey}}</code></p>
<p>Favorecido: {{.Bank.Beneficiary}} (CNPJ {{.Bank.BeneficiaryCNPJ}})</p>
<p>Informe o número do pedido na descrição do pagamento.</p>
{{else}}
<h2>Dados para TED</h2>
<ul>
<li>Banco: {{.Bank.BankCode}} - {{.Bank.BankName}}</li>
<li>Agência: {{.Bank.Agency}}</li>
<li>Conta corrente: {{.Bank.Account}}</li>
<li>Favorecido: {{.Bank.Beneficiary}}</li>
<li>CNPJ: {{.Bank.BeneficiaryCNPJ}}</li>
</ul>
{{end}}
<table>
<tr><th>Produto</th><th>Volume</th><th>Preço unit.</th><th>Total</th></tr>
{{range .Lines}}<tr><td>{{.Name}}</td><td>{{.Volume}}</td><td>{{.UnitPrice}}</td><td>{{.LineTotal}}</td></tr>
{{end}}</table>
<p>Retirada na unidade após a confirmação do pagamento.</p>
</body>
</html>
`))

func (g *Generator) instructionsHTML(order *models.Order, names map[string]string, docType models.DocumentType) ([]byte, error) {
	view := instructionsView{
		Title:       "Instruções de pagamento via TED",
		Method:      string(order.PaymentMethod),
		OrderNumber: order.OrderNumber,
		OrderDate:   order.CreatedAt.Format("02/01/2006"),
		DueDate:     g.dueDate().Format("02/01/2006"),
		Total:       FormatBRL(order.TotalAmount),
		Bank:        g.bank,
	}
	if docType == models.DocumentPIXInstructions {
		view.Title = "Instruções de pagamento via PIX"
	}
	for _, it := range order.Items {
		view.Lines = append(view.Lines, instructionLine{
			Name:      productName(names, it.ProductID),
			Volume:    it.Volume.String(),
			UnitPrice: FormatBRL(it.UnitPrice),
			LineTotal: FormatBRL(it.LineTotal),
		})
	}

	var buf bytes.Buffer
	if err := instructionsTmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render %s for %s: %w", docType, order.OrderNumber, err)
	}
	return buf.Bytes(), nil
}
