package mail

import (
	"fmt"
	"strings"
)

// InvoiceData is the payload rendered into the invoice email body. The
// billing engine supplies the data; this renderer produces the markup.
type InvoiceData struct {
	RecipientName string
	PaymentID     string
	InvoiceNumber string
	PlanName      string
	BillingCycle  string
	Amount        float64
	Currency      string
	IntroLine     string
}

// RenderInvoiceBody builds a simple HTML invoice email.
func RenderInvoiceBody(data InvoiceData) string {
	var b strings.Builder

	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<p>Hello %s,</p>", data.RecipientName))
	if data.IntroLine != "" {
		b.WriteString(fmt.Sprintf("<p>%s</p>", data.IntroLine))
	}
	b.WriteString("<table border=\"0\" cellpadding=\"4\">")
	if data.InvoiceNumber != "" {
		b.WriteString(fmt.Sprintf("<tr><td>Invoice</td><td>%s</td></tr>", data.InvoiceNumber))
	}
	if data.PlanName != "" {
		b.WriteString(fmt.Sprintf("<tr><td>Plan</td><td>%s (%s)</td></tr>", data.PlanName, data.BillingCycle))
	}
	b.WriteString(fmt.Sprintf("<tr><td>Amount</td><td>%.2f %s</td></tr>", data.Amount, strings.ToUpper(data.Currency)))
	b.WriteString(fmt.Sprintf("<tr><td>Payment reference</td><td>%s</td></tr>", data.PaymentID))
	b.WriteString("</table>")
	b.WriteString("<p>Thank you for using SalonOwl.</p>")
	b.WriteString("</body></html>")

	return b.String()
}
