package orchestrators

import (
	"bytes"
	"fmt"
	"strings"

	"gymdesk/internal/domain/receipt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// receiptRenderer escapes raw HTML in Markdown input; member names and notes are user-entered.
var receiptRenderer = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(goldmarkHTML.WithHardWraps()),
)

// ReceiptEmail is a rendered receipt message.
type ReceiptEmail struct {
	Subject  string
	Markdown string
	HTML     string
}

// RenderReceiptEmail builds the receipt email body as Markdown and renders it to HTML.
// PRE: r has been reconciled
// POST: HTML is safe to send; raw HTML in notes is escaped
func RenderReceiptEmail(r receipt.Receipt, gymName string) (ReceiptEmail, error) {
	if gymName == "" {
		gymName = "Gym"
	}
	var md strings.Builder
	fmt.Fprintf(&md, "# %s receipt %s\n\n", escapeMarkdown(gymName), r.ReceiptNumber)
	fmt.Fprintf(&md, "Hi %s, thanks for your payment.\n\n", escapeMarkdown(r.MemberName))
	if r.VersionNumber > 1 {
		fmt.Fprintf(&md, "_This receipt replaces version %d._\n\n", r.VersionNumber-1)
	}

	md.WriteString("| Item | Amount |\n|---|---:|\n")
	row := func(label string, amount int64) {
		fmt.Fprintf(&md, "| %s | %s |\n", label, FormatMoney(amount))
	}
	if r.RegistrationFee > 0 {
		row("Registration fee", r.RegistrationFee)
	}
	row("Package fee", r.PackageFee)
	if r.Discount > 0 {
		row("Discount", -r.Discount)
	}
	for _, t := range r.Taxes {
		label := fmt.Sprintf("%s %g%%", escapeMarkdown(t.Name), t.Rate)
		if t.Inclusive {
			label += " (included)"
		}
		row(label, t.Amount)
	}
	row("**Total**", r.Amount)
	row("Paid", r.AmountPaid)
	row("**Due**", r.DueAmount)

	fmt.Fprintf(&md, "\nPlan: %s, %s to %s  \n", escapeMarkdown(r.PlanType), r.SubscriptionStartDate, r.SubscriptionEndDate)
	fmt.Fprintf(&md, "Type: %s\n", r.ReceiptTag)
	if r.PaymentMethod != "" {
		fmt.Fprintf(&md, "\nPaid by %s.\n", escapeMarkdown(r.PaymentMethod))
	}
	if strings.TrimSpace(r.Notes) != "" {
		fmt.Fprintf(&md, "\n> %s\n", escapeMarkdown(r.Notes))
	}

	var buf bytes.Buffer
	if err := receiptRenderer.Convert([]byte(md.String()), &buf); err != nil {
		return ReceiptEmail{}, fmt.Errorf("render receipt email: %w", err)
	}
	return ReceiptEmail{
		Subject:  fmt.Sprintf("%s receipt %s", gymName, r.ReceiptNumber),
		Markdown: md.String(),
		HTML:     buf.String(),
	}, nil
}

// FormatMoney renders minor units with two decimals, e.g. 150050 as "1500.50".
func FormatMoney(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "#", `\#`,
	"\n", " ",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
