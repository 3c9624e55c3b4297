package services

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"golang.org/x/net/html"

	"backend/models"
)

// EmailService sends supplier-facing notification mails over SMTP.
type EmailService struct{}

// NewEmailService creates a new email service instance
func NewEmailService() *EmailService {
	return &EmailService{}
}

const supplierInviteTemplate = `
<p>Hello {{supplier_name}},</p>
<p>{{company_name}} has invited you to quote on <b>{{project_name}}</b> (round {{round}}).</p>
<p>Open your quote form here: <a href="{{portal_url}}">{{portal_url}}</a></p>
<p>The link is personal to your company. Please do not forward it.</p>
`

// SendSupplierInvite mails the portal link for a freshly generated access
// token. Failures are reported to the caller, who treats the mail as
// best-effort: the token is already persisted.
func (es *EmailService) SendSupplierInvite(access *models.SupplierAccess, companyName, projectName, portalURL string) error {
	if access.SupplierEmail == "" {
		return fmt.Errorf("supplier %q has no email address on file", access.SupplierName)
	}

	variables := map[string]string{
		"supplier_name": access.SupplierName,
		"company_name":  companyName,
		"project_name":  projectName,
		"round":         fmt.Sprintf("%d", access.Round),
		"portal_url":    portalURL,
	}

	body := supplierInviteTemplate
	for key, value := range variables {
		placeholder := fmt.Sprintf("{{%s}}", key)
		body = strings.ReplaceAll(body, placeholder, value)
	}

	subject := fmt.Sprintf("RFQ invitation: %s (round %d)", projectName, access.Round)
	return es.sendEmail(access.SupplierEmail, subject, convertHTMLToText(body))
}

// sendEmail sends a plain-text email using SMTP.
func (es *EmailService) sendEmail(to, subject, body string) error {
	host := os.Getenv("SMTP_HOST")
	port := os.Getenv("SMTP_PORT")
	from := os.Getenv("SMTP_FROM")
	user := os.Getenv("SMTP_USER")
	password := os.Getenv("SMTP_PASSWORD")

	if host == "" || from == "" {
		return fmt.Errorf("SMTP is not configured")
	}
	if port == "" {
		port = "587"
	}

	message := []byte("From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n")

	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, password, host)
	}
	return smtp.SendMail(host+":"+port, auth, from, []string{to}, message)
}

// convertHTMLToText converts HTML content to plain text for email sending
func convertHTMLToText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		// If parsing fails, return the original content
		return htmlContent
	}

	var text strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "p", "div", "br", "h1", "h2", "h3":
				text.WriteString("\n")
			case "li":
				text.WriteString("- ")
			}
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			extractText(child)
		}
	}

	extractText(doc)

	result := text.String()
	result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	return strings.TrimSpace(result)
}
