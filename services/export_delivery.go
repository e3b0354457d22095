package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/domodwyer/mailyak/v3"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Export methods.
const (
	MethodDownload = "download"
	MethodEmail    = "email"
	MethodWhatsApp = "whatsapp"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()-]{6,20}$`)

// DeliveryPayload is handed to the caller for email or WhatsApp sharing.
// Nothing is sent from here.
type DeliveryPayload struct {
	Method           string `json:"method"`
	Recipient        string `json:"recipient"`
	Subject          string `json:"subject,omitempty"`
	Message          string `json:"message"`
	Filename         string `json:"filename"`
	MimeType         string `json:"mimeType"`
	AttachmentBase64 string `json:"attachmentBase64"`
	RawMessage       string `json:"rawMessage,omitempty"` // full MIME message, email only
}

// ValidateRecipient checks the recipient hint for the export method. An
// empty hint is allowed.
func ValidateRecipient(method, recipient string) error {
	if recipient == "" {
		return nil
	}
	var rule validation.Rule
	switch method {
	case MethodEmail:
		rule = is.EmailFormat
	case MethodWhatsApp:
		rule = validation.Match(phonePattern).Error("must be a phone number")
	default:
		return nil
	}
	if err := validation.Validate(recipient, rule); err != nil {
		return &ValidationError{Errors: []string{fmt.Sprintf("recipient: %v", err)}}
	}
	return nil
}

// BuildDelivery returns the sharing payload for method, or nil for a plain
// download.
func BuildDelivery(method, recipient string, q QuotationRecord, company CompanyInfo, a *ExportArtifact) (*DeliveryPayload, error) {
	switch method {
	case MethodEmail:
		return emailPayload(recipient, q, company, a)
	case MethodWhatsApp:
		return whatsAppPayload(recipient, q, company, a), nil
	default:
		return nil, nil
	}
}

func emailPayload(recipient string, q QuotationRecord, company CompanyInfo, a *ExportArtifact) (*DeliveryPayload, error) {
	subject := fmt.Sprintf("Quotation %s from %s", q.QuotationNo, company.Name)
	body := deliveryMessage(q, company, "Please find attached")

	mail := mailyak.New("localhost:25", nil)
	if recipient != "" {
		mail.To(recipient)
	}
	if company.Email != "" {
		mail.From(company.Email)
		mail.FromName(company.Name)
	}
	mail.Subject(subject)
	mail.Plain().Set(body)
	mail.AttachWithMimeType(a.Filename, bytes.NewReader(a.Data), a.MimeType)

	buf, err := mail.MimeBuf()
	if err != nil {
		return nil, fmt.Errorf("build email: %w", err)
	}

	return &DeliveryPayload{
		Method:           MethodEmail,
		Recipient:        recipient,
		Subject:          subject,
		Message:          body,
		Filename:         a.Filename,
		MimeType:         a.MimeType,
		AttachmentBase64: base64.StdEncoding.EncodeToString(a.Data),
		RawMessage:       buf.String(),
	}, nil
}

func whatsAppPayload(recipient string, q QuotationRecord, company CompanyInfo, a *ExportArtifact) *DeliveryPayload {
	if recipient == "" {
		recipient = phoneDigits(q.Client.Phone)
	}
	return &DeliveryPayload{
		Method:           MethodWhatsApp,
		Recipient:        phoneDigits(recipient),
		Message:          deliveryMessage(q, company, "Sharing"),
		Filename:         a.Filename,
		MimeType:         a.MimeType,
		AttachmentBase64: base64.StdEncoding.EncodeToString(a.Data),
	}
}

func deliveryMessage(q QuotationRecord, company CompanyInfo, lead string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", nonEmpty(q.Client.Name, "Customer"))
	fmt.Fprintf(&b, "%s quotation %s", lead, q.QuotationNo)
	if q.ProjectName != "" {
		fmt.Fprintf(&b, " for %s", q.ProjectName)
	}
	fmt.Fprintf(&b, ", total %s.\n\nRegards,\n%s", FormatCurrency(company.Currency, q.GrandTotal), company.Name)
	return b.String()
}

func phoneDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func nonEmpty(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
