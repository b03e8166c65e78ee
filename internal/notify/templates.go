package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/telegram"
)

const (
	unknownValue    = "Unknown"
	timestampLayout = "02 Jan 2006 15:04:05 MST"

	fieldRunes   = 256
	messageRunes = 3000
)

// VisitorNotice describes a tracked page view.
type VisitorNotice struct {
	IP      string
	Country string
	City    string
	Device  string
	Browser string
	Page    string
}

// ContactNotice describes a stored contact form submission.
type ContactNotice struct {
	Name    string
	Email   string
	Message string
}

func FormatVisitor(notice VisitorNotice, at time.Time) string {
	page := strings.TrimSpace(notice.Page)
	if page == "" {
		page = "/"
	}
	lines := []string{
		"🌐 <b>New Visitor!</b>",
		"",
		fmt.Sprintf("📍 IP: <code>%s</code>", escapeOrUnknown(notice.IP)),
		fmt.Sprintf("🌍 Location: %s, %s", escapeOrUnknown(notice.City), escapeOrUnknown(notice.Country)),
		fmt.Sprintf("📱 Device: %s", escapeOrUnknown(notice.Device)),
		fmt.Sprintf("🔍 Browser: %s", escapeOrUnknown(notice.Browser)),
		fmt.Sprintf("📄 Page: %s", telegram.EscapeClipped(page, fieldRunes)),
		fmt.Sprintf("🕐 Time: %s", at.Format(timestampLayout)),
	}
	return strings.Join(lines, "\n")
}

func FormatContact(notice ContactNotice, at time.Time) string {
	lines := []string{
		"📩 <b>New Contact Message!</b>",
		"",
		fmt.Sprintf("👤 Name: %s", telegram.EscapeClipped(notice.Name, fieldRunes)),
		fmt.Sprintf("📧 Email: %s", telegram.EscapeClipped(notice.Email, fieldRunes)),
		"💬 Message:",
		telegram.EscapeClipped(notice.Message, messageRunes),
		"",
		fmt.Sprintf("🕐 Time: %s", at.Format(timestampLayout)),
	}
	return strings.Join(lines, "\n")
}

func escapeOrUnknown(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return unknownValue
	}
	return telegram.EscapeClipped(trimmed, fieldRunes)
}
