package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/contacts"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/telegram"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/visitors"
)

const (
	// EmptyMessagesText is the whole reply when no contact messages exist.
	EmptyMessagesText = "📭 No contact messages yet."

	UnknownCommandText = "❓ Unknown command. Send /help to see the list of commands."
	FailureText        = "⚠️ Something went wrong while loading data. Please try again later."

	messagesPageSize  = 5
	callbackPrefix    = "messages_"
	messageDateLayout = "2 Jan 2006"
	noDataLine        = "  No data"

	// Per-field budgets keep a full page of five entries under telegram.MaxTextRunes.
	listNameRunes  = 64
	listEmailRunes = 96
	listBodyRunes  = 560
)

var helpText = strings.Join([]string{
	"🤖 <b>Portfolio Bot Commands</b>",
	"",
	"📊 <b>Statistics:</b>",
	"/daily - Today's statistics",
	"/weekly - Last 7 days",
	"/monthly - Last 30 days",
	"/all - All-time statistics",
	"",
	"📩 <b>Messages:</b>",
	"/messages - Browse contact messages",
	"",
	"ℹ️ This bot also sends a notification for every new visitor and contact message.",
}, "\n")

var periodLabels = map[visitors.Period]string{
	visitors.PeriodDaily:   "Today",
	visitors.PeriodWeekly:  "Last 7 Days",
	visitors.PeriodMonthly: "Last 30 Days",
	visitors.PeriodAll:     "All Time",
}

// RenderMessagesPage formats one page of the contact listing with its
// navigation controls. The markup is nil when there is nowhere to navigate.
func RenderMessagesPage(page contacts.Page, location *time.Location) (string, *telegram.InlineKeyboardMarkup) {
	if page.TotalCount == 0 {
		return EmptyMessagesText, nil
	}
	if location == nil {
		location = time.UTC
	}

	entries := make([]string, 0, len(page.Items))
	for index, message := range page.Items {
		number := (page.Page-1)*page.PageSize + index + 1
		entries = append(entries, strings.Join([]string{
			fmt.Sprintf("<b>%d. %s</b>", number, telegram.EscapeClipped(message.Name, listNameRunes)),
			fmt.Sprintf("📧 %s", telegram.EscapeClipped(message.Email, listEmailRunes)),
			fmt.Sprintf("💬 %s", telegram.EscapeClipped(message.Body, listBodyRunes)),
			fmt.Sprintf("📅 %s", message.CreatedAt.In(location).Format(messageDateLayout)),
		}, "\n"))
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "📩 <b>Contact Messages</b> (%d/%d)\n\n", page.Page, page.TotalPages)
	if len(entries) > 0 {
		builder.WriteString(strings.Join(entries, "\n\n"))
		builder.WriteString("\n\n")
	}
	fmt.Fprintf(&builder, "Total: %d messages", page.TotalCount)

	return builder.String(), navigationMarkup(page)
}

func navigationMarkup(page contacts.Page) *telegram.InlineKeyboardMarkup {
	var buttons []telegram.InlineKeyboardButton
	if page.HasPrevious() {
		buttons = append(buttons, telegram.InlineKeyboardButton{
			Text:         "⬅️ Prev",
			CallbackData: fmt.Sprintf("%s%d", callbackPrefix, page.Page-1),
		})
	}
	if page.HasNext() {
		buttons = append(buttons, telegram.InlineKeyboardButton{
			Text:         "Next ➡️",
			CallbackData: fmt.Sprintf("%s%d", callbackPrefix, page.Page+1),
		})
	}
	if len(buttons) == 0 {
		return nil
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{buttons}}
}

func RenderStats(stats visitors.Stats) string {
	label, ok := periodLabels[stats.Period]
	if !ok {
		label = string(stats.Period)
	}
	lines := []string{
		fmt.Sprintf("📊 <b>Statistics: %s</b>", label),
		"",
		fmt.Sprintf("👥 Total Visits: <b>%d</b>", stats.Total),
		fmt.Sprintf("👤 Unique Visitors: <b>%d</b>", stats.UniqueVisitors),
		"",
		"📱 <b>Devices:</b>",
		bucketLines(stats.Devices),
		"",
		"🌐 <b>Browsers:</b>",
		bucketLines(stats.Browsers),
		"",
		"🌍 <b>Top Countries:</b>",
		bucketLines(stats.TopCountries),
	}
	return strings.Join(lines, "\n")
}

func bucketLines(buckets []visitors.Bucket) string {
	if len(buckets) == 0 {
		return noDataLine
	}
	lines := make([]string, 0, len(buckets))
	for _, bucket := range buckets {
		lines = append(lines, fmt.Sprintf("  • %s: %d", html.EscapeString(bucket.Label), bucket.Count))
	}
	return strings.Join(lines, "\n")
}
