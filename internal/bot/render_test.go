package bot

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/contacts"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/telegram"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/visitors"
)

func TestRenderMessagesPageEscapesAndFormatsDate(t *testing.T) {
	page := contacts.Page{
		Items: []contacts.Message{{
			ID:        1,
			Name:      "<script>",
			Email:     "a&b@example.com",
			Body:      "1 < 2",
			CreatedAt: time.Date(2025, 12, 9, 20, 0, 0, 0, time.UTC),
		}},
		Page:       1,
		PageSize:   5,
		TotalCount: 1,
		TotalPages: 1,
	}

	text, markup := RenderMessagesPage(page, time.FixedZone("WIB", 7*60*60))
	if markup != nil {
		t.Fatalf("expected no controls on a single page")
	}
	for _, fragment := range []string{"&lt;script&gt;", "a&amp;b@example.com", "1 &lt; 2", "📅 10 Dec 2025", "Total: 1 messages"} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in %s", fragment, text)
		}
	}
}

func TestRenderMessagesPageStaysWithinTelegramLimit(t *testing.T) {
	oversized := contacts.Message{
		Name:      strings.Repeat("N", 500),
		Email:     strings.Repeat("e", 500) + "@example.com",
		Body:      strings.Repeat("<&>", 2000),
		CreatedAt: time.Date(2025, 12, 9, 20, 0, 0, 0, time.UTC),
	}
	items := make([]contacts.Message, 0, 5)
	for index := 0; index < 5; index++ {
		message := oversized
		message.ID = int64(index + 1)
		items = append(items, message)
	}
	page := contacts.Page{Items: items, Page: 2, PageSize: 5, TotalCount: 15, TotalPages: 3}

	text, _ := RenderMessagesPage(page, time.UTC)
	if runes := utf8.RuneCountInString(text); runes > telegram.MaxTextRunes {
		t.Fatalf("expected at most %d runes, got %d", telegram.MaxTextRunes, runes)
	}
	if !strings.Contains(text, "…") {
		t.Fatalf("expected truncated bodies to end with an ellipsis")
	}
	if !strings.Contains(text, "Total: 15 messages") {
		t.Fatalf("expected footer to survive truncation, got %s", text)
	}
}

func TestRenderStatsListsBreakdowns(t *testing.T) {
	text := RenderStats(visitors.Stats{
		Period:         visitors.PeriodWeekly,
		Total:          9,
		UniqueVisitors: 4,
		Devices:        []visitors.Bucket{{Label: "Mobile", Count: 6}, {Label: "Desktop", Count: 3}},
		Browsers:       []visitors.Bucket{},
		TopCountries:   []visitors.Bucket{{Label: "Indonesia", Count: 9}},
	})

	expected := []string{
		"Statistics: Last 7 Days",
		"Total Visits: <b>9</b>",
		"Unique Visitors: <b>4</b>",
		"  • Mobile: 6\n  • Desktop: 3",
		"🌐 <b>Browsers:</b>\n  No data",
		"  • Indonesia: 9",
	}
	for _, fragment := range expected {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in %s", fragment, text)
		}
	}
}
