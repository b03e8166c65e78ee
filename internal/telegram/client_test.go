package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type capturedCall struct {
	path string
	body map[string]any
}

func newBotServer(t *testing.T, calls *[]capturedCall, response string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		*calls = append(*calls, capturedCall{path: r.URL.Path, body: body})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSendMessagePostsToBotEndpoint(t *testing.T) {
	var calls []capturedCall
	server := newBotServer(t, &calls, `{"ok":true,"result":{"message_id":77,"chat":{"id":42}}}`)

	client, err := NewClient(ClientConfig{Token: "123:abc", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	sent, err := client.SendMessage(context.Background(), SendMessageRequest{
		ChatID:    "42",
		Text:      "<b>hello</b>",
		ParseMode: ParseModeHTML,
		ReplyMarkup: &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
			{{Text: "Next", CallbackData: "messages_2"}},
		}},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if sent.MessageID != 77 {
		t.Fatalf("expected message id 77, got %d", sent.MessageID)
	}
	if len(calls) != 1 || calls[0].path != "/bot123:abc/sendMessage" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
	if calls[0].body["parse_mode"] != "HTML" || calls[0].body["chat_id"] != "42" {
		t.Fatalf("unexpected payload: %+v", calls[0].body)
	}
	markup, ok := calls[0].body["reply_markup"].(map[string]any)
	if !ok || markup["inline_keyboard"] == nil {
		t.Fatalf("expected inline keyboard in payload: %+v", calls[0].body)
	}
}

func TestCallReturnsAPIErrorWhenNotOK(t *testing.T) {
	var calls []capturedCall
	server := newBotServer(t, &calls, `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`)

	client, err := NewClient(ClientConfig{Token: "t", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	err = client.EditMessageText(context.Background(), EditMessageTextRequest{ChatID: "42", MessageID: 1, Text: "same"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.ErrorCode != 400 || !strings.Contains(apiErr.Description, "not modified") {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if calls[0].path != "/bott/editMessageText" {
		t.Fatalf("unexpected path %q", calls[0].path)
	}
}

func TestAnswerCallbackQuerySendsID(t *testing.T) {
	var calls []capturedCall
	server := newBotServer(t, &calls, `{"ok":true,"result":true}`)

	client, err := NewClient(ClientConfig{Token: "t", BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	if err := client.AnswerCallbackQuery(context.Background(), "cb-1"); err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if calls[0].body["callback_query_id"] != "cb-1" {
		t.Fatalf("unexpected payload: %+v", calls[0].body)
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(ClientConfig{Token: " "}); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestSendMessageRequiresChatID(t *testing.T) {
	client, err := NewClient(ClientConfig{Token: "t", BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	if _, err := client.SendMessage(context.Background(), SendMessageRequest{Text: "hi"}); !errors.Is(err, errEmptyChatID) {
		t.Fatalf("expected empty chat id error, got %v", err)
	}
}
