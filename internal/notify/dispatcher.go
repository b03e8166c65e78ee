package notify

import (
	"context"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/telegram"
	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// Sender is the subset of the Bot API the dispatcher relies on.
type Sender interface {
	SendMessage(ctx context.Context, request telegram.SendMessageRequest) (telegram.Message, error)
	EditMessageText(ctx context.Context, request telegram.EditMessageTextRequest) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error
}

type DispatcherConfig struct {
	Sender   Sender
	ChatID   string
	Location *time.Location
	Timeout  time.Duration
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Dispatcher forwards notices to the operator chat. Its methods never return
// errors: delivery failures are logged and dropped so that callers' primary
// operations cannot fail because of messaging. Without a sender or chat id it
// is a no-op.
type Dispatcher struct {
	sender   Sender
	chatID   string
	location *time.Location
	timeout  time.Duration
	clock    func() time.Time
	logger   *zap.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sender:   cfg.Sender,
		chatID:   strings.TrimSpace(cfg.ChatID),
		location: location,
		timeout:  timeout,
		clock:    clock,
		logger:   logger,
	}
}

func (d *Dispatcher) Enabled() bool {
	return d != nil && d.sender != nil && d.chatID != ""
}

// Location is the time zone used for rendered timestamps.
func (d *Dispatcher) Location() *time.Location {
	return d.location
}

func (d *Dispatcher) NotifyVisitor(ctx context.Context, notice VisitorNotice) {
	if !d.Enabled() {
		return
	}
	d.Send(ctx, FormatVisitor(notice, d.clock().In(d.location)), nil)
}

func (d *Dispatcher) NotifyContact(ctx context.Context, notice ContactNotice) {
	if !d.Enabled() {
		return
	}
	d.Send(ctx, FormatContact(notice, d.clock().In(d.location)), nil)
}

// Send delivers text, optionally with inline controls, to the operator chat.
func (d *Dispatcher) Send(ctx context.Context, text string, markup *telegram.InlineKeyboardMarkup) {
	if !d.Enabled() {
		return
	}
	callCtx, cancel := d.deliveryContext(ctx)
	defer cancel()

	_, err := d.sender.SendMessage(callCtx, telegram.SendMessageRequest{
		ChatID:      d.chatID,
		Text:        text,
		ParseMode:   telegram.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		d.logger.Warn("telegram send failed", zap.Error(err))
	}
}

// Edit replaces the text and controls of a previously sent message.
func (d *Dispatcher) Edit(ctx context.Context, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) {
	if !d.Enabled() {
		return
	}
	callCtx, cancel := d.deliveryContext(ctx)
	defer cancel()

	err := d.sender.EditMessageText(callCtx, telegram.EditMessageTextRequest{
		ChatID:      d.chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   telegram.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		d.logger.Warn("telegram edit failed", zap.Int64("message_id", messageID), zap.Error(err))
	}
}

// Acknowledge closes the loading state of an inline button press.
func (d *Dispatcher) Acknowledge(ctx context.Context, callbackQueryID string) {
	if !d.Enabled() || callbackQueryID == "" {
		return
	}
	callCtx, cancel := d.deliveryContext(ctx)
	defer cancel()

	if err := d.sender.AnswerCallbackQuery(callCtx, callbackQueryID); err != nil {
		d.logger.Warn("telegram callback answer failed", zap.Error(err))
	}
}

// Delivery outlives the inbound request but is bounded by the dispatcher timeout.
func (d *Dispatcher) deliveryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
}
