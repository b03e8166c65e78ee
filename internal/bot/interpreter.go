// Package bot interprets operator commands received through the Telegram webhook.
package bot

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/contacts"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/telegram"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/visitors"
	"go.uber.org/zap"
)

// Messenger delivers replies to the operator chat.
type Messenger interface {
	Send(ctx context.Context, text string, markup *telegram.InlineKeyboardMarkup)
	Edit(ctx context.Context, messageID int64, text string, markup *telegram.InlineKeyboardMarkup)
	Acknowledge(ctx context.Context, callbackQueryID string)
}

type ContactLister interface {
	ListPaginated(ctx context.Context, page, pageSize int) (contacts.Page, error)
}

type StatsProvider interface {
	Stats(ctx context.Context, period visitors.Period) (visitors.Stats, error)
}

type Config struct {
	ChatID    string
	Messenger Messenger
	Contacts  ContactLister
	Visitors  StatsProvider
	Location  *time.Location
	Logger    *zap.Logger
}

// Interpreter answers commands from the single authorised chat. Updates from
// any other chat are discarded without a reply.
type Interpreter struct {
	chatID    string
	messenger Messenger
	contacts  ContactLister
	visitors  StatsProvider
	location  *time.Location
	logger    *zap.Logger
}

func NewInterpreter(cfg Config) *Interpreter {
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{
		chatID:    strings.TrimSpace(cfg.ChatID),
		messenger: cfg.Messenger,
		contacts:  cfg.Contacts,
		visitors:  cfg.Visitors,
		location:  location,
		logger:    logger,
	}
}

// Handle processes one webhook update. It never fails: problems are logged
// and, where possible, reported to the operator.
func (i *Interpreter) Handle(ctx context.Context, update telegram.Update) {
	if i == nil || i.chatID == "" || i.messenger == nil {
		return
	}
	switch {
	case update.CallbackQuery != nil:
		i.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		i.handleMessage(ctx, update.Message)
	}
}

func (i *Interpreter) authorised(chat telegram.Chat) bool {
	return chat.IDString() == i.chatID
}

func (i *Interpreter) handleMessage(ctx context.Context, message *telegram.Message) {
	if strings.TrimSpace(message.Text) == "" || !i.authorised(message.Chat) {
		return
	}

	command := NormalizeCommand(message.Text)
	switch command {
	case "/start", "/help":
		i.messenger.Send(ctx, helpText, nil)
	case "/messages":
		text, markup := i.messagesPage(ctx, 1)
		i.messenger.Send(ctx, text, markup)
	case "/daily", "/weekly", "/monthly", "/all":
		i.messenger.Send(ctx, i.statsSummary(ctx, strings.TrimPrefix(command, "/")), nil)
	default:
		i.messenger.Send(ctx, UnknownCommandText, nil)
	}
}

func (i *Interpreter) handleCallback(ctx context.Context, query *telegram.CallbackQuery) {
	if query.Message == nil || !i.authorised(query.Message.Chat) {
		return
	}
	i.messenger.Acknowledge(ctx, query.ID)

	page, ok := parsePageCallback(query.Data)
	if !ok {
		i.logger.Debug("ignoring callback", zap.String("data", query.Data))
		return
	}
	text, markup := i.messagesPage(ctx, page)
	i.messenger.Edit(ctx, query.Message.MessageID, text, markup)
}

func (i *Interpreter) messagesPage(ctx context.Context, page int) (string, *telegram.InlineKeyboardMarkup) {
	if i.contacts == nil {
		return FailureText, nil
	}
	result, err := i.contacts.ListPaginated(ctx, page, messagesPageSize)
	if err != nil {
		i.logger.Error("bot failed to list contacts", zap.Int("page", page), zap.Error(err))
		return FailureText, nil
	}
	return RenderMessagesPage(result, i.location)
}

func (i *Interpreter) statsSummary(ctx context.Context, rawPeriod string) string {
	period, err := visitors.ParsePeriod(rawPeriod)
	if err != nil || i.visitors == nil {
		return FailureText
	}
	stats, err := i.visitors.Stats(ctx, period)
	if err != nil {
		i.logger.Error("bot failed to compute stats", zap.String("period", rawPeriod), zap.Error(err))
		return FailureText
	}
	return RenderStats(stats)
}

// NormalizeCommand trims and lower-cases text and strips a trailing
// @botname mention. Arguments are kept so "/daily extra" stays unrecognized.
func NormalizeCommand(text string) string {
	command := strings.ToLower(strings.TrimSpace(text))
	if !strings.HasPrefix(command, "/") {
		return command
	}
	if name, mention, found := strings.Cut(command, "@"); found && mention != "" && !strings.ContainsFunc(mention, unicode.IsSpace) {
		return name
	}
	return command
}

func parsePageCallback(data string) (int, bool) {
	raw, found := strings.CutPrefix(data, callbackPrefix)
	if !found {
		return 0, false
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}
