package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/certificates"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/contacts"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/ratelimit"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/telegram"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/visitors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultContactLimit = 50
	maxContactLimit     = 100

	telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
	unknownAddress       = "Unknown"

	messageMissingFields   = "Name, email, and message are required"
	messageTooLong         = "Message is too long"
	messageRateLimited     = "Too many requests. Please try again later."
	messageSubmitFailed    = "Failed to process message"
	messageListFailed      = "Failed to fetch messages"
	messageInvalidLimit    = "limit must be a positive integer"
	messageCertificatesErr = "Unable to read certificates"
)

var (
	errMissingContactService = errors.New("contact service dependency required")
	errMissingVisitorTracker = errors.New("visitor tracker dependency required")
	errMissingCertificates   = errors.New("certificate source dependency required")
	errMissingLimiter        = errors.New("rate limiter dependency required")
)

type ContactService interface {
	Submit(ctx context.Context, request contacts.SubmitRequest) (contacts.Message, error)
	List(ctx context.Context, limit int) ([]contacts.Message, error)
}

type VisitorTracker interface {
	Track(ctx context.Context, request visitors.TrackRequest) (visitors.Event, error)
}

// UpdateHandler consumes Telegram webhook updates.
type UpdateHandler interface {
	Handle(ctx context.Context, update telegram.Update)
}

type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
}

type Dependencies struct {
	Contacts       ContactService
	Visitors       VisitorTracker
	Certificates   certificates.Source
	Limiter        ratelimit.Limiter
	RateLimit      RateLimitPolicy
	Bot            UpdateHandler
	WebhookSecret  string
	AllowedOrigins []string
	// TrustedProxies lists peers whose X-Forwarded-For is believed. Empty trusts none.
	TrustedProxies []string
	Clock          func() time.Time
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Contacts == nil {
		return nil, errMissingContactService
	}
	if deps.Visitors == nil {
		return nil, errMissingVisitorTracker
	}
	if deps.Certificates == nil {
		return nil, errMissingCertificates
	}
	if deps.Limiter == nil {
		return nil, errMissingLimiter
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	policy := deps.RateLimit
	if policy.Limit <= 0 {
		policy.Limit = 5
	}
	if policy.Window <= 0 {
		policy.Window = time.Minute
	}

	router := gin.New()
	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, fmt.Errorf("configure trusted proxies: %w", err)
	}
	router.Use(requestIDMiddleware())
	router.Use(accessLogMiddleware(logger))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		contacts:      deps.Contacts,
		visitors:      deps.Visitors,
		certificates:  deps.Certificates,
		limiter:       deps.Limiter,
		policy:        policy,
		bot:           deps.Bot,
		webhookSecret: strings.TrimSpace(deps.WebhookSecret),
		clock:         clock,
		logger:        logger,
	}

	router.GET("/healthz", handler.handleHealth)

	api := router.Group("/api")
	api.GET("/contacts", handler.handleListContacts)
	api.POST("/contacts", handler.handleSubmitContact)
	api.GET("/certificates", handler.handleListCertificates)
	api.POST("/track", handler.handleTrack)
	api.POST("/telegram/webhook", handler.handleTelegramWebhook)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

type httpHandler struct {
	contacts      ContactService
	visitors      VisitorTracker
	certificates  certificates.Source
	limiter       ratelimit.Limiter
	policy        RateLimitPolicy
	bot           UpdateHandler
	webhookSecret string
	clock         func() time.Time
	logger        *zap.Logger
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type contactRequestPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
	Website string `json:"website"`
}

type trackRequestPayload struct {
	Device  string `json:"device"`
	Browser string `json:"browser"`
	Page    string `json:"page"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleListContacts(c *gin.Context) {
	limit := defaultContactLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, envelope{Success: false, Error: messageInvalidLimit})
			return
		}
		limit = min(parsed, maxContactLimit)
	}

	messages, err := h.contacts.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list contacts", zap.String("request_id", requestID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, envelope{Success: false, Error: messageListFailed})
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true, Data: messages})
}

func (h *httpHandler) handleSubmitContact(c *gin.Context) {
	address := clientAddress(c)
	if !h.limiter.Admit(c.Request.Context(), address, h.policy.Limit, h.policy.Window) {
		h.logger.Info("contact submission rate limited", zap.String("client", address))
		c.JSON(http.StatusTooManyRequests, envelope{Success: false, Error: messageRateLimited})
		return
	}

	var payload contactRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: messageMissingFields})
		return
	}
	request, err := contacts.SubmitRequest{Name: payload.Name, Email: payload.Email, Message: payload.Message}.Normalize()
	if err != nil {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: validationMessage(err)})
		return
	}

	// Bots fill the hidden website field; answer as if stored.
	if strings.TrimSpace(payload.Website) != "" {
		now := h.clock().UTC()
		h.logger.Info("honeypot triggered", zap.String("client", address))
		c.JSON(http.StatusOK, envelope{Success: true, Data: contacts.Message{
			ID:        now.UnixMilli(),
			Name:      request.Name,
			Email:     request.Email,
			Body:      request.Message,
			CreatedAt: now,
		}})
		return
	}

	created, err := h.contacts.Submit(c.Request.Context(), request)
	if err != nil {
		if errors.Is(err, contacts.ErrMissingFields) || errors.Is(err, contacts.ErrMessageTooLong) {
			c.JSON(http.StatusBadRequest, envelope{Success: false, Error: validationMessage(err)})
			return
		}
		h.logger.Error("failed to submit contact", zap.String("request_id", requestID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, envelope{Success: false, Error: messageSubmitFailed})
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true, Data: created})
}

func validationMessage(err error) string {
	if errors.Is(err, contacts.ErrMessageTooLong) {
		return messageTooLong
	}
	return messageMissingFields
}

func (h *httpHandler) handleListCertificates(c *gin.Context) {
	list, err := h.certificates.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list certificates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": messageCertificatesErr})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *httpHandler) handleTrack(c *gin.Context) {
	var payload trackRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("failed to decode track payload", zap.String("request_id", requestID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, envelope{Success: false})
		return
	}

	_, err := h.visitors.Track(c.Request.Context(), visitors.TrackRequest{
		IP:      forwardedAddress(c),
		Device:  payload.Device,
		Browser: payload.Browser,
		Page:    payload.Page,
	})
	if err != nil {
		h.logger.Error("failed to track visitor", zap.String("request_id", requestID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, envelope{Success: false})
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true})
}

// The webhook always acknowledges so Telegram never redelivers an update.
func (h *httpHandler) handleTelegramWebhook(c *gin.Context) {
	if h.webhookSecret != "" && c.GetHeader(telegramSecretHeader) != h.webhookSecret {
		h.logger.Warn("telegram webhook secret mismatch", zap.String("client", clientAddress(c)))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.logger.Debug("ignoring malformed telegram update", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	if h.bot != nil {
		h.bot.Handle(c.Request.Context(), update)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// forwardedAddress returns the first X-Forwarded-For entry, or Unknown.
func forwardedAddress(c *gin.Context) string {
	forwarded := c.GetHeader("X-Forwarded-For")
	if forwarded == "" {
		return unknownAddress
	}
	first, _, _ := strings.Cut(forwarded, ",")
	if trimmed := strings.TrimSpace(first); trimmed != "" {
		return trimmed
	}
	return unknownAddress
}

// clientAddress is the rate limiting key. Forwarded headers count only when
// the peer is a trusted proxy.
func clientAddress(c *gin.Context) string {
	if address := c.ClientIP(); address != "" {
		return address
	}
	return unknownAddress
}
