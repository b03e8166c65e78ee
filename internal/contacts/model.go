package contacts

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageRunes bounds the length of a submitted message body.
const MaxMessageRunes = 2000

var (
	// ErrMissingFields indicates that name, email or message was blank.
	ErrMissingFields = errors.New("contacts: name, email, and message are required")
	// ErrMessageTooLong indicates a message body longer than MaxMessageRunes.
	ErrMessageTooLong = errors.New("contacts: message is too long")
	// ErrInvalidPage indicates a non-positive page number or page size.
	ErrInvalidPage = errors.New("contacts: page and page size must be positive")
	// ErrInvalidLimit indicates a non-positive list limit.
	ErrInvalidLimit = errors.New("contacts: limit must be positive")
)

// Message is a contact form submission. Rows are never updated or deleted.
type Message struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;type:text;not null" json:"name"`
	Email     string    `gorm:"column:email;type:text;not null" json:"email"`
	Body      string    `gorm:"column:message;type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_contacts_created" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "contacts"
}

// Page is one slice of the newest-first message listing.
type Page struct {
	Items      []Message
	Page       int
	PageSize   int
	TotalCount int64
	TotalPages int
}

// HasPrevious reports whether a page before this one exists.
func (p Page) HasPrevious() bool {
	return p.Page > 1 && p.TotalPages > 0
}

// HasNext reports whether a page after this one exists.
func (p Page) HasNext() bool {
	return p.Page < p.TotalPages
}

// SubmitRequest carries raw form input.
type SubmitRequest struct {
	Name    string
	Email   string
	Message string
}

// Normalize trims the fields and reports ErrMissingFields when any is blank
// or ErrMessageTooLong when the body exceeds MaxMessageRunes.
func (r SubmitRequest) Normalize() (SubmitRequest, error) {
	normalized := SubmitRequest{
		Name:    strings.TrimSpace(r.Name),
		Email:   strings.TrimSpace(r.Email),
		Message: strings.TrimSpace(r.Message),
	}
	if normalized.Name == "" || normalized.Email == "" || normalized.Message == "" {
		return SubmitRequest{}, ErrMissingFields
	}
	if utf8.RuneCountInString(normalized.Message) > MaxMessageRunes {
		return SubmitRequest{}, ErrMessageTooLong
	}
	return normalized, nil
}

func totalPages(totalCount int64, pageSize int) int {
	if totalCount <= 0 {
		return 0
	}
	size := int64(pageSize)
	return int((totalCount + size - 1) / size)
}

func validatePage(page, pageSize int) error {
	if page < 1 || pageSize < 1 {
		return ErrInvalidPage
	}
	return nil
}
