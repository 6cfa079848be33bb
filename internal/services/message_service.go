package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/nayandeep999/truefeedback/internal/models"
	apperrors "github.com/nayandeep999/truefeedback/pkg/errors"
	"github.com/nayandeep999/truefeedback/pkg/metrics"
)

// Message content bounds enforced at delivery time.
const (
	MinMessageLength = 2
	MaxMessageLength = 300
)

var (
	// ErrNotAcceptingMessages is returned when the recipient has closed their inbox.
	ErrNotAcceptingMessages = apperrors.New("NOT_ACCEPTING_MESSAGES", "User is not accepting messages", http.StatusForbidden)
	// ErrMessageTooShort rejects content below the minimum length.
	ErrMessageTooShort = apperrors.New("MESSAGE_TOO_SHORT", fmt.Sprintf("Message must be at least %d characters", MinMessageLength), http.StatusBadRequest)
	// ErrMessageTooLong rejects content above the maximum length.
	ErrMessageTooLong = apperrors.New("MESSAGE_TOO_LONG", fmt.Sprintf("Message must be no longer than %d characters", MaxMessageLength), http.StatusBadRequest)
)

// MessageOption customises the MessageService.
type MessageOption func(*MessageService)

// WithMessageClock injects a custom time source.
func WithMessageClock(clock func() time.Time) MessageOption {
	return func(s *MessageService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// MessageService handles anonymous message delivery and inbox management.
type MessageService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMessageService constructs a MessageService instance.
func NewMessageService(db *gorm.DB, opts ...MessageOption) (*MessageService, error) {
	if db == nil {
		return nil, errors.New("message service: db is required")
	}

	service := &MessageService{
		db:  db,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// CanAccept reports whether the user's inbox is open. The decision depends
// only on the acceptance flag, so a toggle takes effect on the next delivery.
func CanAccept(user *models.User) bool {
	return user != nil && user.IsAcceptingMessages
}

// ValidateContent enforces the message length bounds.
func ValidateContent(content string) error {
	length := utf8.RuneCountInString(content)
	if length < MinMessageLength {
		return ErrMessageTooShort
	}
	if length > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// Send delivers an anonymous message to the named recipient. Each delivery
// inserts a single row, so concurrent senders never overwrite each other's
// messages. Delivery is refused when the recipient's inbox is closed.
func (s *MessageService) Send(ctx context.Context, username, content string) (*models.Message, error) {
	ctx = ensureContext(ctx)

	if err := ValidateContent(content); err != nil {
		metrics.MessagesRejected.WithLabelValues("invalid").Inc()
		return nil, err
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("LOWER(username) = LOWER(?)", strings.TrimSpace(username)).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.MessagesRejected.WithLabelValues("not_found").Inc()
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("message service: find recipient: %w", err)
	}

	if !CanAccept(&user) {
		metrics.MessagesRejected.WithLabelValues("not_accepting").Inc()
		return nil, ErrNotAcceptingMessages
	}

	message := &models.Message{
		UserID:  user.ID,
		Content: content,
	}
	message.CreatedAt = s.now()

	if err := s.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, fmt.Errorf("message service: create message: %w", err)
	}

	metrics.MessagesDelivered.Inc()
	return message, nil
}

// List returns the user's messages, newest first. Ties on the timestamp are
// broken by id so the ordering is stable across fetches.
func (s *MessageService) List(ctx context.Context, userID string) ([]models.Message, error) {
	ctx = ensureContext(ctx)

	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("message service: list messages: %w", err)
	}

	return messages, nil
}

// Delete removes one of the user's messages and reports how many rows were
// affected. Deleting a message that is already gone, or that belongs to
// another user, affects zero rows and is not an error.
func (s *MessageService) Delete(ctx context.Context, userID, messageID string) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", messageID, userID).
		Delete(&models.Message{})
	if result.Error != nil {
		return 0, fmt.Errorf("message service: delete message: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// Acceptance reads the user's message acceptance flag.
func (s *MessageService) Acceptance(ctx context.Context, userID string) (bool, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrUserNotFound
	}
	if err != nil {
		return false, fmt.Errorf("message service: get acceptance: %w", err)
	}

	return user.IsAcceptingMessages, nil
}

// SetAcceptance updates the acceptance flag and returns the value that was
// actually stored.
func (s *MessageService) SetAcceptance(ctx context.Context, userID string, accept bool) (bool, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_accepting_messages", accept)
	if result.Error != nil {
		return false, fmt.Errorf("message service: set acceptance: %w", result.Error)
	}

	// Existence is resolved via the re-read rather than RowsAffected: MySQL
	// reports changed rows by default, so rewriting the current value would
	// look like a missing user.
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrUserNotFound
	}
	if err != nil {
		return false, fmt.Errorf("message service: reload acceptance: %w", err)
	}

	return user.IsAcceptingMessages, nil
}
