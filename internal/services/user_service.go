package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nayandeep999/truefeedback/internal/models"
	"github.com/nayandeep999/truefeedback/pkg/crypto"
	apperrors "github.com/nayandeep999/truefeedback/pkg/errors"
	"github.com/nayandeep999/truefeedback/pkg/logger"
	"github.com/nayandeep999/truefeedback/pkg/mail"
	"github.com/nayandeep999/truefeedback/pkg/metrics"
)

const (
	defaultVerifyCodeExpiry = time.Hour
	verifyCodeDigits        = 6
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrUsernameTaken signals that a verified account already owns the username.
	ErrUsernameTaken = apperrors.New("USERNAME_TAKEN", "Username is already taken", http.StatusConflict)
	// ErrEmailTaken signals that a verified account is already registered with the email.
	ErrEmailTaken = apperrors.New("EMAIL_TAKEN", "User already exists with this email", http.StatusConflict)
	// ErrInvalidVerifyCode is returned when the submitted code does not match.
	ErrInvalidVerifyCode = apperrors.New("INVALID_VERIFY_CODE", "Verification code is incorrect", http.StatusBadRequest)
	// ErrVerifyCodeExpired is returned when the code's validity window has passed.
	ErrVerifyCodeExpired = apperrors.New("VERIFY_CODE_EXPIRED", "Verification code has expired. Please sign up again to get a new code", http.StatusBadRequest)
)

// UserOption customises the UserService.
type UserOption func(*UserService)

// WithVerifyCodeExpiry overrides the verification code lifetime.
func WithVerifyCodeExpiry(d time.Duration) UserOption {
	return func(s *UserService) {
		if d > 0 {
			s.codeExpiry = d
		}
	}
}

// WithUserClock injects a custom time source.
func WithUserClock(clock func() time.Time) UserOption {
	return func(s *UserService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithAppName sets the product name used in verification emails.
func WithAppName(name string) UserOption {
	return func(s *UserService) {
		if strings.TrimSpace(name) != "" {
			s.appName = strings.TrimSpace(name)
		}
	}
}

// UserService manages registration, verification, and authentication of
// message recipients.
type UserService struct {
	db         *gorm.DB
	mailer     mail.Mailer
	codeExpiry time.Duration
	appName    string
	now        func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, mailer mail.Mailer, opts ...UserOption) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}

	service := &UserService{
		db:         db,
		mailer:     mailer,
		codeExpiry: defaultVerifyCodeExpiry,
		appName:    "True Feedback",
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// RegisterInput describes the fields accepted when registering.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register provisions an account and dispatches a verification code. A
// username held by an unverified account may be claimed again: the stale
// registration is overwritten with fresh credentials and a new code. A
// verified account's username or email cannot be reused.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	code, err := crypto.GenerateNumericCode(verifyCodeDigits)
	if err != nil {
		return nil, fmt.Errorf("user service: generate verify code: %w", err)
	}

	now := s.now()
	expiry := now.Add(s.codeExpiry)

	var user *models.User

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var byUsername models.User
		err := tx.Where("LOWER(username) = LOWER(?)", username).Take(&byUsername).Error
		switch {
		case err == nil && byUsername.IsVerified:
			return ErrUsernameTaken
		case err == nil:
			// Stale unverified claim on this username: take it over.
			byUsername.Username = username
			byUsername.Email = email
			byUsername.Password = hashed
			byUsername.VerifyCode = code
			byUsername.VerifyCodeExpiresAt = &expiry
			if saveErr := tx.Save(&byUsername).Error; saveErr != nil {
				if isUniqueConstraintError(saveErr) {
					return ErrEmailTaken
				}
				return saveErr
			}
			user = &byUsername
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		var byEmail models.User
		err = tx.Where("LOWER(email) = ?", email).Take(&byEmail).Error
		switch {
		case err == nil && byEmail.IsVerified:
			return ErrEmailTaken
		case err == nil:
			byEmail.Username = username
			byEmail.Password = hashed
			byEmail.VerifyCode = code
			byEmail.VerifyCodeExpiresAt = &expiry
			if saveErr := tx.Save(&byEmail).Error; saveErr != nil {
				return saveErr
			}
			user = &byEmail
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		fresh := &models.User{
			Username:            username,
			Email:               email,
			Password:            hashed,
			VerifyCode:          code,
			VerifyCodeExpiresAt: &expiry,
			IsAcceptingMessages: true,
		}
		if createErr := tx.Create(fresh).Error; createErr != nil {
			if isUniqueConstraintError(createErr) {
				return ErrUsernameTaken
			}
			return createErr
		}
		user = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Email dispatch failures must not roll back the registration; the user
	// can re-register to receive a fresh code.
	if sendErr := s.sendVerificationEmail(ctx, user, code); sendErr != nil && !errors.Is(sendErr, mail.ErrSMTPDisabled) {
		logger.Warn("failed to send verification email",
			zap.String("username", user.Username),
			zap.Error(sendErr),
		)
	}

	return user, nil
}

// VerifyCode promotes an account to verified when the submitted code matches
// and has not expired.
func (s *UserService) VerifyCode(ctx context.Context, username, code string) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.findByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if user.IsVerified {
		return user, nil
	}

	if user.VerifyCode == "" || user.VerifyCode != strings.TrimSpace(code) {
		return nil, ErrInvalidVerifyCode
	}

	if user.VerifyCodeExpiresAt == nil || s.now().After(*user.VerifyCodeExpiresAt) {
		return nil, ErrVerifyCodeExpired
	}

	updates := map[string]any{
		"is_verified":            true,
		"verify_code":            "",
		"verify_code_expires_at": nil,
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: mark verified: %w", err)
	}

	user.IsVerified = true
	user.VerifyCode = ""
	user.VerifyCodeExpiresAt = nil
	return user, nil
}

// IsUsernameAvailable reports whether no verified account holds the username.
// A pending unverified registration does not block a claim.
func (s *UserService) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	ctx = ensureContext(ctx)

	username = strings.TrimSpace(username)
	if username == "" {
		return false, apperrors.NewBadRequest("username is required")
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("LOWER(username) = LOWER(?) AND is_verified = ?", username, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("user service: check username: %w", err)
	}

	return count == 0, nil
}

// Authenticate validates credentials for a username or email identifier.
// Unverified accounts are rejected until the emailed code is confirmed.
func (s *UserService) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("LOWER(username) = LOWER(?) OR LOWER(email) = LOWER(?)", identifier, identifier).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("user service: find user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsVerified {
		metrics.AuthAttempts.WithLabelValues("unverified").Inc()
		return nil, apperrors.ErrAccountNotVerified
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		logger.Warn("failed to record last login", zap.Error(err))
	}
	user.LastLoginAt = &now

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &user, nil
}

// GetByID loads a user by primary key.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// CleanupExpiredVerifications deletes unverified accounts whose code expired,
// freeing their usernames and emails for new registrations.
func (s *UserService) CleanupExpiredVerifications(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("is_verified = ? AND verify_code_expires_at < ?", false, s.now()).
		Delete(&models.User{})
	if result.Error != nil {
		return 0, fmt.Errorf("user service: cleanup expired verifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *UserService) findByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUserNotFound
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("LOWER(username) = LOWER(?)", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: find user: %w", err)
	}
	return &user, nil
}

func (s *UserService) sendVerificationEmail(ctx context.Context, user *models.User, code string) error {
	if s.mailer == nil {
		return nil
	}

	body := fmt.Sprintf(
		"Hello %s,\r\n\r\nThank you for registering with %s. Use the following verification code to complete your registration:\r\n\r\n    %s\r\n\r\nThe code expires in %s. If you did not request this, please ignore this email.\r\n",
		user.Username, s.appName, code, formatExpiry(s.codeExpiry),
	)

	return s.mailer.Send(ctx, mail.Message{
		To:      []string{user.Email},
		Subject: fmt.Sprintf("%s | Verification code", s.appName),
		Body:    body,
	})
}

func formatExpiry(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}
