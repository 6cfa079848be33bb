package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nayandeep999/truefeedback/internal/database/testutil"
	"github.com/nayandeep999/truefeedback/internal/models"
)

func newMessageService(t *testing.T, clock func() time.Time) (*MessageService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	opts := []MessageOption{}
	if clock != nil {
		opts = append(opts, WithMessageClock(clock))
	}

	svc, err := NewMessageService(db, opts...)
	require.NoError(t, err)

	return svc, db
}

func createRecipient(t *testing.T, db *gorm.DB, username string, accepting bool) *models.User {
	t.Helper()

	user := &models.User{
		Username:            username,
		Email:               username + "@example.com",
		Password:            "hashed",
		IsVerified:          true,
		IsAcceptingMessages: accepting,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestCanAccept(t *testing.T) {
	require.True(t, CanAccept(&models.User{IsAcceptingMessages: true}))
	require.False(t, CanAccept(&models.User{IsAcceptingMessages: false}))
	require.False(t, CanAccept(nil))
}

func TestSendDeliversMessage(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, db := newMessageService(t, func() time.Time { return current })
	user := createRecipient(t, db, "open", true)

	message, err := svc.Send(context.Background(), "Open", "What is your favourite book?")
	require.NoError(t, err)
	require.Equal(t, user.ID, message.UserID)
	require.NotEmpty(t, message.ID)
	require.True(t, message.CreatedAt.Equal(current))

	var count int64
	require.NoError(t, db.Model(&models.Message{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestSendRejectsClosedInbox(t *testing.T) {
	svc, db := newMessageService(t, nil)
	user := createRecipient(t, db, "closed", false)

	_, err := svc.Send(context.Background(), "closed", "Anyone home?")
	require.ErrorIs(t, err, ErrNotAcceptingMessages)

	var count int64
	require.NoError(t, db.Model(&models.Message{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestSendUnknownRecipient(t *testing.T) {
	svc, _ := newMessageService(t, nil)

	_, err := svc.Send(context.Background(), "nobody", "Hello out there")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestSendValidatesContentLength(t *testing.T) {
	svc, db := newMessageService(t, nil)
	createRecipient(t, db, "bounds", true)

	_, err := svc.Send(context.Background(), "bounds", "x")
	require.ErrorIs(t, err, ErrMessageTooShort)

	_, err = svc.Send(context.Background(), "bounds", strings.Repeat("y", MaxMessageLength+1))
	require.ErrorIs(t, err, ErrMessageTooLong)

	// Exactly at the bounds is accepted.
	_, err = svc.Send(context.Background(), "bounds", "ok")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), "bounds", strings.Repeat("z", MaxMessageLength))
	require.NoError(t, err)
}

func TestSendConcurrentDeliveriesAllLand(t *testing.T) {
	svc, db := newMessageService(t, nil)
	user := createRecipient(t, db, "busy", true)

	// Deliveries append independent rows, so none of them can clobber another.
	for i := 0; i < 10; i++ {
		_, err := svc.Send(context.Background(), "busy", "message number "+strings.Repeat("i", i+2))
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&models.Message{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.EqualValues(t, 10, count)
}

func TestListReturnsNewestFirst(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	svc, db := newMessageService(t, clock)
	user := createRecipient(t, db, "reader", true)

	first, err := svc.Send(context.Background(), "reader", "the first message")
	require.NoError(t, err)

	current = current.Add(time.Minute)
	second, err := svc.Send(context.Background(), "reader", "the second message")
	require.NoError(t, err)

	current = current.Add(time.Minute)
	third, err := svc.Send(context.Background(), "reader", "the third message")
	require.NoError(t, err)

	messages, err := svc.List(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	require.Equal(t, third.ID, messages[0].ID)
	require.Equal(t, second.ID, messages[1].ID)
	require.Equal(t, first.ID, messages[2].ID)
}

func TestListEmptyInbox(t *testing.T) {
	svc, db := newMessageService(t, nil)
	user := createRecipient(t, db, "quiet", true)

	messages, err := svc.List(context.Background(), user.ID)
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestDeleteIsScopedAndIdempotent(t *testing.T) {
	svc, db := newMessageService(t, nil)
	owner := createRecipient(t, db, "owner", true)
	other := createRecipient(t, db, "other", true)

	message, err := svc.Send(context.Background(), "owner", "delete me later")
	require.NoError(t, err)

	// Another user cannot delete the owner's message.
	removed, err := svc.Delete(context.Background(), other.ID, message.ID)
	require.NoError(t, err)
	require.Zero(t, removed)

	removed, err = svc.Delete(context.Background(), owner.ID, message.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	// Deleting again is a harmless no-op.
	removed, err = svc.Delete(context.Background(), owner.ID, message.ID)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestAcceptanceRoundTrip(t *testing.T) {
	svc, db := newMessageService(t, nil)
	user := createRecipient(t, db, "toggler", true)

	accepting, err := svc.Acceptance(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, accepting)

	stored, err := svc.SetAcceptance(context.Background(), user.ID, false)
	require.NoError(t, err)
	require.False(t, stored)

	// The next delivery attempt observes the new flag.
	_, err = svc.Send(context.Background(), "toggler", "too late")
	require.ErrorIs(t, err, ErrNotAcceptingMessages)

	stored, err = svc.SetAcceptance(context.Background(), user.ID, true)
	require.NoError(t, err)
	require.True(t, stored)

	_, err = svc.Send(context.Background(), "toggler", "welcome back")
	require.NoError(t, err)
}

func TestSetAcceptanceSameValueIsIdempotent(t *testing.T) {
	svc, db := newMessageService(t, nil)
	user := createRecipient(t, db, "steady", true)

	// Rewriting the current value must not be mistaken for a missing user:
	// MySQL reports zero affected rows for no-op updates.
	stored, err := svc.SetAcceptance(context.Background(), user.ID, true)
	require.NoError(t, err)
	require.True(t, stored)

	stored, err = svc.SetAcceptance(context.Background(), user.ID, true)
	require.NoError(t, err)
	require.True(t, stored)

	stored, err = svc.SetAcceptance(context.Background(), user.ID, false)
	require.NoError(t, err)
	require.False(t, stored)

	stored, err = svc.SetAcceptance(context.Background(), user.ID, false)
	require.NoError(t, err)
	require.False(t, stored)
}

func TestAcceptanceUnknownUser(t *testing.T) {
	svc, _ := newMessageService(t, nil)

	_, err := svc.Acceptance(context.Background(), "missing-id")
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.SetAcceptance(context.Background(), "missing-id", true)
	require.ErrorIs(t, err, ErrUserNotFound)
}
