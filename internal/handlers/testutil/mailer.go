package testutil

import (
	"context"
	"sync"

	"github.com/nayandeep999/truefeedback/pkg/mail"
)

// RecordingMailer captures outbound messages so tests can assert on their contents.
type RecordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
}

// Send records the message and always succeeds.
func (m *RecordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a snapshot of everything sent so far.
func (m *RecordingMailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mail.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Last returns the most recent message, or a zero value when none were sent.
func (m *RecordingMailer) Last() (mail.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return mail.Message{}, false
	}
	return m.messages[len(m.messages)-1], true
}
