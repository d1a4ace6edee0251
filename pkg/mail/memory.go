package mail

import (
	"context"
	"sync"
)

// MemoryMailer records messages instead of delivering them. It backs local
// development and tests.
type MemoryMailer struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

// NewMemoryMailer returns an empty recording mailer.
func NewMemoryMailer() *MemoryMailer {
	return &MemoryMailer{}
}

// Send records msg, or returns the configured failure without recording.
func (m *MemoryMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	msg.To = append([]string(nil), msg.To...)
	m.messages = append(m.messages, msg)
	return nil
}

// FailWith makes subsequent sends fail with err. Pass nil to restore delivery.
func (m *MemoryMailer) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Messages returns a snapshot of the recorded messages.
func (m *MemoryMailer) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Last returns the most recently recorded message.
func (m *MemoryMailer) Last() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return Message{}, false
	}
	return m.messages[len(m.messages)-1], true
}
