// Package notifier
package notifier

// Notifier interface for sending notifications (e.g., Telegram, email).
type Notifier interface {
	Send(msg string) error
	SendWithRetry(msg string) error
	RetryWithNotification(action func() error, description string) error
}

// Nop drops every message. It is used when no Telegram token is configured.
type Nop struct{}

func (Nop) Send(string) error          { return nil }
func (Nop) SendWithRetry(string) error { return nil }

func (Nop) RetryWithNotification(action func() error, _ string) error {
	return action()
}

// New returns a Telegram notifier, or Nop when token is empty.
func New(token, chatID string, opts ...Option) Notifier {
	if token == "" {
		return Nop{}
	}
	return NewTelegramNotifier(token, chatID, opts...)
}
