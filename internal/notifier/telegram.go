package notifier

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/utils"
)

const defaultAPIURL = "https://api.telegram.org"

type TelegramNotifier struct {
	Token  string
	ChatID string

	apiURL  string
	client  *http.Client
	retries int
	delay   time.Duration
}

type Option func(*TelegramNotifier)

// WithRetry sets how many times a message is attempted and the pause between attempts.
func WithRetry(retries int, delay time.Duration) Option {
	return func(t *TelegramNotifier) {
		if retries > 0 {
			t.retries = retries
		}
		t.delay = delay
	}
}

// WithAPIURL points the notifier at another Bot API endpoint.
func WithAPIURL(u string) Option {
	return func(t *TelegramNotifier) { t.apiURL = u }
}

func NewTelegramNotifier(token, chatID string, opts ...Option) *TelegramNotifier {
	t := &TelegramNotifier{
		Token:   token,
		ChatID:  chatID,
		apiURL:  defaultAPIURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		retries: 3,
		delay:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TelegramNotifier) Send(message string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.Token)
	resp, err := t.client.PostForm(apiURL, url.Values{
		"chat_id": {t.ChatID},
		"text":    {message},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send failed: %s", resp.Status)
	}
	return nil
}

func (t *TelegramNotifier) SendWithRetry(message string) error {
	var errs []error
	for attempt := 1; attempt <= t.retries; attempt++ {
		err := t.Send(message)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
		utils.GetLogger().Warn().Err(err).Int("attempt", attempt).Msg("Telegram notification failed")
		if attempt < t.retries {
			time.Sleep(t.delay)
		}
	}
	return fmt.Errorf("telegram notification failed after %d attempts: %w", t.retries, errors.Join(errs...))
}

// RetryWithNotification runs action up to the configured number of times and
// reports the final failure to the chat.
func (t *TelegramNotifier) RetryWithNotification(action func() error, description string) error {
	var err error
	for attempt := 1; attempt <= t.retries; attempt++ {
		if err = action(); err == nil {
			return nil
		}
		if attempt < t.retries {
			time.Sleep(t.delay)
		}
	}
	if nerr := t.SendWithRetry(fmt.Sprintf("%s failed after %d attempts: %v", description, t.retries, err)); nerr != nil {
		utils.GetLogger().Error().Err(nerr).Str("action", description).Msg("Could not report failure")
	}
	return err
}
