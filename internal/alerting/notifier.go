package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification carries the content of an admissible alert.
type Notification struct {
	Timestamp      time.Time
	Symbol         string
	PriceA         decimal.Decimal
	PriceB         decimal.Decimal
	DiscrepancyPct decimal.Decimal
	ThresholdPct   decimal.Decimal
}

// Notifier delivers an alert to one channel.
type Notifier interface {
	Notify(ctx context.Context, note Notification) error
}

// MultiNotifier fans a notification out to several channels. Delivery
// counts as successful when at least one channel accepted it, so a flaky
// secondary channel cannot re-trigger the same alert.
type MultiNotifier struct {
	channels []Notifier
	logger   zerolog.Logger
}

// NewMultiNotifier combines the given channels.
func NewMultiNotifier(logger zerolog.Logger, channels ...Notifier) *MultiNotifier {
	return &MultiNotifier{
		channels: channels,
		logger:   logger.With().Str("component", "alert_multi").Logger(),
	}
}

// Notify delivers to every channel and fails only when all of them do.
func (m *MultiNotifier) Notify(ctx context.Context, note Notification) error {
	if len(m.channels) == 0 {
		return errors.New("no alert channels configured")
	}

	var errs []error
	for _, ch := range m.channels {
		if err := ch.Notify(ctx, note); err != nil {
			m.logger.Error().Err(err).Str("symbol", note.Symbol).Msg("channel delivery failed")
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m.channels) {
		return errors.Join(errs...)
	}
	return nil
}

// TelegramNotifier pushes alerts through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram channel.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify posts the alert text via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("symbol", note.Symbol).Msg("alert sent (telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[Price Discrepancy Alert] %s\n", note.Symbol))
	builder.WriteString(fmt.Sprintf("Alpha Vantage: $%s\n", note.PriceA.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Yahoo Finance: $%s\n", note.PriceB.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Discrepancy: %s%% (threshold %s%%)\n", note.DiscrepancyPct.StringFixed(2), note.ThresholdPct.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", note.Timestamp.UTC().Format(time.RFC3339)))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
var _ Notifier = (*MultiNotifier)(nil)
