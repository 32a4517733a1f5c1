// Package telegram sends tablespace alerts to a Telegram chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fgeck/check-oracle-tbs/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for Telegram notification operations.
type Service interface {
	SendNotification(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) (*models.TelegramResult, error)
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the Telegram Service interface.
type Impl struct {
	httpClient HTTPClient
	logger     zerolog.Logger
	baseURL    string
}

// New creates a new Telegram service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		baseURL: "https://api.telegram.org",
	}
}

// NewWithClient creates a new Telegram service with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient, baseURL string) *Impl {
	return &Impl{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// sendMessageRequest is the request body for Telegram sendMessage API.
type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendNotification sends a tablespace alert via Telegram.
func (s *Impl) SendNotification(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) (*models.TelegramResult, error) {
	result := &models.TelegramResult{}

	s.logger.Info().
		Str("chat_id", cfg.ChatID).
		Int("alerts", len(msg.Alerts)).
		Bool("low_space", msg.LowSpace).
		Bool("failed", msg.Failed()).
		Msg("sending Telegram notification")

	// Format message
	text := s.formatMessage(msg)

	// Build request
	reqBody := sendMessageRequest{
		ChatID:    cfg.ChatID,
		Text:      text,
		ParseMode: "HTML",
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		result.Error = fmt.Errorf("failed to marshal request: %w", err)
		return result, nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, cfg.BotToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		result.Error = fmt.Errorf("failed to create request: %w", err)
		return result, nil
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("failed to send request: %w", err)
		return result, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("telegram API returned status %d", resp.StatusCode)
		return result, nil
	}

	result.MessageSent = true
	s.logger.Info().Msg("Telegram notification sent successfully")

	return result, nil
}

// ShouldNotify reports whether msg is worth sending under cfg.
func ShouldNotify(cfg models.TelegramConfig, msg models.TelegramMessage) bool {
	return cfg.NotifyOnOK || msg.Failed() || msg.LowSpace || len(msg.Alerts) > 0
}

func (s *Impl) formatMessage(msg models.TelegramMessage) string {
	var b bytes.Buffer

	switch {
	case msg.Failed():
		b.WriteString("\u274c <b>Tablespace Check Failed</b>\n\n")
	case msg.LowSpace || hasSeverity(msg.Alerts, models.SeverityCritical):
		b.WriteString("\U0001F6A8 <b>Tablespace Critical</b>\n\n")
	case len(msg.Alerts) > 0:
		b.WriteString("\u26a0\ufe0f <b>Tablespace Warning</b>\n\n")
	default:
		b.WriteString("\u2705 <b>Tablespaces OK</b>\n\n")
	}

	// Basic info
	b.WriteString(fmt.Sprintf("<b>Database:</b> %s\n", escapeHTML(msg.Database)))
	b.WriteString(fmt.Sprintf("<b>Checked:</b> %s\n", msg.CheckedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("<b>Duration:</b> %s\n", msg.Duration.Round(time.Millisecond)))

	if msg.Failed() {
		b.WriteString("\n<b>Error Details:</b>\n")
		b.WriteString(fmt.Sprintf("  \u2022 Error: <code>%s</code>\n", escapeHTML(msg.ErrorMessage)))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("<b>Remaining free space:</b> %s\n", formatBytes(int64(msg.TotalFreeMB*1024*1024))))
	if msg.LowSpace {
		b.WriteString(fmt.Sprintf("<b>Below floor of:</b> %s\n", formatBytes(int64(msg.MinFreeMB*1024*1024))))
	}

	if len(msg.Alerts) > 0 {
		b.WriteString("\n<b>Tablespaces:</b>\n")
		for _, alert := range msg.Alerts {
			b.WriteString(fmt.Sprintf("  \u2022 %s <b>%s</b> %.2f%% used, %s free\n",
				escapeHTML(alert.Stat.Name),
				alert.Severity,
				alert.Stat.PercentUsed,
				formatBytes(int64(alert.Stat.FreeKB*1024))))
		}
	}

	return b.String()
}

func hasSeverity(entries []models.ClassifiedEntry, severity models.Severity) bool {
	for _, e := range entries {
		if e.Severity == severity {
			return true
		}
	}
	return false
}

// escapeHTML escapes HTML special characters.
func escapeHTML(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// formatBytes formats bytes into human-readable format.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
