package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	// NotifyOnOK also sends a message when nothing needs attention.
	NotifyOnOK bool
}

// TelegramMessage holds the data for a tablespace alert.
type TelegramMessage struct {
	Database  string
	CheckedAt time.Time
	Duration  time.Duration

	TotalFreeMB float64
	MinFreeMB   float64
	LowSpace    bool

	// Tablespaces at WARNING or CRITICAL, in query order.
	Alerts []ClassifiedEntry

	// Error info (if the run failed).
	ErrorMessage string
}

// Failed reports whether the message describes a failed run.
func (m TelegramMessage) Failed() bool {
	return m.ErrorMessage != ""
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}
