//go:build e2e

package e2e

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/fgeck/check-oracle-tbs/internal/models"
	"github.com/fgeck/check-oracle-tbs/internal/services/telegram"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func getTelegramConfig(t *testing.T) models.TelegramConfig {
	t.Helper()

	botToken := os.Getenv("TEST_TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		t.Skip("TEST_TELEGRAM_BOT_TOKEN not set")
	}

	chatID := os.Getenv("TEST_TELEGRAM_CHAT_ID")
	if chatID == "" {
		t.Skip("TEST_TELEGRAM_CHAT_ID not set")
	}

	return models.TelegramConfig{
		BotToken: botToken,
		ChatID:   chatID,
	}
}

func TestTelegramSendAlertNotification_E2E(t *testing.T) {
	cfg := getTelegramConfig(t)

	svc := telegram.New(testLogger())

	msg := models.TelegramMessage{
		Database:    "e2e-db.local:1521/ORCLPDB1",
		CheckedAt:   time.Now().Add(-3 * time.Second),
		Duration:    3 * time.Second,
		TotalFreeMB: 512.25,
		MinFreeMB:   1024,
		LowSpace:    true,
		Alerts: []models.ClassifiedEntry{
			{Stat: models.TablespaceStat{Name: "USERS", PercentUsed: 91.5, FreeKB: 40960}, Severity: models.SeverityWarning},
			{Stat: models.TablespaceStat{Name: "DATA_<01>", PercentUsed: 98.2, FreeKB: 10240}, Severity: models.SeverityCritical},
		},
	}

	result, err := svc.SendNotification(context.Background(), cfg, msg)

	require.NoError(t, err)
	assert.True(t, result.MessageSent)
	assert.Nil(t, result.Error)
}

func TestTelegramSendFailureNotification_E2E(t *testing.T) {
	cfg := getTelegramConfig(t)

	svc := telegram.New(testLogger())

	msg := models.TelegramMessage{
		Database:     "e2e-db.local:1521/ORCLPDB1",
		CheckedAt:    time.Now().Add(-30 * time.Second),
		Duration:     30 * time.Second,
		ErrorMessage: "connection error: connecting to e2e-db.local:1521/ORCLPDB1: i/o timeout",
	}

	result, err := svc.SendNotification(context.Background(), cfg, msg)

	require.NoError(t, err)
	assert.True(t, result.MessageSent)
	assert.Nil(t, result.Error)
}

func TestTelegramInvalidToken_E2E(t *testing.T) {
	cfg := models.TelegramConfig{
		BotToken: "invalid:token",
		ChatID:   "-100123456789",
	}

	svc := telegram.New(testLogger())

	msg := models.TelegramMessage{
		Database: "test",
	}

	result, err := svc.SendNotification(context.Background(), cfg, msg)

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	assert.NotNil(t, result.Error)
}

func TestTelegramInvalidChatID_E2E(t *testing.T) {
	botToken := os.Getenv("TEST_TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		t.Skip("TEST_TELEGRAM_BOT_TOKEN not set")
	}

	cfg := models.TelegramConfig{
		BotToken: botToken,
		ChatID:   "invalid-chat-id",
	}

	svc := telegram.New(testLogger())

	result, err := svc.SendNotification(context.Background(), cfg, models.TelegramMessage{Database: "test"})

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	assert.NotNil(t, result.Error)
}
