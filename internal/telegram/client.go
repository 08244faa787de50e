// Package telegram provides a client for pushing flagged anomalies via the
// Telegram Bot API. It formats anomaly records into a human-readable message
// and handles delivery with retry logic for rate limiting and network
// failures.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/torrenbaker/nba-rebound-tracker/internal/models"
)

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendAnomalies sends one message covering the newly flagged anomalies for a
// game. matchup is a display label like "Lakers @ Celtics".
func (c *Client) SendAnomalies(matchup string, anomalies []models.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(c.chatID, formatMessage(matchup, anomalies))
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatMessage formats anomalies into a Telegram message
func formatMessage(matchup string, anomalies []models.Anomaly) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("*Rebound anomalies: %s*\n\n", escapeMarkdownV2(matchup)))

	for i, a := range anomalies {
		label := "No rebound credited"
		if a.Reason == models.ReasonTeamRebound {
			label = "Team rebound misattribution"
		}
		b.WriteString(fmt.Sprintf("%d\\. Q%d %s: %s\n", i+1, a.Period, escapeMarkdownV2(a.Clock), escapeMarkdownV2(label)))
		if a.Description != "" {
			b.WriteString(fmt.Sprintf("   %s\n", escapeMarkdownV2(a.Description)))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
