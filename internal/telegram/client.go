// Package telegram provides the notification transport and bot command
// surface via the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/quantfold/smasentinel/internal/logger"
)

// StatusReport is the monitoring snapshot reported by /status. HasData is
// false until the first monitoring cycle has completed.
type StatusReport struct {
	Subscribed bool
	HasData    bool
	Price      float64
	SMAs       map[int]float64
	Periods    []int
	Chart      []byte
}

// Service is the command surface the bot delegates to.
type Service interface {
	Subscribe(chatID int64) (bool, error)
	Unsubscribe(chatID int64) (bool, error)
	Status(chatID int64) StatusReport
}

// Client handles Telegram sends and command polling.
type Client struct {
	bot            *tgbotapi.BotAPI
	symbol         string
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, symbol string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		symbol:         symbol,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and
// handles bot commands. It returns immediately; the goroutine stops when ctx
// is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, svc Service) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message, svc)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, svc Service) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		if _, err := svc.Subscribe(chatID); err != nil {
			logger.Error("Failed to subscribe chat %d: %v", chatID, err)
			return
		}
		c.reply(chatID, FormatSubscribeConfirmation(c.symbol))

	case "stop":
		if _, err := svc.Unsubscribe(chatID); err != nil {
			logger.Error("Failed to unsubscribe chat %d: %v", chatID, err)
			return
		}
		c.reply(chatID, FormatUnsubscribeConfirmation(c.symbol))

	case "status":
		report := svc.Status(chatID)
		if err := c.Send(chatID, FormatStatusMessage(c.symbol, report), report.Chart); err != nil {
			logger.Error("Failed to send status to chat %d: %v", chatID, err)
		}

	case "ping":
		c.reply(chatID, "Pong")
	}
}

func (c *Client) reply(chatID int64, text string) {
	if err := c.Send(chatID, text, nil); err != nil {
		logger.Error("Failed to reply to chat %d: %v", chatID, err)
	}
}

// Send delivers text to a chat, attached as a photo caption when image bytes
// are provided. Retries with linear backoff up to maxRetries.
func (c *Client) Send(chatID int64, text string, image []byte) error {
	var send func() error
	if len(image) > 0 {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "chart.png", Bytes: image})
		photo.Caption = text
		send = func() error {
			_, err := c.bot.Send(photo)
			return err
		}
	} else {
		msg := tgbotapi.NewMessage(chatID, text)
		send = func() error {
			_, err := c.bot.Send(msg)
			return err
		}
	}

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if lastErr = send(); lastErr == nil {
			return nil
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}
