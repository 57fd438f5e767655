// Package telegram provides a client for sending notifications via Telegram Bot API.
// It formats new draws and generated suggestions into MarkdownV2 messages, delivers
// them with retry logic, and answers /generate and /latest commands in the
// configured chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/lottoracle/internal/logger"
	"github.com/rewired-gh/lottoracle/internal/markov"
	"github.com/rewired-gh/lottoracle/internal/models"
	"github.com/rewired-gh/lottoracle/internal/storage"
)

// Generator produces suggestions for the /generate command.
type Generator interface {
	Generate(ctx context.Context) (markov.Suggestion, error)
}

// Store is the read side of the draw store used by /latest.
type Store interface {
	LoadAll() ([]models.Draw, error)
}

// botAPI is the subset of *tgbotapi.BotAPI the client uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client handles Telegram notifications
type Client struct {
	bot            botAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return newClient(bot, chatIDInt, maxRetries, retryDelayBase), nil
}

func newClient(bot botAPI, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// SendNewDraw announces a draw that was just appended to the store
func (c *Client) SendNewDraw(p models.PublishedDraw) error {
	return c.send(c.chatID, formatNewDraw(p))
}

// SendSuggestion sends a generated suggestion
func (c *Client) SendSuggestion(s markov.Suggestion) error {
	return c.send(c.chatID, formatSuggestion(s))
}

// SendError reports a failed update run
func (c *Client) SendError(err error) error {
	return c.send(c.chatID, formatError(err))
}

// SendRecovery reports that updates succeed again after a failure streak
func (c *Client) SendRecovery(failures int) error {
	return c.send(c.chatID, formatRecovery(failures))
}

// send delivers a MarkdownV2 message with retry
func (c *Client) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// ListenForCommands answers bot commands sent to the configured chat until ctx is done
func (c *Client) ListenForCommands(ctx context.Context, gen Generator, store Store) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := c.bot.GetUpdatesChan(u)
	defer c.bot.StopReceivingUpdates()

	logger.Info("Listening for Telegram commands")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			c.handleUpdate(ctx, update, gen, store)
		}
	}
}

func (c *Client) handleUpdate(ctx context.Context, update tgbotapi.Update, gen Generator, store Store) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	if msg.Chat == nil || msg.Chat.ID != c.chatID {
		logger.Debug("Ignoring command from chat %v", msg.Chat)
		return
	}

	var reply string
	switch msg.Command() {
	case "generate":
		suggestion, err := gen.Generate(ctx)
		if err != nil {
			logger.Warn("Generate command failed: %v", err)
			reply = formatGenerateError(err)
		} else {
			reply = formatSuggestion(suggestion)
		}
	case "latest":
		draws, err := store.LoadAll()
		if err != nil {
			logger.Warn("Latest command failed: %v", err)
			reply = formatGenerateError(err)
		} else {
			reply = formatLatest(draws)
		}
	case "start", "help":
		reply = formatHelp()
	default:
		return
	}

	if err := c.send(msg.Chat.ID, reply); err != nil {
		logger.Error("Failed to answer /%s: %v", msg.Command(), err)
	}
}

func formatNewDraw(p models.PublishedDraw) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🎱 *New draw \\#%d*\n\n", p.Round))
	b.WriteString(fmt.Sprintf("📅 %s\n", escapeMarkdownV2(p.Draw.DateString())))
	b.WriteString(fmt.Sprintf("🔢 *%s* \\+ %d\n", joinNumbers(p.Draw.Numbers[:]), p.Draw.Bonus))
	return b.String()
}

func formatSuggestion(s markov.Suggestion) string {
	var b strings.Builder
	b.WriteString("🔮 *Suggested numbers*\n\n")
	b.WriteString(fmt.Sprintf("`%s`\n", joinNumbers(s.Numbers)))
	if !s.Complete {
		b.WriteString(fmt.Sprintf("\n⚠️ Sampling stopped early with %d of %d numbers\n", len(s.Numbers), models.NumbersPerDraw))
	}
	if s.Attempts > 1 {
		b.WriteString(fmt.Sprintf("🔁 Attempts: %d\n", s.Attempts))
	}
	return b.String()
}

func formatLatest(draws []models.Draw) string {
	if len(draws) == 0 {
		return "📭 No draws stored yet"
	}
	latest := draws[len(draws)-1]
	return fmt.Sprintf("📅 Latest draw %s\n🔢 *%s* \\+ %d\n📚 %d draws stored\n",
		escapeMarkdownV2(latest.DateString()), joinNumbers(latest.Numbers[:]), latest.Bonus, len(draws))
}

func formatGenerateError(err error) string {
	if errors.Is(err, markov.ErrInsufficientData) || errors.Is(err, storage.ErrEmptyStore) {
		return "📭 No draw history available yet"
	}
	if errors.Is(err, storage.ErrDataUnavailable) {
		return "⚠️ Draw history is unavailable right now"
	}
	return "⚠️ Something went wrong, try again later"
}

func formatError(err error) string {
	return fmt.Sprintf("⚠️ *Draw update failed*\n\n%s\n", escapeMarkdownV2(err.Error()))
}

func formatRecovery(failures int) string {
	return fmt.Sprintf("✅ *Draw updates recovered* after %d failed attempt\\(s\\)\n", failures)
}

func formatHelp() string {
	return "/generate \\- suggest six numbers\n/latest \\- show the most recent stored draw\n"
}

// joinNumbers renders numbers space separated; digits need no escaping
func joinNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// \ _ * [ ] ( ) ~ ` > # + - = | { } . !
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '\\', '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
