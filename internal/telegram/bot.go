package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/spigell/job-agent/internal/conversation"
)

// maxDocumentSize caps downloaded CV files. Anything a real resume needs
// fits well under this.
const maxDocumentSize = 20 << 20

const pollTimeout = 30

// Bot runs the long-polling loop and routes updates into the conversation
// manager. It also serves as the manager's Replier.
type Bot struct {
	api     *tgbotapi.BotAPI
	manager *conversation.Manager
	logger  *zap.Logger
	client  *http.Client
}

func NewBot(token string, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram api client: %w", err)
	}

	return &Bot{
		api:    api,
		logger: log,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// SetManager wires the conversation manager. The manager needs the bot as
// its Replier, so construction is split in two.
func (b *Bot) SetManager(m *conversation.Manager) {
	b.manager = m
}

// Send implements conversation.Replier. Private chats have chat ID equal to
// the user ID.
func (b *Bot) Send(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	_, err := b.api.Send(msg)
	return err
}

// Run consumes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("starting telegram bot", zap.String("username", b.api.Self.UserName))

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout

	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	// Group chats are out of scope.
	if !msg.Chat.IsPrivate() {
		return
	}

	userID := msg.From.ID

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, userID, msg.Command())
	case msg.Document != nil:
		b.handleDocument(ctx, userID, msg.Document)
	case msg.Text != "":
		b.manager.HandleMessage(ctx, userID, msg.Text)
	}
}

func (b *Bot) handleCommand(ctx context.Context, userID int64, command string) {
	switch command {
	case "start":
		b.manager.HandleStart(ctx, userID)
	case "cancel":
		b.manager.HandleCancel(ctx, userID)
	case "help":
		b.manager.HandleHelp(ctx, userID)
	default:
		b.logger.Debug("ignoring unknown command",
			zap.Int64("user_id", userID),
			zap.String("command", command),
		)
	}
}

func (b *Bot) handleDocument(ctx context.Context, userID int64, doc *tgbotapi.Document) {
	log := b.logger.With(zap.Int64("user_id", userID), zap.String("filename", doc.FileName))

	data, err := b.download(ctx, doc.FileID)
	if err != nil {
		log.Error("downloading document failed", zap.Error(err))
		if err := b.Send(userID, "I couldn't download that file. Please try sending it again."); err != nil {
			log.Error("sending reply failed", zap.Error(err))
		}
		return
	}

	log.Info("document received", zap.Int("size", len(data)))
	b.manager.HandleDocument(ctx, userID, data, doc.FileName)
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolving file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching file: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading file body: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("file exceeds %d bytes", maxDocumentSize)
	}

	return data, nil
}
