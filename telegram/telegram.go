// Package telegram is the chat frontend: it turns incoming messages into job submissions and
// relays the pipeline's notifications back to the originating chats.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	video_relay "github.com/alanbriolat/video-relay"
)

const greetingText = "Hello! Send me a video link and I'll download it and upload it for you. " +
	"You can send multiple links, and I will process them one by one."

const rejectionText = "That doesn't look like a video link I can handle. Please send a direct video URL."

type Config struct {
	Token string
	Debug bool
	// UpdateTimeout is the long-poll timeout in seconds; 0 means 60.
	UpdateTimeout int
}

// submitter is the slice of the pipeline controller the frontend needs.
type submitter interface {
	Submit(reference string, recipient string) (*video_relay.Job, error)
}

// botAPI is the slice of tgbotapi.BotAPI the frontend uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
}

type Frontend struct {
	config        Config
	bot           botAPI
	controller    submitter
	notifications <-chan video_relay.Notification
	log           *zap.SugaredLogger
}

func New(config Config, controller submitter, notifications <-chan video_relay.Notification) (*Frontend, error) {
	bot, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connecting bot: %w", err)
	}
	bot.Debug = config.Debug
	zap.S().Named("telegram").Infof("authorized as @%s", bot.Self.UserName)
	return newFrontend(config, bot, controller, notifications), nil
}

func newFrontend(config Config, bot botAPI, controller submitter, notifications <-chan video_relay.Notification) *Frontend {
	if config.UpdateTimeout == 0 {
		config.UpdateTimeout = 60
	}
	return &Frontend{
		config:        config,
		bot:           bot,
		controller:    controller,
		notifications: notifications,
		log:           zap.S().Named("telegram"),
	}
}

// Run pumps updates and notifications until ctx ends or both sources close.
func (f *Frontend) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.receiveUpdates(ctx)
	}()
	go func() {
		defer wg.Done()
		f.deliverNotifications(ctx)
	}()
	wg.Wait()
}

func (f *Frontend) receiveUpdates(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = f.config.UpdateTimeout
	updates := f.bot.GetUpdatesChan(updateConfig)
	for {
		select {
		case <-ctx.Done():
			f.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			f.handleUpdate(update)
		}
	}
}

func (f *Frontend) handleUpdate(update tgbotapi.Update) {
	message := update.Message
	if message == nil {
		return
	}
	if message.IsCommand() {
		switch message.Command() {
		case "start", "help":
			f.send(message.Chat.ID, greetingText)
		}
		return
	}
	reference := strings.TrimSpace(message.Text)
	if reference == "" {
		return
	}
	recipient := strconv.FormatInt(message.Chat.ID, 10)
	job, err := f.controller.Submit(reference, recipient)
	if err != nil {
		f.log.Infow("rejected submission", "reference", reference, "error", err)
		f.send(message.Chat.ID, rejectionText)
		return
	}
	f.log.Infow("accepted submission", "reference", reference, "job_id", job.ID)
	f.send(message.Chat.ID, fmt.Sprintf("Received your link: %s\nAdding it to the queue...", reference))
}

func (f *Frontend) deliverNotifications(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-f.notifications:
			if !ok {
				return
			}
			chatID, err := strconv.ParseInt(n.Recipient, 10, 64)
			if err != nil {
				f.log.Warnf("notification for non-chat recipient %q dropped", n.Recipient)
				continue
			}
			f.send(chatID, n.Text)
		}
	}
}

func (f *Frontend) send(chatID int64, text string) {
	message := tgbotapi.NewMessage(chatID, text)
	message.DisableWebPagePreview = true
	if _, err := f.bot.Send(message); err != nil {
		f.log.Errorf("failed to send message to chat %d: %v", chatID, err)
	}
}
