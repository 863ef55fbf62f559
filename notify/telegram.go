// Package notify pushes newly ingested signals to a Telegram chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// NewBotAPI connects to the Bot API at endpoint (tgbotapi.APIEndpoint when
// empty). Every request, including the initial getMe, is bounded by timeout.
func NewBotAPI(token, endpoint string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
}

type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(api *tgbotapi.BotAPI, chatID int64) *Telegram {
	return &Telegram{api: api, chatID: chatID}
}

// Notify sends text as a photo caption when image is present, otherwise as a
// plain message. text is Telegram HTML.
func (t *Telegram) Notify(ctx context.Context, text string, image []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.chatID == 0 {
		return errors.New("chat_id not set")
	}

	var c tgbotapi.Chattable
	if len(image) > 0 {
		photo := tgbotapi.NewPhoto(t.chatID, tgbotapi.FileBytes{Name: "signal.png", Bytes: image})
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeHTML
		c = photo
	} else {
		msg := tgbotapi.NewMessage(t.chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		c = msg
	}
	if _, err := t.api.Send(c); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
