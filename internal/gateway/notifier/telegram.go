package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const telegramAPI = "https://api.telegram.org"

// Telegram 通过 Bot API sendMessage 推送到指定群/频道。
type Telegram struct {
	BotToken string
	ChatID   string
	BaseURL  string
	client   *resty.Client
}

func NewTelegram(botToken, chatID string, timeout time.Duration) *Telegram {
	return &Telegram{
		BotToken: strings.TrimSpace(botToken),
		ChatID:   strings.TrimSpace(chatID),
		BaseURL:  telegramAPI,
		client:   newRestClient(timeout),
	}
}

func (t *Telegram) SendText(text string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("Telegram 配置不完整")
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.BaseURL, "/"), t.BotToken)
	payload := map[string]any{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	_, err := postJSON(t.client, "telegram", url, payload)
	return err
}

func (t *Telegram) Notify(msg StructuredMessage) error {
	return t.SendText(msg.RenderMarkdown())
}
