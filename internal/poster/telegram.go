package poster

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const telegramAPI = "https://api.telegram.org/bot"

// Telegram posts a thread to one chat as a chain of reply messages.
// Images are sent with sendPhoto, so UploadImage only checks the file and
// hands its path on to PostText.
type Telegram struct {
	token   string
	chatID  int64
	apiBase string
	client  *resty.Client
}

// NewTelegram returns a Telegram backend for the bot token and chat.
func NewTelegram(token string, chatID int64) *Telegram {
	return newTelegram(token, chatID, telegramAPI)
}

func newTelegram(token string, chatID int64, apiBase string) *Telegram {
	return &Telegram{
		token:   token,
		chatID:  chatID,
		apiBase: apiBase,
		client:  resty.New().SetTimeout(30 * time.Second),
	}
}

func (b *Telegram) Name() string { return "telegram" }

func (b *Telegram) UploadImage(_ context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat image: %w", err)
	}
	return path, nil
}

// PostText sends text, as a photo caption when mediaID names an image
// file, and returns the message id.
func (b *Telegram) PostText(ctx context.Context, text, mediaID, replyTo string) (string, error) {
	if mediaID != "" {
		return b.sendPhoto(ctx, mediaID, text, replyTo)
	}
	return b.SendMessage(ctx, text, replyTo)
}

// SendMessage sends a text message to the chat.
func (b *Telegram) SendMessage(ctx context.Context, text, replyTo string) (string, error) {
	payload := map[string]interface{}{
		"chat_id": b.chatID,
		"text":    text,
	}
	if replyTo != "" {
		id, err := strconv.ParseInt(replyTo, 10, 64)
		if err != nil {
			return "", fmt.Errorf("reply id %q: %w", replyTo, err)
		}
		payload["reply_to_message_id"] = id
	}

	id, err := b.do(b.client.R().SetContext(ctx).SetBody(payload), "sendMessage")
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return id, nil
}

func (b *Telegram) sendPhoto(ctx context.Context, path, caption, replyTo string) (string, error) {
	form := map[string]string{"chat_id": strconv.FormatInt(b.chatID, 10)}
	if caption != "" {
		form["caption"] = caption
	}
	if replyTo != "" {
		form["reply_to_message_id"] = replyTo
	}

	id, err := b.do(b.client.R().SetContext(ctx).SetFormData(form).SetFile("photo", path), "sendPhoto")
	if err != nil {
		return "", fmt.Errorf("send photo: %w", err)
	}
	return id, nil
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func (b *Telegram) do(req *resty.Request, method string) (string, error) {
	var result telegramResponse
	resp, err := req.
		SetResult(&result).
		SetError(&result).
		ForceContentType("application/json").
		Post(b.apiBase + b.token + "/" + method)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 || !result.OK {
		return "", fmt.Errorf("telegram API error %d: %s", resp.StatusCode(), result.Description)
	}
	return strconv.FormatInt(result.Result.MessageID, 10), nil
}
