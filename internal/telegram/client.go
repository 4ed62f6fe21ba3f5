// Package telegram — адаптер Bot API поверх net/http: длинный опрос
// getUpdates и отправка сообщений. Вся маршрутизация остаётся в engine,
// адаптер только конвертирует обновления в события транспорта и обратно.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/psds-microservice/support-bridge/internal/transport"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	pollTimeout    = 30 * time.Second
)

// Client — клиент Telegram Bot API, реализует transport.Transport.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient возвращает клиент. baseURL пустой = api.telegram.org
// (переопределяется в тестах).
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		httpClient: &http.Client{
			// Дольше таймаута длинного опроса, иначе getUpdates обрывается.
			Timeout: pollTimeout + 10*time.Second,
		},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, payload interface{}, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal %s: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: new request %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()
	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("telegram: decode %s: %w", method, err)
	}
	if !api.OK {
		return fmt.Errorf("telegram: %s: %s", method, api.Description)
	}
	if result != nil {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("telegram: unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// ---- типы Bot API (только используемые поля) ----

type update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *message       `json:"message"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

type message struct {
	MessageID       int64      `json:"message_id"`
	From            *tgUser    `json:"from"`
	Chat            chat       `json:"chat"`
	MessageThreadID int64      `json:"message_thread_id"`
	ReplyToMessage  *message   `json:"reply_to_message"`
	Text            string     `json:"text"`
	Caption         string     `json:"caption"`
	Photo           []photo    `json:"photo"`
	Video           *mediaFile `json:"video"`
	Document        *mediaFile `json:"document"`
	Voice           *mediaFile `json:"voice"`
	Audio           *mediaFile `json:"audio"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type photo struct {
	FileID string `json:"file_id"`
}

type mediaFile struct {
	FileID string `json:"file_id"`
}

type callbackQuery struct {
	ID      string   `json:"id"`
	From    *tgUser  `json:"from"`
	Message *message `json:"message"`
	Data    string   `json:"data"`
}

// extractContent выбирает ровно один вид содержимого, приоритет:
// photo > video > document > voice > audio > text.
func extractContent(m *message) transport.Content {
	switch {
	case len(m.Photo) > 0:
		// Telegram присылает несколько размеров, последний — наибольший.
		return transport.Content{Kind: transport.ContentPhoto, FileID: m.Photo[len(m.Photo)-1].FileID}
	case m.Video != nil:
		return transport.Content{Kind: transport.ContentVideo, FileID: m.Video.FileID}
	case m.Document != nil:
		return transport.Content{Kind: transport.ContentDocument, FileID: m.Document.FileID}
	case m.Voice != nil:
		return transport.Content{Kind: transport.ContentVoice, FileID: m.Voice.FileID}
	case m.Audio != nil:
		return transport.Content{Kind: transport.ContentAudio, FileID: m.Audio.FileID}
	case m.Text != "":
		return transport.Text(m.Text)
	}
	return transport.Content{}
}

// commandName возвращает имя команды без «/» и упоминания бота, либо "".
func commandName(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return name
}

func sender(u *tgUser) transport.User {
	if u == nil {
		return transport.User{}
	}
	return transport.User{ID: u.ID, DisplayName: u.FirstName, Handle: u.Username}
}

// classify конвертирует одно обновление Bot API в событие транспорта;
// nil — обновление не интересует движок.
func classify(u *update) transport.Event {
	if u.CallbackQuery != nil {
		cb := u.CallbackQuery
		target, ok := parseBlockToggle(cb.Data)
		if !ok || cb.Message == nil {
			return nil
		}
		ev := &transport.BlockToggleRequest{
			TargetUserID: target,
			Scope: transport.Scope{
				ChatID:  cb.Message.Chat.ID,
				TopicID: cb.Message.MessageThreadID,
			},
		}
		if cb.From != nil {
			ev.IssuerID = cb.From.ID
		}
		return ev
	}
	m := u.Message
	if m == nil {
		return nil
	}
	if m.Chat.Type == "private" {
		if name := commandName(m.Text); name != "" {
			return &transport.UserCommand{From: sender(m.From), ChatID: m.Chat.ID, Name: name}
		}
		return &transport.UserMessage{
			From:      sender(m.From),
			ChatID:    m.Chat.ID,
			MessageID: m.MessageID,
			Content:   extractContent(m),
			Caption:   m.Caption,
		}
	}
	scope := transport.Scope{ChatID: m.Chat.ID, TopicID: m.MessageThreadID}
	if name := commandName(m.Text); name != "" {
		switch transport.CommandName(name) {
		case transport.CommandClose, transport.CommandReopen, transport.CommandTicketInfo, transport.CommandOpenTickets:
		default:
			return nil
		}
		cmd := &transport.ControlCommand{
			Name:      transport.CommandName(name),
			MessageID: m.MessageID,
			Scope:     scope,
		}
		if m.ReplyToMessage != nil {
			cmd.RepliedToID = m.ReplyToMessage.MessageID
		}
		if m.From != nil {
			cmd.IssuerID = m.From.ID
		}
		return cmd
	}
	if m.ReplyToMessage == nil {
		return nil
	}
	return &transport.SupportReply{
		MessageID:   m.MessageID,
		RepliedToID: m.ReplyToMessage.MessageID,
		Scope:       scope,
		Content:     extractContent(m),
		Caption:     m.Caption,
	}
}

const blockTogglePrefix = "block:"

func parseBlockToggle(data string) (int64, bool) {
	if !strings.HasPrefix(data, blockTogglePrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(data, blockTogglePrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Events запускает длинный опрос getUpdates и отдаёт события движку.
// Канал закрывается при отмене ctx.
func (c *Client) Events(ctx context.Context) <-chan transport.Event {
	ch := make(chan transport.Event, 64)
	go func() {
		defer close(ch)
		var offset int64
		for {
			if ctx.Err() != nil {
				return
			}
			var updates []update
			err := c.call(ctx, "getUpdates", map[string]interface{}{
				"offset":          offset,
				"timeout":         int(pollTimeout.Seconds()),
				"allowed_updates": []string{"message", "callback_query"},
			}, &updates)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("telegram: getUpdates: %v", err)
				time.Sleep(3 * time.Second)
				continue
			}
			for i := range updates {
				u := &updates[i]
				if u.UpdateID >= offset {
					offset = u.UpdateID + 1
				}
				if u.CallbackQuery != nil {
					c.ackCallback(ctx, u.CallbackQuery.ID)
				}
				ev := classify(u)
				if ev == nil {
					continue
				}
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

// ackCallback гасит «часики» на кнопке, неудача не важна.
func (c *Client) ackCallback(ctx context.Context, id string) {
	if err := c.call(ctx, "answerCallbackQuery", map[string]interface{}{"callback_query_id": id}, nil); err != nil {
		log.Printf("telegram: answerCallbackQuery: %v", err)
	}
}

type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

// Send отправляет сообщение и возвращает его message_id.
func (c *Client) Send(ctx context.Context, out transport.Outbound) (int64, error) {
	payload := map[string]interface{}{"chat_id": out.ChatID}
	if out.TopicID != 0 {
		payload["message_thread_id"] = out.TopicID
	}
	if out.ReplyTo != 0 {
		payload["reply_to_message_id"] = out.ReplyTo
	}
	if out.BlockToggleUserID != 0 {
		payload["reply_markup"] = map[string]interface{}{
			"inline_keyboard": [][]map[string]interface{}{{{
				"text":          "🚫 Блокировка",
				"callback_data": blockTogglePrefix + strconv.FormatInt(out.BlockToggleUserID, 10),
			}}},
		}
	}

	var method string
	switch out.Content.Kind {
	case transport.ContentText:
		method = "sendMessage"
		payload["text"] = out.Content.Text
	case transport.ContentPhoto:
		method = "sendPhoto"
		payload["photo"] = out.Content.FileID
	case transport.ContentVideo:
		method = "sendVideo"
		payload["video"] = out.Content.FileID
	case transport.ContentDocument:
		method = "sendDocument"
		payload["document"] = out.Content.FileID
	case transport.ContentVoice:
		method = "sendVoice"
		payload["voice"] = out.Content.FileID
	case transport.ContentAudio:
		method = "sendAudio"
		payload["audio"] = out.Content.FileID
	default:
		return 0, fmt.Errorf("telegram: unsupported content kind %q", out.Content.Kind)
	}
	if out.Caption != "" && method != "sendMessage" {
		payload["caption"] = out.Caption
	}

	var sent sentMessage
	if err := c.call(ctx, method, payload, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}
