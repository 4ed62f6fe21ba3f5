package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/psds-microservice/support-bridge/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_PrivateText(t *testing.T) {
	ev := classify(&update{Message: &message{
		MessageID: 10,
		From:      &tgUser{ID: 100, FirstName: "Иван", Username: "ivan"},
		Chat:      chat{ID: 100, Type: "private"},
		Text:      "Hello",
	}})
	msg, ok := ev.(*transport.UserMessage)
	require.True(t, ok)
	assert.Equal(t, int64(100), msg.ChatID)
	assert.Equal(t, int64(10), msg.MessageID)
	assert.Equal(t, transport.ContentText, msg.Content.Kind)
	assert.Equal(t, "Hello", msg.Content.Text)
	assert.Equal(t, "ivan", msg.From.Handle)
}

func TestClassify_PrivateCommand(t *testing.T) {
	ev := classify(&update{Message: &message{
		MessageID: 10,
		From:      &tgUser{ID: 100},
		Chat:      chat{ID: 100, Type: "private"},
		Text:      "/start@support_bridge_bot",
	}})
	cmd, ok := ev.(*transport.UserCommand)
	require.True(t, ok)
	assert.Equal(t, "start", cmd.Name)
}

func TestClassify_PhotoPicksLargest(t *testing.T) {
	ev := classify(&update{Message: &message{
		MessageID: 10,
		Chat:      chat{ID: 100, Type: "private"},
		Photo:     []photo{{FileID: "small"}, {FileID: "medium"}, {FileID: "large"}},
		Caption:   "issue",
	}})
	msg, ok := ev.(*transport.UserMessage)
	require.True(t, ok)
	assert.Equal(t, transport.ContentPhoto, msg.Content.Kind)
	assert.Equal(t, "large", msg.Content.FileID)
	assert.Equal(t, "issue", msg.Caption)
}

func TestClassify_SupportReply(t *testing.T) {
	ev := classify(&update{Message: &message{
		MessageID:       900,
		From:            &tgUser{ID: 555},
		Chat:            chat{ID: -1001234, Type: "supergroup"},
		MessageThreadID: 42,
		ReplyToMessage:  &message{MessageID: 102},
		Text:            "Hi, how can I help?",
	}})
	r, ok := ev.(*transport.SupportReply)
	require.True(t, ok)
	assert.Equal(t, int64(102), r.RepliedToID)
	assert.Equal(t, transport.Scope{ChatID: -1001234, TopicID: 42}, r.Scope)
	assert.Equal(t, "Hi, how can I help?", r.Content.Text)
}

func TestClassify_ControlCommand(t *testing.T) {
	ev := classify(&update{Message: &message{
		MessageID:      901,
		From:           &tgUser{ID: 555},
		Chat:           chat{ID: -1001234, Type: "supergroup"},
		ReplyToMessage: &message{MessageID: 102},
		Text:           "/close",
	}})
	cmd, ok := ev.(*transport.ControlCommand)
	require.True(t, ok)
	assert.Equal(t, transport.CommandClose, cmd.Name)
	assert.Equal(t, int64(102), cmd.RepliedToID)
	assert.Equal(t, int64(555), cmd.IssuerID)
}

func TestClassify_UnknownGroupCommandIgnored(t *testing.T) {
	ev := classify(&update{Message: &message{
		MessageID: 901,
		Chat:      chat{ID: -1001234, Type: "supergroup"},
		Text:      "/ban",
	}})
	assert.Nil(t, ev)
}

func TestClassify_GroupMessageWithoutReplyIgnored(t *testing.T) {
	ev := classify(&update{Message: &message{
		MessageID: 901,
		Chat:      chat{ID: -1001234, Type: "supergroup"},
		Text:      "обычный разговор",
	}})
	assert.Nil(t, ev)
}

func TestClassify_BlockToggleCallback(t *testing.T) {
	ev := classify(&update{CallbackQuery: &callbackQuery{
		ID:   "cb1",
		From: &tgUser{ID: 555},
		Message: &message{
			MessageID:       102,
			Chat:            chat{ID: -1001234, Type: "supergroup"},
			MessageThreadID: 42,
		},
		Data: "block:100",
	}})
	req, ok := ev.(*transport.BlockToggleRequest)
	require.True(t, ok)
	assert.Equal(t, int64(100), req.TargetUserID)
	assert.Equal(t, int64(555), req.IssuerID)
	assert.Equal(t, transport.Scope{ChatID: -1001234, TopicID: 42}, req.Scope)
}

func TestClassify_MalformedCallbackIgnored(t *testing.T) {
	ev := classify(&update{CallbackQuery: &callbackQuery{Data: "block:oops", Message: &message{}}})
	assert.Nil(t, ev)
	ev = classify(&update{CallbackQuery: &callbackQuery{Data: "other:100", Message: &message{}}})
	assert.Nil(t, ev)
}

func TestSend_PhotoWithCaptionAndToggle(t *testing.T) {
	var gotPath string
	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotPayload))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok":true,"result":{"message_id":102}}`)
	}))
	defer srv.Close()

	c := NewClient("TOKEN", srv.URL)
	id, err := c.Send(context.Background(), transport.Outbound{
		ChatID:            -1001234,
		TopicID:           42,
		Content:           transport.Content{Kind: transport.ContentPhoto, FileID: "file-1"},
		Caption:           "заголовок\n\nissue",
		BlockToggleUserID: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(102), id)
	assert.Equal(t, "/botTOKEN/sendPhoto", gotPath)
	assert.Equal(t, "file-1", gotPayload["photo"])
	assert.Equal(t, "заголовок\n\nissue", gotPayload["caption"])
	assert.Equal(t, float64(42), gotPayload["message_thread_id"])
	require.Contains(t, gotPayload, "reply_markup")
}

func TestSend_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	c := NewClient("TOKEN", srv.URL)
	_, err := c.Send(context.Background(), transport.Outbound{
		ChatID:  1,
		Content: transport.Text("hi"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}
