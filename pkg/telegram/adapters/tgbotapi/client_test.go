package tgbotapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shrinkbot/pkg/errors"
	"shrinkbot/pkg/logger"
	"shrinkbot/pkg/telegram"
)

const testToken = "123456:secret-token"

// fakeAPI is a minimal Bot API server
type fakeAPI struct {
	mu       sync.Mutex
	methods  []string
	fileSize int
	content  []byte
	fail     map[string]bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/bot"+testToken+"/") {
		_, _ = w.Write(f.content)
		return
	}

	method := strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/")

	f.mu.Lock()
	f.methods = append(f.methods, method)
	fail := f.fail[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"})
		return
	}

	var result any
	switch method {
	case "getMe":
		result = map[string]any{"id": 1, "is_bot": true, "first_name": "Shrink", "username": "shrinkbot"}
	case "getFile":
		result = map[string]any{"file_id": "f1", "file_unique_id": "u1", "file_size": f.fileSize, "file_path": "photos/file_1.jpg"}
	case "sendMessage", "sendDocument":
		result = map[string]any{"message_id": 9, "date": 0, "chat": map[string]any{"id": 5, "type": "private"}}
	default:
		result = true
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func (f *fakeAPI) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

func newTestBot(t *testing.T, api *fakeAPI) *Bot {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	bot, err := NewBot(Config{
		Token:        testToken,
		APIEndpoint:  srv.URL + "/bot%s/%s",
		FileEndpoint: srv.URL + "/file/bot%s/%s",
	}, logger.Nop())
	require.NoError(t, err)
	return bot
}

func TestNewBot_RequiresToken(t *testing.T) {
	_, err := NewBot(Config{}, logger.Nop())
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestBot_SendMessageAndDocument(t *testing.T) {
	api := &fakeAPI{}
	bot := newTestBot(t, api)
	ctx := context.Background()

	require.NoError(t, bot.SendMessage(ctx, 5, "Processing your image, please wait..."))
	require.NoError(t, bot.SendDocument(ctx, 5, telegram.FileUpload{Name: "compressed_1.jpg", Data: []byte{0xff, 0xd8}}))
	require.NoError(t, bot.SendChatAction(ctx, 5, telegram.ChatActionUploadDocument))

	assert.Equal(t, []string{"getMe", "sendMessage", "sendDocument", "sendChatAction"}, api.called())
}

func TestBot_SendMessageError(t *testing.T) {
	api := &fakeAPI{fail: map[string]bool{"sendMessage": true}}
	bot := newTestBot(t, api)

	err := bot.SendMessage(context.Background(), 5, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestBot_DownloadFile(t *testing.T) {
	api := &fakeAPI{fileSize: 4, content: []byte("jpeg")}
	bot := newTestBot(t, api)

	data, err := bot.DownloadFile(context.Background(), "f1", 1024)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)
}

func TestBot_DownloadFileTooLarge(t *testing.T) {
	// declared size over the limit
	bot := newTestBot(t, &fakeAPI{fileSize: 2048, content: []byte("x")})
	_, err := bot.DownloadFile(context.Background(), "f1", 1024)
	assert.ErrorIs(t, err, errors.ErrSourceTooLarge)

	// size unknown up front, body over the limit
	bot = newTestBot(t, &fakeAPI{content: make([]byte, 2048)})
	_, err = bot.DownloadFile(context.Background(), "f1", 1024)
	assert.ErrorIs(t, err, errors.ErrSourceTooLarge)
}

func TestBot_DownloadFileResolveError(t *testing.T) {
	bot := newTestBot(t, &fakeAPI{fail: map[string]bool{"getFile": true}})

	_, err := bot.DownloadFile(context.Background(), "f1", 1024)
	assert.ErrorIs(t, err, errors.ErrRetrieval)
	assert.NotContains(t, err.Error(), testToken)
}

func TestRedact(t *testing.T) {
	err := redact(errors.New(`Post "https://api.telegram.org/bot`+testToken+`/getFile": dial tcp: timeout`), testToken)
	assert.NotContains(t, err.Error(), testToken)
	assert.Contains(t, err.Error(), "dial tcp: timeout")

	plain := errors.New("boom")
	assert.Same(t, plain, redact(plain, testToken))
	assert.Nil(t, redact(nil, testToken))
}

func TestConvertUpdate(t *testing.T) {
	tgUpdate := tgbotapi.Update{
		UpdateID: 3,
		Message: &tgbotapi.Message{
			MessageID: 4,
			From:      &tgbotapi.User{ID: 42, FirstName: "Sam", UserName: "sam"},
			Chat:      &tgbotapi.Chat{ID: 42, Type: "private"},
			Text:      "/start@shrinkbot now",
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 15}},
			Photo: []tgbotapi.PhotoSize{
				{FileID: "small", Width: 90, Height: 90, FileSize: 100},
				{FileID: "big", Width: 900, Height: 900, FileSize: 9000},
			},
			Document: &tgbotapi.Document{FileID: "doc", FileName: "a.png", MimeType: "image/png", FileSize: 77},
		},
	}

	u := convertUpdate(tgUpdate)
	require.NotNil(t, u.Message)
	assert.Equal(t, 3, u.UpdateID)
	assert.Equal(t, int64(42), u.SenderID())
	assert.True(t, u.Message.IsCommand)
	assert.Equal(t, "start", u.Message.Command)
	assert.Equal(t, "now", u.Message.Arguments)

	p, ok := u.Message.LargestPhoto()
	require.True(t, ok)
	assert.Equal(t, "big", p.FileID)
	assert.Equal(t, int64(9000), p.FileSize)

	require.NotNil(t, u.Message.Document)
	assert.True(t, u.Message.HasImageDocument())
	assert.Equal(t, int64(77), u.Message.Document.FileSize)
}
