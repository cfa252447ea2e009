package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	sent []map[string]string
}

func (f *fakeBotAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/botTOKEN/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.Form.Get("chat_id") == "missing" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "Bad Request: chat not found"})
			return
		}
		f.sent = append(f.sent, map[string]string{
			"chat_id":    r.Form.Get("chat_id"),
			"text":       r.Form.Get("text"),
			"parse_mode": r.Form.Get("parse_mode"),
		})
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{"message_id": 1}})
	})
	mux.HandleFunc("/botTOKEN/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		offset := r.URL.Query().Get("offset")
		updates := []map[string]any{}
		if offset == "0" {
			updates = append(updates, map[string]any{
				"update_id": 41,
				"message": map[string]any{
					"message_id": 7,
					"chat":       map[string]any{"id": 1234},
					"text":       "/status",
				},
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": updates})
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeBotAPI) *Client {
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	client, err := NewClient(Options{Token: "TOKEN", APIBase: server.URL, Timeout: 5 * time.Second}, telemetry.NewRecorder())
	require.NoError(t, err)
	return client
}

func TestSendMessage(t *testing.T) {
	api := &fakeBotAPI{}
	client := newTestClient(t, api)

	err := client.SendMessage(context.Background(), "1234", "<b>hi</b>")
	require.NoError(t, err)
	require.Equal(t, []map[string]string{
		{"chat_id": "1234", "text": "<b>hi</b>", "parse_mode": "HTML"},
	}, api.sent)

	err = client.SendMessage(context.Background(), "missing", "hi")
	require.ErrorContains(t, err, "chat not found")
}

func TestGetUpdates(t *testing.T) {
	client := newTestClient(t, &fakeBotAPI{})

	updates, err := client.GetUpdates(context.Background(), 0, time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.EqualValues(t, 41, updates[0].UpdateID)
	require.EqualValues(t, 1234, updates[0].Message.Chat.ID)
	require.Equal(t, "/status", updates[0].Message.Text)

	updates, err = client.GetUpdates(context.Background(), 42, time.Second)
	require.NoError(t, err)
	require.Empty(t, updates)
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(Options{}, telemetry.NewRecorder())
	require.ErrorIs(t, err, ErrNotConfigured)
}
