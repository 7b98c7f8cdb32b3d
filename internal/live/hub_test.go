package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPublish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	watched := uuid.New()
	other := uuid.New()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, watched)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount(watched) == 1 }, time.Second, 10*time.Millisecond)

	// Events for other tournaments are not delivered
	hub.Publish(other, "bracket.updated", nil)
	hub.Publish(watched, "bracket.updated", map[string]string{"match_id": "m1"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type         string            `json:"type"`
		TournamentID uuid.UUID         `json:"tournament_id"`
		Payload      map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "bracket.updated", msg.Type)
	assert.Equal(t, watched, msg.TournamentID)
	assert.Equal(t, "m1", msg.Payload["match_id"])

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount(watched) == 0 }, 2*time.Second, 10*time.Millisecond)
}
