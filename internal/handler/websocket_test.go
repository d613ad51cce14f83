package handler

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

	"github.com/masjidconnect/reminder-service/internal/domain"
)

func TestClientFilter_Matches(t *testing.T) {
	mosqueID := uuid.New()
	event := domain.DispatchEvent{MosqueID: mosqueID, Category: domain.CategoryPrayer, ReminderKey: "fajr"}

	tests := []struct {
		name   string
		filter *ClientFilter
		want   bool
	}{
		{name: "no filter", filter: nil, want: true},
		{name: "empty filter", filter: &ClientFilter{}, want: true},
		{name: "mosque match", filter: &ClientFilter{MosqueIDs: []uuid.UUID{mosqueID}}, want: true},
		{name: "mosque mismatch", filter: &ClientFilter{MosqueIDs: []uuid.UUID{uuid.New()}}, want: false},
		{name: "category match", filter: &ClientFilter{Categories: []domain.Category{domain.CategoryPrayer}}, want: true},
		{name: "category mismatch", filter: &ClientFilter{Categories: []domain.Category{domain.CategoryHadith}}, want: false},
		{
			name: "both must match",
			filter: &ClientFilter{
				MosqueIDs:  []uuid.UUID{mosqueID},
				Categories: []domain.Category{domain.CategoryJumuah},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.matches(event))
		})
	}
}

func TestWebSocketHub_BroadcastDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewWebSocketHub(testLogger())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(NewWebSocketHandler(hub, nil).HandleWebSocket))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	event := domain.DispatchEvent{
		MosqueID:    uuid.New(),
		Category:    domain.CategoryPrayer,
		ReminderKey: "fajr",
		Offset:      15,
		Total:       3,
		Successful:  3,
	}
	hub.BroadcastDispatch(event)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var update DispatchUpdate
	require.NoError(t, json.Unmarshal(message, &update))
	assert.Equal(t, "dispatch", update.Type)
	assert.Equal(t, event.MosqueID, update.Event.MosqueID)
	assert.Equal(t, "fajr", update.Event.ReminderKey)
	assert.Equal(t, 3, update.Event.Successful)
}

func TestWebSocketHub_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewWebSocketHub(testLogger())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Equal(t, 0, hub.GetClientCount())
}
