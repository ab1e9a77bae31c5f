package events_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nefol-pricing/internal/events"
	"github.com/noah-isme/nefol-pricing/internal/tenant"
)

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func newBus(t *testing.T) *events.Bus {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &events.Bus{R: client, Now: func() time.Time { return fixed }}
}

func TestPublishDeliversToTenantRooms(t *testing.T) {
	bus := newBus(t)
	notifier := &captureNotifier{}
	bus.Notifiers = []events.Notifier{notifier}
	ctx := tenant.WithTenant(context.Background(), "nefol")

	sub := bus.Subscribe(ctx, "nefol", events.RoomAdmin)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	ev, err := bus.Publish(ctx, events.TopicTaxRateCreated, map[string]any{"id": 7})
	require.NoError(t, err)
	require.Equal(t, "nefol", ev.Tenant)
	require.Len(t, notifier.events, 1)

	select {
	case msg := <-sub.Channel():
		require.Equal(t, "nefol:events:admin-panel", msg.Channel)
		var got events.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		require.Equal(t, events.TopicTaxRateCreated, got.Type)
		require.JSONEq(t, `{"id":7}`, string(got.Data))
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestPublishRequiresTopic(t *testing.T) {
	bus := newBus(t)
	_, err := bus.Publish(context.Background(), "  ", nil)
	require.Error(t, err)
}

func TestStreamRejectsUnknownRoom(t *testing.T) {
	h := events.StreamHandler{Bus: newBus(t)}
	rr := httptest.NewRecorder()
	h.Stream(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events?room=kitchen", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStreamForwardsEvents(t *testing.T) {
	bus := newBus(t)
	h := events.StreamHandler{Bus: bus}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Stream(w, r.WithContext(tenant.WithTenant(r.Context(), "nefol")))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?room=user-panel", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	_, err = bus.Publish(tenant.WithTenant(ctx, "nefol"), events.TopicOrderCreated, map[string]string{"orderNumber": "NEFOL-ABC123"})
	require.NoError(t, err)

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}
	require.Contains(t, line, `"type":"order_created"`)
	require.Contains(t, line, "NEFOL-ABC123")
}

func TestStreamEndsWhenDoneCloses(t *testing.T) {
	done := make(chan struct{})
	h := events.StreamHandler{Bus: newBus(t), Done: done}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Stream(w, r.WithContext(tenant.WithTenant(r.Context(), "nefol")))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?room=admin-panel", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)

	close(done)
	_, err = io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, ctx.Err())
}
