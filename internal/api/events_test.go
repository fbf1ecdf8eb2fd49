package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/meetlines/meetlines/internal/auth"
	"github.com/meetlines/meetlines/internal/events"
	"github.com/meetlines/meetlines/internal/models"
	"go.uber.org/zap"
)

func TestEventStream(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events/ws?access_token=" + f.ownerToken()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v (response %v)", err, resp)
	}
	defer conn.Close()

	appt := models.Appointment{ProjectID: f.project.ID, Status: models.StatusConfirmed}
	if err := f.bus.Publish(context.Background(), events.Event{Type: events.TypeStatusChanged, ProjectID: f.project.ID, Appointment: appt, From: "pending"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got events.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != events.TypeStatusChanged || got.Appointment.Status != models.StatusConfirmed {
		t.Fatalf("event = %+v", got)
	}
}

func TestEventStreamRequiresStaff(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events/ws"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous dial: err=%v resp=%v, want 401", err, resp)
	}

	_, resp, err = websocket.DefaultDialer.Dial(base+"?access_token="+f.token(f.customer.ID, auth.RoleCustomer), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("customer dial: err=%v resp=%v, want 403", err, resp)
	}
}

func TestEventStreamRejectsForeignOrigin(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events/ws?access_token=" + f.ownerToken()
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("dial: err=%v resp=%v, want 403", err, resp)
	}
}

// endedSubscriber hands out subscriptions whose source has already gone away.
type endedSubscriber struct{}

type endedSubscription struct{ out chan []byte }

func (s *endedSubscriber) Subscribe(ctx context.Context, projectID uuid.UUID) (events.Subscription, error) {
	out := make(chan []byte)
	close(out)
	return &endedSubscription{out: out}, nil
}

func (s *endedSubscription) Messages() <-chan []byte { return s.out }

func (s *endedSubscription) Close() error { return nil }

func TestEventStreamClosesWhenSourceEnds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sub := &endedSubscriber{}
	h := NewEventsHandler(sub, func(*http.Request) bool { return true }, zap.NewNop())
	r := gin.New()
	r.GET("/ws", h.Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v (response %v)", err, resp)
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("read: %v, want going-away close frame", err)
	}
}
