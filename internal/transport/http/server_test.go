package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/metrics"
)

type fakeSource struct {
	err      error
	session  core.SessionView
	stats    core.StatsSnapshot
	notes    []core.Notification
	markedID []uint64
	allRead  int
}

func (f *fakeSource) Session(context.Context) (core.SessionView, error) { return f.session, f.err }
func (f *fakeSource) Stats(context.Context) (core.StatsSnapshot, error)  { return f.stats, f.err }
func (f *fakeSource) Rooms(context.Context) ([]core.Room, error)         { return core.BuiltinRooms(), f.err }

func (f *fakeSource) Notifications(context.Context) ([]core.Notification, error) {
	return f.notes, f.err
}

func (f *fakeSource) UnreadCount(context.Context) (int, error) {
	n := 0
	for _, note := range f.notes {
		if !note.Read {
			n++
		}
	}
	return n, f.err
}

func (f *fakeSource) MarkNotificationRead(_ context.Context, id uint64) error {
	f.markedID = append(f.markedID, id)
	return f.err
}

func (f *fakeSource) MarkAllNotificationsRead(context.Context) error {
	f.allRead++
	return f.err
}

func newTestRouter(t *testing.T, src StatusSource) (*gin.Engine, *metrics.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	return NewRouter(src, reg, nil, WithMiddleware(m.GinMiddleware())), m
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, &fakeSource{})

	rec := serve(r, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestSessionEndpoint(t *testing.T) {
	src := &fakeSource{session: core.SessionView{
		Session:   core.Session{Username: "bob", State: core.StateConnected, CurrentRoomID: "gaming"},
		StateName: "connected",
		IsAdmin:   true,
		Users:     []string{"alice", "bob"},
	}}
	r, _ := newTestRouter(t, src)

	rec := serve(r, http.MethodGet, "/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["username"] != "bob" || body["state"] != "connected" || body["currentRoom"] != "gaming" || body["isAdmin"] != true {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestStatsEndpoint(t *testing.T) {
	src := &fakeSource{stats: core.StatsSnapshot{
		MessagesSent:     2,
		MessagesReceived: 3,
		TotalMessages:    5,
		OnlineUsers:      4,
		SessionDuration:  90 * time.Second,
		SessionMs:        90000,
	}}
	r, _ := newTestRouter(t, src)

	rec := serve(r, http.MethodGet, "/stats", "")
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["totalMessages"] != float64(5) || body["sessionDurationMs"] != float64(90000) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestNotificationsEndpoints(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{notes: []core.Notification{
		{ID: 2, Kind: core.NotifyRoom, Title: "Joined room", CreatedAt: now},
		{ID: 1, Kind: core.NotifyConnection, Title: "Connected", CreatedAt: now, Read: true},
	}}
	r, _ := newTestRouter(t, src)

	rec := serve(r, http.MethodGet, "/notifications", "")
	var list NotificationsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Unread != 1 || len(list.Notifications) != 2 || list.Notifications[0].ID != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "one", body: `{"id": 2}`, wantStatus: http.StatusNoContent},
		{name: "all", body: "", wantStatus: http.StatusNoContent},
		{name: "bad body", body: `{"id": "two"}`, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, http.MethodPost, "/notifications/read", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
	if len(src.markedID) != 1 || src.markedID[0] != 2 || src.allRead != 1 {
		t.Fatalf("marked = %v, all = %d", src.markedID, src.allRead)
	}
}

func TestEmptyNotificationsEncodeAsArray(t *testing.T) {
	r, _ := newTestRouter(t, &fakeSource{})

	rec := serve(r, http.MethodGet, "/notifications", "")
	if !strings.Contains(rec.Body.String(), `"notifications":[]`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestStoppedControllerReturns503(t *testing.T) {
	r, _ := newTestRouter(t, &fakeSource{err: core.ErrStopped})

	for _, path := range []string{"/session", "/stats", "/rooms", "/notifications"} {
		if rec := serve(r, http.MethodGet, path, ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s = %d, want 503", path, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r, m := newTestRouter(t, &fakeSource{})
	m.MessageSent()
	serve(r, http.MethodGet, "/health", "")

	rec := serve(r, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"wirechat_messages_sent_total 1",
		`wirechat_connection_state{state="disconnected"} 1`,
		`wirechat_status_requests_total{method="GET",path="/health",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
