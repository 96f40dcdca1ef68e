package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ServerURL = serverURL
	cfg.DBPath = filepath.Join(t.TempDir(), "wirechat.db")
	return &cfg
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func signToken(t *testing.T, claims auth.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

// chatServer accepts one websocket and forwards every frame it reads.
func chatServer(t *testing.T, frames chan<- proto.Frame) string {
	t.Helper()
	ts := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			var frame proto.Frame
			if err := wsjson.Read(r.Context(), conn, &frame); err != nil {
				return
			}
			frames <- frame
		}
	}))
	t.Cleanup(ts.Close)
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}

func TestRunConnectsAndQuits(t *testing.T) {
	frames := make(chan proto.Frame, 16)
	cfg := testConfig(t, chatServer(t, frames))
	cfg.Username = "bob"

	inR, inW := io.Pipe()
	out := &lockedBuffer{}

	a, err := New(cfg, nopLogger(), inR, out)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case frame := <-frames:
		if frame.Event != proto.EventJoin {
			t.Fatalf("first frame = %q, want %q", frame.Event, proto.EventJoin)
		}
		var join proto.JoinData
		if err := frame.Decode(&join); err != nil {
			t.Fatalf("decode join: %v", err)
		}
		if join.Username != "bob" || join.Room != cfg.DefaultRoom {
			t.Fatalf("join = %+v", join)
		}
	case <-ctx.Done():
		t.Fatal("server never saw a join")
	}

	if _, err := io.WriteString(inW, "/quit\n"); err != nil {
		t.Fatalf("write input: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("run did not return after /quit")
	}
	_ = inW.Close()

	if !strings.Contains(out.String(), "WireChat") {
		t.Fatalf("output missing banner: %q", out.String())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, "ws://127.0.0.1:1/ws")
	inR, inW := io.Pipe()
	defer inW.Close()

	a, err := New(cfg, nopLogger(), inR, io.Discard)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestNewUsesTokenName(t *testing.T) {
	cfg := testConfig(t, "ws://localhost:8080/ws")
	cfg.Token = signToken(t, auth.Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	a, err := New(cfg, nopLogger(), strings.NewReader(""), io.Discard)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.cleanup()
	if a.username != "alice" {
		t.Fatalf("username = %q, want alice", a.username)
	}
}

func TestNewRejectsBadSetup(t *testing.T) {
	expired := func(t *testing.T) string {
		return signToken(t, auth.Claims{
			Username: "alice",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		})
	}

	tests := []struct {
		name   string
		mutate func(t *testing.T, cfg *config.Config)
		want   error
	}{
		{
			name:   "expired token",
			mutate: func(t *testing.T, cfg *config.Config) { cfg.Token = expired(t) },
			want:   auth.ErrTokenExpired,
		},
		{
			name:   "http url",
			mutate: func(_ *testing.T, cfg *config.Config) { cfg.ServerURL = "http://localhost:8080/ws" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "ws://localhost:8080/ws")
			tt.mutate(t, cfg)
			_, err := New(cfg, nopLogger(), strings.NewReader(""), io.Discard)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewBuildsStatusServer(t *testing.T) {
	cfg := testConfig(t, "ws://localhost:8080/ws")
	cfg.StatusAddr = "127.0.0.1:0"

	a, err := New(cfg, nopLogger(), strings.NewReader(""), io.Discard)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.cleanup()
	if a.server == nil {
		t.Fatal("status server not built")
	}

	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/health", nil))
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestControllerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Reconnect.MaxAttempts = 3
	cfg.Protocol.LegacyNames = true
	cfg.RateLimit.Window = 2 * time.Second

	got := ControllerConfig(&cfg)
	if got.MaxReconnectAttempts != 3 || !got.LegacyEventNames || got.SendWindow != 2*time.Second {
		t.Fatalf("controller config = %+v", got)
	}
	if got.DefaultRoom != cfg.DefaultRoom || got.TypingQuietPeriod != cfg.Typing.QuietPeriod {
		t.Fatalf("controller config = %+v", got)
	}
}
