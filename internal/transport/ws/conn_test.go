package ws

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// startServer runs handle for every accepted websocket and returns the ws:// URL.
func startServer(t *testing.T, handle func(ctx context.Context, r *stdhttp.Request, conn *websocket.Conn)) string {
	t.Helper()

	ts := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "internal error")
		handle(r.Context(), r, conn)
	}))
	t.Cleanup(ts.Close)

	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}

func TestDialSendReceive(t *testing.T) {
	authHeader := make(chan string, 1)
	url := startServer(t, func(ctx context.Context, r *stdhttp.Request, conn *websocket.Conn) {
		authHeader <- r.Header.Get("Authorization")
		for {
			var frame proto.Frame
			if err := wsjson.Read(ctx, conn, &frame); err != nil {
				return
			}
			// Reply with the name of the event received.
			reply, _ := proto.NewFrame(proto.EventNewMessage, proto.MessageData{Username: "server", Message: frame.Event})
			if err := wsjson.Write(ctx, conn, reply); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := NewDialer(url, nil, WithToken("secret")).Dial(ctx)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if got := <-authHeader; got != "Bearer secret" {
		t.Fatalf("authorization header = %q", got)
	}

	frame, _ := proto.NewFrame(proto.EventJoin, proto.JoinData{Username: "bob", Room: "gaming"})
	if err := conn.Send(ctx, frame); err != nil {
		t.Fatalf("send: %v", err)
	}

	got, err := conn.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got.Event != proto.EventNewMessage {
		t.Fatalf("event = %q", got.Event)
	}
	var msg proto.MessageData
	if err := got.Decode(&msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Message != proto.EventJoin {
		t.Fatalf("server saw %q, want %q", msg.Message, proto.EventJoin)
	}
}

func TestReceiveReportsCleanCloseAsEOF(t *testing.T) {
	url := startServer(t, func(_ context.Context, _ *stdhttp.Request, conn *websocket.Conn) {
		conn.Close(websocket.StatusNormalClosure, "shutting down")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := NewDialer(url, nil).Dial(ctx)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Receive(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("receive err = %v, want io.EOF", err)
	}
}

func TestDialFailure(t *testing.T) {
	ts := httptest.NewServer(stdhttp.NotFoundHandler())
	url := strings.Replace(ts.URL, "http", "ws", 1)
	ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := NewDialer(url, nil).Dial(ctx); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	url := startServer(t, func(ctx context.Context, _ *stdhttp.Request, conn *websocket.Conn) {
		var frame proto.Frame
		_ = wsjson.Read(ctx, conn, &frame)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := NewDialer(url, nil).Dial(ctx)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	first := conn.Close()
	if second := conn.Close(); second != first {
		t.Fatalf("second close = %v, first = %v", second, first)
	}
}
