package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/transport/ws"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "username to join with")
	room := flag.String("room", "gaming", "room name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	token := flag.String("token", "", "bearer token")
	legacy := flag.Bool("legacy", false, "use legacy event names")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := ws.NewDialer(*addr, nil, ws.WithToken(*token)).Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	send := func(event string, payload any) error {
		frame, err := proto.NewFrame(proto.WireName(event, *legacy), payload)
		if err != nil {
			return err
		}
		if err := conn.Send(ctx, frame); err != nil {
			return fmt.Errorf("send %s: %w", event, err)
		}
		return nil
	}

	if err := send(proto.EventJoin, proto.JoinData{Username: *user, Room: *room, Token: *token}); err != nil {
		return err
	}
	clientID := uuid.NewString()
	if err := send(proto.EventSendMessage, proto.SendMessageData{
		Username:  *user,
		Message:   *text,
		Room:      *room,
		Timestamp: proto.FormatTimestamp(time.Now()),
		ClientID:  clientID,
	}); err != nil {
		return err
	}

	for {
		frame, err := conn.Receive(ctx)
		if errors.Is(err, io.EOF) {
			return errors.New("server closed the connection before echoing")
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		event := proto.Canonical(frame.Event)
		fmt.Printf("Received event=%s\n", event)

		switch event {
		case proto.EventNewMessage:
			var msg proto.MessageData
			if err := frame.Decode(&msg); err != nil {
				fmt.Printf("Raw data: %s\n", string(frame.Data))
				return err
			}
			fmt.Printf("Message: room=%s user=%s text=%q ts=%s\n", msg.Room, msg.Username, msg.Message, msg.Timestamp.Format(time.RFC3339))
			if msg.Username == *user && msg.Message == *text {
				return nil
			}
		case proto.EventUserJoined, proto.EventUserLeft:
			var evt proto.UserEventData
			if err := frame.Decode(&evt); err == nil {
				fmt.Printf("%s: user=%s\n", event, evt.Username)
			}
		case proto.EventUsernameTaken:
			return fmt.Errorf("username %q is taken", *user)
		default:
			// keep looping for the echo
		}
	}
}
