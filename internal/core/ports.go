package core

import (
	"context"

	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// Conn is an open connection to the chat server.
type Conn interface {
	Send(ctx context.Context, frame proto.Frame) error
	// Receive blocks until a frame arrives, the connection drops or ctx is done.
	Receive(ctx context.Context) (proto.Frame, error)
	Close() error
}

// Dialer opens connections to the chat server.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Storage persists settings and the last used room.
type Storage interface {
	LoadSettings(ctx context.Context) (store.Settings, error)
	SaveSettings(ctx context.Context, s store.Settings) error
	LastRoom(ctx context.Context) (string, error)
	SaveLastRoom(ctx context.Context, roomID string) error
}

// Recorder receives counters for metrics export.
type Recorder interface {
	MessageSent()
	MessageReceived()
	RateLimited()
	ReconnectAttempt()
	StateChanged(state string)
}

type nopRecorder struct{}

func (nopRecorder) MessageSent()        {}
func (nopRecorder) MessageReceived()    {}
func (nopRecorder) RateLimited()        {}
func (nopRecorder) ReconnectAttempt()   {}
func (nopRecorder) StateChanged(string) {}
