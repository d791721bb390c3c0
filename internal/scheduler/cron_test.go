package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	command "github.com/goliatone/go-command"
)

type cronHandler struct{ calls int }

func (h *cronHandler) CronHandler() func() error {
	return func() error {
		h.calls++
		return nil
	}
}

func TestRegisterValidatesExpression(t *testing.T) {
	c := NewCron()

	if err := c.Register(command.HandlerConfig{}, func() {}); !errors.Is(err, ErrExpressionRequired) {
		t.Fatalf("expected ErrExpressionRequired, got %v", err)
	}
	if err := c.Register(command.HandlerConfig{Expression: "every hour"}, func() {}); !errors.Is(err, ErrInvalidExpression) {
		t.Fatalf("expected ErrInvalidExpression, got %v", err)
	}
	if err := c.Register(command.HandlerConfig{Expression: "@every 1h"}, 42); !errors.Is(err, ErrUnsupportedHandler) {
		t.Fatalf("expected ErrUnsupportedHandler, got %v", err)
	}
	if len(c.Entries()) != 0 {
		t.Fatalf("expected rejected registrations to add no entries")
	}
}

func TestRegisterListsEntries(t *testing.T) {
	c := NewCron(WithLocation(time.UTC))

	if err := c.Register(command.HandlerConfig{Expression: "@every 1h"}, func() error { return nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.Register(command.HandlerConfig{Expression: "0 3 * * *"}, &cronHandler{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	entries := c.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Expression != "@every 1h" || entries[1].Expression != "0 3 * * *" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestJobFuncAdaptsHandlerShapes(t *testing.T) {
	plainCalls := 0
	ctxErr := errors.New("ctx handler")
	handler := &cronHandler{}

	cases := []struct {
		name    string
		handler any
		wantErr error
	}{
		{name: "func error", handler: func() error { return nil }},
		{name: "plain func", handler: func() { plainCalls++ }},
		{name: "context func", handler: func(context.Context) error { return ctxErr }, wantErr: ctxErr},
		{name: "cron handler", handler: handler},
	}
	for _, tc := range cases {
		run, err := jobFunc(tc.handler)
		if err != nil {
			t.Fatalf("%s: jobFunc: %v", tc.name, err)
		}
		if err := run(); !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
	if plainCalls != 1 || handler.calls != 1 {
		t.Fatalf("expected each handler to run once, got plain=%d cron=%d", plainCalls, handler.calls)
	}

	if _, err := jobFunc(nil); !errors.Is(err, ErrUnsupportedHandler) {
		t.Fatalf("expected nil handler to be rejected, got %v", err)
	}
}

func TestStartStop(t *testing.T) {
	c := NewCron()
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
	c.Start()
	c.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
