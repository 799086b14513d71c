package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestSlackDeliversBlocks(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL)
	msg := Message{
		Text:   "New dates available",
		Blocks: []Block{Section("*2026-03-02* — 3 menus"), Divider()},
	}
	if err := s.Notify(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	if got.Text != "New dates available" {
		t.Fatalf("unexpected text: %q", got.Text)
	}
	if len(got.Blocks) != 2 || got.Blocks[0].Type != "section" || got.Blocks[1].Type != "divider" {
		t.Fatalf("unexpected blocks: %+v", got.Blocks)
	}
	if got.Blocks[0].Text == nil || got.Blocks[0].Text.Type != "mrkdwn" {
		t.Fatalf("section must carry mrkdwn text: %+v", got.Blocks[0])
	}
	if got.Blocks[1].Text != nil {
		t.Fatalf("divider must not carry text: %+v", got.Blocks[1])
	}
}

func TestSlackRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL, WithSlackRetries(2))
	if err := s.Notify(context.Background(), Message{Text: "x"}); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestSlackExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL, WithSlackRetries(1))
	err := s.Notify(context.Background(), Message{Text: "x"})
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("retries(1) means one attempt total, got %d", calls.Load())
	}
}

func TestStdout(t *testing.T) {
	var buf bytes.Buffer
	s := &Stdout{W: &buf}
	if err := s.Notify(context.Background(), Message{Text: "hello"}); err != nil {
		t.Fatal(err)
	}
	var got Message
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Text != "hello" {
		t.Fatalf("unexpected: %+v", got)
	}
}

type failing struct{}

func (failing) Notify(context.Context, Message) error { return ErrDelivery }

func TestMultiAttemptsAll(t *testing.T) {
	var buf bytes.Buffer
	m := Multi{failing{}, &Stdout{W: &buf}}
	err := m.Notify(context.Background(), Message{Text: "x"})
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected joined ErrDelivery, got %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("second notifier must still run")
	}
}
