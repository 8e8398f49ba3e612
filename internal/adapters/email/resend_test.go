package email

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestResendSender_Request(t *testing.T) {
	s := NewResendSender("re_test", "Gym <desk@example.com>")

	p, err := s.request(SendRequest{
		To:      []string{"asha@example.com"},
		Subject: "Receipt RCP-000001",
		HTML:    "<p>hi</p>",
		Text:    "hi",
		Tags:    map[string]string{"receipt_number": "RCP-000001", "kind": "receipt"},
	})
	if err != nil {
		t.Fatalf("request() error: %v", err)
	}
	if p.From != "Gym <desk@example.com>" {
		t.Errorf("From = %q, want the default sender", p.From)
	}
	if len(p.Tags) != 2 || p.Tags[0].Name != "kind" || p.Tags[1].Value != "RCP-000001" {
		t.Errorf("Tags = %+v, want sorted by name", p.Tags)
	}

	p, err = s.request(SendRequest{To: []string{"a@example.com"}, From: "Other <o@example.com>"})
	if err != nil || p.From != "Other <o@example.com>" {
		t.Errorf("explicit From = %q, %v", p.From, err)
	}

	if _, err := s.request(SendRequest{}); !errors.Is(err, ErrNoRecipient) {
		t.Errorf("no recipient: err = %v", err)
	}
}

func TestNoopSender(t *testing.T) {
	s := NewNoopSender()
	a, err := s.Send(context.Background(), SendRequest{To: []string{"a@example.com"}})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	b, _ := s.Send(context.Background(), SendRequest{To: []string{"a@example.com"}})
	if a.MessageID == b.MessageID || !strings.HasPrefix(a.MessageID, "noop-") {
		t.Errorf("message IDs %q, %q", a.MessageID, b.MessageID)
	}
	if _, err := s.Send(context.Background(), SendRequest{}); !errors.Is(err, ErrNoRecipient) {
		t.Errorf("no recipient: err = %v", err)
	}
}
