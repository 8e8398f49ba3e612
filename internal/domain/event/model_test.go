package event_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gymdesk/internal/domain/event"
)

// TestEventValidate tests validation of Event.
func TestEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		e       event.Event
		wantErr error
	}{
		{"valid", event.Event{Kind: event.ReceiptCreated, MemberID: "m1"}, nil},
		{"unknown kind", event.Event{Kind: "receiptPrinted", MemberID: "m1"}, event.ErrUnknownKind},
		{"missing member", event.Event{Kind: event.MemberDataUpdated}, event.ErrEmptyMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.e.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestBus_SubscribeUnsubscribe verifies delivery stops after unsubscribe.
func TestBus_SubscribeUnsubscribe(t *testing.T) {
	bus := event.NewBus()
	var got []event.Kind
	unsubscribe := bus.Subscribe(func(e event.Event) { got = append(got, e.Kind) })

	ctx := context.Background()
	if err := bus.Notify(ctx, event.Event{Kind: event.ReceiptCreated, MemberID: "m1"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	unsubscribe()
	unsubscribe()
	if err := bus.Notify(ctx, event.Event{Kind: event.ReceiptDeleted, MemberID: "m1"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if len(got) != 1 || got[0] != event.ReceiptCreated {
		t.Errorf("delivered = %v, want [receiptCreated]", got)
	}
	if bus.Len() != 0 {
		t.Errorf("Len() = %d, want 0", bus.Len())
	}
}

// TestBus_RejectsInvalid verifies invalid events are not delivered.
func TestBus_RejectsInvalid(t *testing.T) {
	bus := event.NewBus()
	called := false
	bus.Subscribe(func(event.Event) { called = true })
	if err := bus.Notify(context.Background(), event.Event{Kind: event.ReceiptUpdated}); err == nil {
		t.Error("expected error for missing member ID")
	}
	if called {
		t.Error("handler should not run for an invalid event")
	}
}

// TestBus_ConcurrentNotify exercises the bus from many goroutines.
func TestBus_ConcurrentNotify(t *testing.T) {
	bus := event.NewBus()
	var mu sync.Mutex
	count := 0
	bus.Subscribe(func(event.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bus.Notify(context.Background(), event.Event{Kind: event.MemberDataUpdated, MemberID: "m1"})
		}()
	}
	wg.Wait()
	if count != 50 {
		t.Errorf("count = %d, want 50", count)
	}
}

// TestMulti_JoinsErrors verifies every notifier runs and failures are joined.
func TestMulti_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	m := event.Multi{
		event.NotifierFunc(func(context.Context, event.Event) error { calls++; return boom }),
		nil,
		event.NotifierFunc(func(context.Context, event.Event) error { calls++; return nil }),
	}
	err := m.Notify(context.Background(), event.Event{Kind: event.ReceiptCreated, MemberID: "m1"})
	if !errors.Is(err, boom) {
		t.Errorf("Notify() = %v, want boom", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

// TestChangeSetKinds preserves order.
func TestChangeSetKinds(t *testing.T) {
	cs := event.ChangeSet{
		{Kind: event.ReceiptCreated, MemberID: "m1"},
		{Kind: event.MemberDataUpdated, MemberID: "m1"},
	}
	kinds := cs.Kinds()
	if len(kinds) != 2 || kinds[0] != event.ReceiptCreated || kinds[1] != event.MemberDataUpdated {
		t.Errorf("Kinds() = %v", kinds)
	}
}
