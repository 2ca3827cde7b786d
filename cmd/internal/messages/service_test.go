package messages

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"kite/cmd/identity"
	"kite/cmd/internal/paging"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
	carol = "user-carol"
)

type directory map[string]bool

func (d directory) GetUserByID(_ context.Context, id string) (identity.User, error) {
	if !d[id] {
		return identity.User{}, identity.NotFoundError{Op: "test.GetUserByID", Resource: "user"}
	}
	return identity.User{ID: id}, nil
}

type brokenDirectory struct{}

func (brokenDirectory) GetUserByID(context.Context, string) (identity.User, error) {
	return identity.User{}, errors.New("db down")
}

func steppedClock() func() time.Time {
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func newTestService(t *testing.T, st Store) *Service {
	t.Helper()
	if st == nil {
		st = NewMemoryStore()
	}
	return NewService(st, directory{alice: true, bob: true, carol: true}, steppedClock())
}

func mustSend(t *testing.T, svc *Service, from, to, content string) Message {
	t.Helper()
	m, err := svc.Send(context.Background(), from, to, content)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	return m
}

func TestService_SendValidates(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	cases := []struct {
		name      string
		to, body  string
		wantError error
	}{
		{"self", alice, "hi", ErrInvalidInput},
		{"no recipient", " ", "hi", ErrInvalidInput},
		{"empty", bob, "  ", ErrInvalidInput},
		{"too long", bob, strings.Repeat("x", maxContentRunes+1), ErrInvalidInput},
		{"unknown recipient", "user-nobody", "hi", ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Send(ctx, alice, tc.to, tc.body); !errors.Is(err, tc.wantError) {
				t.Fatalf("got=%v want=%v", err, tc.wantError)
			}
		})
	}

	m := mustSend(t, svc, alice, bob, " hello ")
	if m.Content != "hello" || m.Read || m.SenderID != alice || m.RecipientID != bob {
		t.Fatalf("message=%+v", m)
	}
}

func TestService_SendPropagatesDirectoryFailure(t *testing.T) {
	svc := NewService(NewMemoryStore(), brokenDirectory{}, nil)
	_, err := svc.Send(context.Background(), alice, bob, "hi")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("got=%v want store failure", err)
	}
}

func TestService_GetVisibleToPartiesOnly(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	m := mustSend(t, svc, alice, bob, "secret")

	for _, caller := range []string{alice, bob} {
		got, err := svc.Get(ctx, caller, m.ID)
		if err != nil || got.ID != m.ID {
			t.Fatalf("caller=%s got=%+v err=%v", caller, got, err)
		}
	}
	if _, err := svc.Get(ctx, carol, m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("third party: got=%v want not found", err)
	}
	if _, err := svc.Get(ctx, alice, "bogus"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bad id: got=%v want not found", err)
	}
}

func TestService_MarkReadRecipientOnly(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	m := mustSend(t, svc, alice, bob, "ping")

	for _, caller := range []string{alice, carol} {
		if _, err := svc.MarkRead(ctx, caller, m.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("caller=%s got=%v want not found", caller, err)
		}
	}
	got, err := svc.MarkRead(ctx, bob, m.ID)
	if err != nil || !got.Read {
		t.Fatalf("got=%+v err=%v", got, err)
	}
	again, err := svc.MarkRead(ctx, bob, m.ID)
	if err != nil || !again.Read {
		t.Fatalf("second mark: got=%+v err=%v", again, err)
	}
}

func TestService_DeleteSenderOnly(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	m := mustSend(t, svc, alice, bob, "oops")

	for _, caller := range []string{bob, carol} {
		if err := svc.Delete(ctx, caller, m.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("caller=%s got=%v want not found", caller, err)
		}
	}
	if _, err := svc.Get(ctx, bob, m.ID); err != nil {
		t.Fatalf("message gone after rejected deletes: %v", err)
	}
	if err := svc.Delete(ctx, alice, m.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, alice, m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got=%v want not found", err)
	}
}

func TestService_InboxAndSent(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	m1 := mustSend(t, svc, alice, bob, "1")
	m2 := mustSend(t, svc, carol, bob, "2")
	m3 := mustSend(t, svc, alice, bob, "3")
	mustSend(t, svc, bob, alice, "reply")

	inbox, err := svc.Inbox(ctx, bob, paging.Page{})
	if err != nil {
		t.Fatalf("Inbox: %v", err)
	}
	if got := messageIDs(inbox); !equal(got, []string{m3.ID, m2.ID, m1.ID}) {
		t.Fatalf("inbox=%v", got)
	}

	sent, err := svc.Sent(ctx, alice, paging.Page{Limit: 1})
	if err != nil {
		t.Fatalf("Sent: %v", err)
	}
	if got := messageIDs(sent); !equal(got, []string{m3.ID}) {
		t.Fatalf("sent=%v", got)
	}
	older, err := svc.Sent(ctx, alice, paging.Page{Before: m3.ID})
	if err != nil {
		t.Fatalf("Sent: %v", err)
	}
	if got := messageIDs(older); !equal(got, []string{m1.ID}) {
		t.Fatalf("older=%v", got)
	}
}

func TestService_InboxKeepsCreationOrderWithinOneMillisecond(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(NewMemoryStore(), directory{alice: true, bob: true}, func() time.Time { return at })
	ctx := context.Background()

	const n = 60
	sent := make([]string, 0, n)
	for i := 0; i < n; i++ {
		sent = append(sent, mustSend(t, svc, alice, bob, "same ms").ID)
	}

	inbox, err := svc.Inbox(ctx, bob, paging.Page{})
	if err != nil {
		t.Fatalf("Inbox: %v", err)
	}
	got := messageIDs(inbox)
	if len(got) != n {
		t.Fatalf("listed=%d want=%d", len(got), n)
	}
	for i, id := range got {
		if want := sent[n-1-i]; id != want {
			t.Fatalf("position %d: got=%s want=%s", i, id, want)
		}
	}
}

func messageIDs(ms []Message) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
