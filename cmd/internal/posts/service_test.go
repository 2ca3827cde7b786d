package posts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"kite/cmd/internal/paging"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
)

// steppedClock advances by one millisecond per call so ids sort by creation.
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
	return NewService(st, steppedClock())
}

func mustCreate(t *testing.T, svc *Service, author, content string) Post {
	t.Helper()
	p, err := svc.Create(context.Background(), author, Input{Content: content})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func TestService_CreateValidates(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		in   Input
	}{
		{"empty", Input{Content: "   "}},
		{"too long", Input{Content: strings.Repeat("ж", maxContentRunes+1)}},
		{"media too long", Input{Content: "x", MediaRef: strings.Repeat("m", maxMediaRefLen+1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, alice, tc.in)
			var in InputError
			if !errors.As(err, &in) || !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("got=%v want InputError", err)
			}
		})
	}

	p, err := svc.Create(ctx, alice, Input{Content: "  hello  ", MediaRef: " img/1.png "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Content != "hello" || p.MediaRef != "img/1.png" || p.AuthorID != alice || p.UpdatedAt != nil {
		t.Fatalf("post=%+v", p)
	}
	if len(p.LikerIDs) != 0 || len(p.Comments) != 0 {
		t.Fatalf("post=%+v", p)
	}
}

func TestService_DeleteOwnerOnly(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	mine := mustCreate(t, svc, alice, "alice's post")
	theirs := mustCreate(t, svc, bob, "bob's post")

	if err := svc.Delete(ctx, alice, mine.ID); err != nil {
		t.Fatalf("Delete own: %v", err)
	}
	if _, err := svc.Get(ctx, mine.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete: got=%v want not found", err)
	}
	if err := svc.Delete(ctx, alice, mine.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete twice: got=%v want not found", err)
	}

	if err := svc.Delete(ctx, alice, theirs.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete other's: got=%v want not found", err)
	}
	got, err := svc.Get(ctx, theirs.ID)
	if err != nil || got.Content != "bob's post" {
		t.Fatalf("other's post changed: %+v %v", got, err)
	}
}

func TestService_UpdateOwnerOnly(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	p := mustCreate(t, svc, alice, "v1")

	if _, err := svc.Update(ctx, bob, p.ID, Input{Content: "hijack"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got=%v want not found", err)
	}
	if _, err := svc.Update(ctx, alice, p.ID, Input{Content: ""}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got=%v want invalid", err)
	}

	up, err := svc.Update(ctx, alice, p.ID, Input{Content: "v2"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if up.Content != "v2" || up.UpdatedAt == nil || !up.UpdatedAt.After(p.CreatedAt) {
		t.Fatalf("post=%+v", up)
	}
}

func TestService_LikesAreIdempotent(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	p := mustCreate(t, svc, alice, "like me")

	for range 2 {
		got, err := svc.Like(ctx, bob, p.ID)
		if err != nil {
			t.Fatalf("Like: %v", err)
		}
		if len(got.LikerIDs) != 1 || got.LikerIDs[0] != bob {
			t.Fatalf("likers=%v", got.LikerIDs)
		}
	}
	for range 2 {
		got, err := svc.Unlike(ctx, bob, p.ID)
		if err != nil {
			t.Fatalf("Unlike: %v", err)
		}
		if len(got.LikerIDs) != 0 {
			t.Fatalf("likers=%v", got.LikerIDs)
		}
	}
	if _, err := svc.Like(ctx, bob, "not-an-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got=%v want not found", err)
	}
}

func TestService_Comments(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	p := mustCreate(t, svc, alice, "discuss")

	if _, err := svc.AddComment(ctx, bob, p.ID, " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got=%v want invalid", err)
	}
	if _, err := svc.AddComment(ctx, bob, p.ID, strings.Repeat("c", maxCommentRunes+1)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got=%v want invalid", err)
	}

	withBob, err := svc.AddComment(ctx, bob, p.ID, "first")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	withBoth, err := svc.AddComment(ctx, alice, p.ID, "second")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if len(withBoth.Comments) != 2 || withBoth.Comments[0].Text != "first" || withBoth.Comments[1].Text != "second" {
		t.Fatalf("comments=%+v", withBoth.Comments)
	}
	bobs := withBob.Comments[0]

	// The post author cannot remove someone else's comment.
	if _, err := svc.DeleteComment(ctx, alice, p.ID, bobs.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got=%v want not found", err)
	}
	after, err := svc.DeleteComment(ctx, bob, p.ID, bobs.ID)
	if err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if len(after.Comments) != 1 || after.Comments[0].AuthorID != alice {
		t.Fatalf("comments=%+v", after.Comments)
	}

	if _, err := svc.AddComment(ctx, bob, "01ARZ3NDEKTSV4RRFFQ69G5FAV", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got=%v want not found", err)
	}
}

func TestService_ListNewestFirst(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	a1 := mustCreate(t, svc, alice, "a1")
	b1 := mustCreate(t, svc, bob, "b1")
	a2 := mustCreate(t, svc, alice, "a2")

	all, err := svc.List(ctx, paging.Page{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := postIDs(all); !equal(got, []string{a2.ID, b1.ID, a1.ID}) {
		t.Fatalf("order=%v", got)
	}

	next, err := svc.List(ctx, paging.Page{Limit: 1, Before: b1.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := postIDs(next); !equal(got, []string{a1.ID}) {
		t.Fatalf("page=%v", got)
	}

	mine, err := svc.ListByAuthor(ctx, alice, paging.Page{})
	if err != nil {
		t.Fatalf("ListByAuthor: %v", err)
	}
	if got := postIDs(mine); !equal(got, []string{a2.ID, a1.ID}) {
		t.Fatalf("by author=%v", got)
	}
}

func TestService_ListKeepsCreationOrderWithinOneMillisecond(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(NewMemoryStore(), func() time.Time { return at })
	ctx := context.Background()

	const n = 60
	created := make([]string, 0, n)
	for i := 0; i < n; i++ {
		created = append(created, mustCreate(t, svc, alice, "same ms").ID)
	}

	all, err := svc.List(ctx, paging.Page{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := postIDs(all)
	if len(got) != n {
		t.Fatalf("listed=%d want=%d", len(got), n)
	}
	for i, id := range got {
		if want := created[n-1-i]; id != want {
			t.Fatalf("position %d: got=%s want=%s", i, id, want)
		}
	}
}

func TestService_DeleteDropsLikesAndComments(t *testing.T) {
	st := NewMemoryStore()
	svc := newTestService(t, st)
	ctx := context.Background()
	p := mustCreate(t, svc, alice, "short lived")

	if _, err := svc.Like(ctx, bob, p.ID); err != nil {
		t.Fatalf("Like: %v", err)
	}
	withComment, err := svc.AddComment(ctx, bob, p.ID, "hi")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if err := svc.Delete(ctx, alice, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.GetComment(ctx, p.ID, withComment.Comments[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("comment survived: %v", err)
	}
}

func postIDs(ps []Post) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
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
