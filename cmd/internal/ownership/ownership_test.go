package ownership

import (
	"context"
	"errors"
	"testing"
)

type doc struct{ id, owner string }

func (d doc) OwnerID() string { return d.owner }

func loader(docs map[string]doc) func(context.Context, string) (doc, error) {
	return func(_ context.Context, id string) (doc, error) {
		d, ok := docs[id]
		if !ok {
			return doc{}, ErrNotFound
		}
		return d, nil
	}
}

func TestLoad(t *testing.T) {
	load := loader(map[string]doc{"p1": {id: "p1", owner: "u1"}})
	ctx := context.Background()

	got, err := Load(ctx, load, "p1", "u1")
	if err != nil || got.id != "p1" {
		t.Fatalf("owner: got=%+v err=%v", got, err)
	}

	_, notOwned := Load(ctx, load, "p1", "u2")
	_, missing := Load(ctx, load, "nope", "u1")
	_, anon := Load(ctx, load, "p1", "")
	for name, err := range map[string]error{"not owned": notOwned, "missing": missing, "anonymous": anon} {
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: got=%v want=%v", name, err, ErrNotFound)
		}
	}
}

func TestLoad_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	load := func(context.Context, string) (doc, error) { return doc{}, boom }

	if _, err := Load(context.Background(), load, "p1", "u1"); !errors.Is(err, boom) {
		t.Fatalf("got=%v want=%v", err, boom)
	}
}

func TestCheck(t *testing.T) {
	if err := Check("u1", "u1", "u2"); err != nil {
		t.Fatalf("sender: %v", err)
	}
	if err := Check("u2", "u1", "u2"); err != nil {
		t.Fatalf("recipient: %v", err)
	}
	if err := Check("u3", "u1", "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("third party: %v", err)
	}
}
