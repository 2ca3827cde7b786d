package posts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kite/cmd/identity"
	"kite/cmd/internal/auth"
)

// asCaller stands in for the auth gate: X-Test-User names the caller.
func asCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Test-User")
		if id == "" {
			http.Error(w, "no caller", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity.User{ID: id, Role: identity.RoleUser})))
	})
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(nil, newTestService(t, nil), 0).Register(mux, asCaller)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path, caller, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-Test-User", caller)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodePost(t *testing.T, rr *httptest.ResponseRecorder) postResponse {
	t.Helper()
	var out postResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v body=%s", err, rr.Body.String())
	}
	return out
}

func TestHandler_CreateAndGet(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, http.MethodPost, "/api/posts", alice, `{"content":"hello","mediaRef":"img/1.png"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decodePost(t, rr)
	if created.AuthorID != alice || created.Content != "hello" || created.LikerIDs == nil || created.Comments == nil {
		t.Fatalf("created=%+v", created)
	}

	rr = do(t, mux, http.MethodGet, "/api/posts/"+created.ID, bob, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}
	if got := decodePost(t, rr); got.ID != created.ID {
		t.Fatalf("got=%+v", got)
	}
	if strings.Contains(rr.Body.String(), "updatedAt") {
		t.Fatalf("unedited post carries updatedAt: %s", rr.Body.String())
	}
}

func TestHandler_RejectsBadBodies(t *testing.T) {
	mux := newTestMux(t)

	cases := []struct {
		name, body, code string
	}{
		{"malformed", `{"content":`, `"invalid_json"`},
		{"unknown field", `{"content":"x","authorId":"someone"}`, `"invalid_json"`},
		{"empty content", `{"content":"  "}`, `"invalid_request"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, mux, http.MethodPost, "/api/posts", alice, tc.body)
			if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), tc.code) {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHandler_DeleteByNonOwnerLooksMissing(t *testing.T) {
	mux := newTestMux(t)

	mine := decodePost(t, do(t, mux, http.MethodPost, "/api/posts", alice, `{"content":"alice"}`))
	theirs := decodePost(t, do(t, mux, http.MethodPost, "/api/posts", bob, `{"content":"bob"}`))

	rr := do(t, mux, http.MethodDelete, "/api/posts/"+mine.ID, alice, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete own status=%d", rr.Code)
	}
	var del deletedResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &del); err != nil || del.ID != mine.ID || del.Message == "" {
		t.Fatalf("delete body=%s err=%v", rr.Body.String(), err)
	}
	if rr := do(t, mux, http.MethodGet, "/api/posts/"+mine.ID, alice, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("get deleted status=%d", rr.Code)
	}

	notOwned := do(t, mux, http.MethodDelete, "/api/posts/"+theirs.ID, alice, "")
	missing := do(t, mux, http.MethodDelete, "/api/posts/01ARZ3NDEKTSV4RRFFQ69G5FAV", alice, "")
	if notOwned.Code != http.StatusNotFound || missing.Code != http.StatusNotFound {
		t.Fatalf("status not-owned=%d missing=%d", notOwned.Code, missing.Code)
	}
	if notOwned.Body.String() != missing.Body.String() {
		t.Fatalf("bodies differ:\n%s\n%s", notOwned.Body.String(), missing.Body.String())
	}
	if rr := do(t, mux, http.MethodGet, "/api/posts/"+theirs.ID, bob, ""); rr.Code != http.StatusOK {
		t.Fatalf("other's post gone: status=%d", rr.Code)
	}
}

func TestHandler_UpdateByNonOwner(t *testing.T) {
	mux := newTestMux(t)
	p := decodePost(t, do(t, mux, http.MethodPost, "/api/posts", alice, `{"content":"v1"}`))

	if rr := do(t, mux, http.MethodPut, "/api/posts/"+p.ID, bob, `{"content":"hijack"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	rr := do(t, mux, http.MethodPut, "/api/posts/"+p.ID, alice, `{"content":"v2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := decodePost(t, rr); got.Content != "v2" || got.UpdatedAt == nil {
		t.Fatalf("got=%+v", got)
	}
}

func TestHandler_LikesAndComments(t *testing.T) {
	mux := newTestMux(t)
	p := decodePost(t, do(t, mux, http.MethodPost, "/api/posts", alice, `{"content":"hi"}`))

	if got := decodePost(t, do(t, mux, http.MethodPost, "/api/posts/"+p.ID+"/like", bob, "")); len(got.LikerIDs) != 1 {
		t.Fatalf("likers=%v", got.LikerIDs)
	}
	if got := decodePost(t, do(t, mux, http.MethodDelete, "/api/posts/"+p.ID+"/like", bob, "")); len(got.LikerIDs) != 0 {
		t.Fatalf("likers=%v", got.LikerIDs)
	}

	rr := do(t, mux, http.MethodPost, "/api/posts/"+p.ID+"/comments", bob, `{"text":"nice"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("comment status=%d", rr.Code)
	}
	c := decodePost(t, rr).Comments[0]

	if rr := do(t, mux, http.MethodDelete, "/api/posts/"+p.ID+"/comments/"+c.ID, alice, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("author of post deleting other's comment: status=%d", rr.Code)
	}
	rr = do(t, mux, http.MethodDelete, "/api/posts/"+p.ID+"/comments/"+c.ID, bob, "")
	if rr.Code != http.StatusOK || len(decodePost(t, rr).Comments) != 0 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestHandler_ListPaging(t *testing.T) {
	mux := newTestMux(t)
	for _, c := range []string{"one", "two", "three"} {
		do(t, mux, http.MethodPost, "/api/posts", alice, `{"content":"`+c+`"}`)
	}
	do(t, mux, http.MethodPost, "/api/posts", bob, `{"content":"bob"}`)

	rr := do(t, mux, http.MethodGet, "/api/posts?limit=2", bob, "")
	var page []postResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil || len(page) != 2 || page[0].Content != "bob" {
		t.Fatalf("page=%+v err=%v", page, err)
	}

	rr = do(t, mux, http.MethodGet, "/api/users/"+alice+"/posts", bob, "")
	var byAlice []postResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &byAlice); err != nil || len(byAlice) != 3 || byAlice[0].Content != "three" {
		t.Fatalf("byAlice=%+v err=%v", byAlice, err)
	}

	if rr := do(t, mux, http.MethodGet, "/api/posts?limit=abc", bob, ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}
