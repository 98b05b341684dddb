package cloud_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/HendryAvila/toolvault/internal/remote"
	"github.com/HendryAvila/toolvault/internal/remote/cloud"
	"github.com/HendryAvila/toolvault/internal/tool"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestServer(t *testing.T) *cloud.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := cloud.New(cloud.Config{Secret: testSecret, BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s
}

func call(t *testing.T, s *cloud.Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func signUp(t *testing.T, s *cloud.Server, email string) remote.Session {
	t.Helper()
	w := call(t, s, http.MethodPost, "/v1/auth/signup", "", remote.Credentials{Email: email, Password: "hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("signup status = %d: %s", w.Code, w.Body)
	}
	var sess remote.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestNew_RejectsShortSecret(t *testing.T) {
	if _, err := cloud.New(cloud.Config{Secret: []byte("short")}); err == nil {
		t.Error("expected error for short secret")
	}
}

func TestSignUpSignIn(t *testing.T) {
	s := newTestServer(t)
	sess := signUp(t, s, "Ada@Example.com")
	if sess.Token == "" || sess.User.Email != "ada@example.com" {
		t.Errorf("session = %+v", sess)
	}

	if w := call(t, s, http.MethodPost, "/v1/auth/signup", "", remote.Credentials{Email: "ada@example.com", Password: "x"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate signup status = %d", w.Code)
	}
	if w := call(t, s, http.MethodPost, "/v1/auth/signin", "", remote.Credentials{Email: "ada@example.com", Password: "wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d", w.Code)
	}
	if w := call(t, s, http.MethodPost, "/v1/auth/signin", "", remote.Credentials{Email: "ada@example.com", Password: "hunter2"}); w.Code != http.StatusOK {
		t.Errorf("signin status = %d", w.Code)
	}
}

func TestRequireUser(t *testing.T) {
	s := newTestServer(t)
	if w := call(t, s, http.MethodGet, "/v1/tools", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d", w.Code)
	}
	if w := call(t, s, http.MethodGet, "/v1/tools", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d", w.Code)
	}

	other, _ := cloud.New(cloud.Config{Secret: []byte("ffffffffffffffffffffffffffffffff"), BcryptCost: bcrypt.MinCost})
	foreign := signUp(t, other, "eve@example.com")
	if w := call(t, s, http.MethodGet, "/v1/tools", foreign.Token, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("foreign token status = %d", w.Code)
	}
}

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	defer cloud.SetClock(func() time.Time { return now })()

	gin.SetMode(gin.TestMode)
	s, _ := cloud.New(cloud.Config{Secret: testSecret, TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost})
	sess := signUp(t, s, "ada@example.com")

	if w := call(t, s, http.MethodGet, "/v1/auth/user", sess.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("fresh token status = %d", w.Code)
	}
	now = now.Add(2 * time.Hour)
	if w := call(t, s, http.MethodGet, "/v1/auth/user", sess.Token, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expired token status = %d", w.Code)
	}
}

func TestTools_Visibility(t *testing.T) {
	s := newTestServer(t)
	ada := signUp(t, s, "ada@example.com")
	bob := signUp(t, s, "bob@example.com")

	save := func(token, name string, public bool) tool.Meta {
		t.Helper()
		w := call(t, s, http.MethodPost, "/v1/tools", token, remote.SaveRequest{
			Definition: tool.Definition{Name: name, Output: tool.Output{Type: "text"}},
			Meta:       tool.SaveMeta{IsPublic: public},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("save status = %d: %s", w.Code, w.Body)
		}
		var m tool.Meta
		_ = json.Unmarshal(w.Body.Bytes(), &m)
		return m
	}
	private := save(ada.Token, "Private", false)
	public := save(ada.Token, "Public", true)

	if w := call(t, s, http.MethodGet, "/v1/tools/"+private.ID, bob.Token, nil); w.Code != http.StatusNotFound {
		t.Errorf("bob reading ada's private tool: status = %d", w.Code)
	}
	if w := call(t, s, http.MethodGet, "/v1/tools/"+public.ID, bob.Token, nil); w.Code != http.StatusOK {
		t.Errorf("bob reading ada's public tool: status = %d", w.Code)
	}

	w := call(t, s, http.MethodGet, "/v1/tools", bob.Token, nil)
	var list remote.ListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Tools) != 1 || list.Tools[0].ID != public.ID {
		t.Errorf("bob's listing = %+v", list.Tools)
	}

	if w := call(t, s, http.MethodDelete, "/v1/tools/"+public.ID, bob.Token, nil); w.Code != http.StatusForbidden {
		t.Errorf("bob deleting ada's tool: status = %d", w.Code)
	}
	if w := call(t, s, http.MethodDelete, "/v1/tools/missing", bob.Token, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete missing: status = %d", w.Code)
	}
}

func TestSave_OverwriteKeepsIDAndAdvancesTime(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	defer cloud.SetClock(func() time.Time { return now })()

	b := cloud.NewBackend(bcrypt.MinCost)
	def := tool.Definition{Name: "Echo"}
	first, err := b.Save("u1", def, tool.SaveMeta{})
	if err != nil {
		t.Fatal(err)
	}
	second, _ := b.Save("u1", def, tool.SaveMeta{ID: first.ID})
	if second.ID != first.ID {
		t.Errorf("id changed: %s -> %s", first.ID, second.ID)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Error("updatedAt must advance even with a frozen clock")
	}

	foreign, _ := b.Save("u2", def, tool.SaveMeta{ID: first.ID})
	if foreign.ID == first.ID {
		t.Error("another owner must not overwrite by id")
	}
}

func TestListQueryAndLimit(t *testing.T) {
	b := cloud.NewBackend(bcrypt.MinCost)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"Resize", "Crop", "Resize PNG"} {
		b.Put(tool.Record{
			ID:         name,
			Owner:      "u1",
			Definition: tool.Definition{Name: name},
			OwnerMeta:  tool.OwnerMeta{Name: name, UpdatedAt: base.Add(time.Duration(i) * time.Minute)},
		})
	}
	metas, _ := b.List("u1", tool.ListParams{Query: "resize"})
	if len(metas) != 2 || metas[0].ID != "Resize PNG" {
		t.Errorf("query result = %+v", metas)
	}
	metas, _ = b.List("u1", tool.ListParams{Limit: 1})
	if len(metas) != 1 || metas[0].ID != "Resize PNG" {
		t.Errorf("limit result = %+v", metas)
	}
	for _, m := range metas {
		if m.Source != tool.SourceRemote {
			t.Errorf("source = %q", m.Source)
		}
	}
}

func TestFavorites(t *testing.T) {
	s := newTestServer(t)
	ada := signUp(t, s, "ada@example.com")

	for i := 0; i < 2; i++ {
		if w := call(t, s, http.MethodPut, "/v1/favorites/t1", ada.Token, nil); w.Code != http.StatusNoContent {
			t.Fatalf("favorite status = %d", w.Code)
		}
	}
	if got := s.Backend().Favorites(ada.User.ID); len(got) != 1 {
		t.Errorf("favorites = %v, want exactly one", got)
	}

	w := call(t, s, http.MethodGet, "/v1/favorites/t1", ada.Token, nil)
	var resp remote.FavoriteResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Favorite {
		t.Error("expected favorite")
	}

	call(t, s, http.MethodDelete, "/v1/favorites/t1", ada.Token, nil)
	if s.Backend().IsFavorite(ada.User.ID, "t1") {
		t.Error("expected unfavorited")
	}
}
