package remote_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/HendryAvila/toolvault/internal/remote"
	"github.com/HendryAvila/toolvault/internal/remote/cloud"
	"github.com/HendryAvila/toolvault/internal/tool"
)

func newCloud(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := cloud.New(cloud.Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T, baseURL string, tokenFile string) *remote.Client {
	t.Helper()
	c, err := remote.NewClient(remote.ClientConfig{BaseURL: baseURL, TokenFile: tokenFile})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func echo() tool.Definition {
	return tool.Definition{
		Name:     "Echo",
		Summary:  "Repeats its input",
		Pipeline: []tool.Step{{Op: "identity"}},
		Output:   tool.Output{Type: "text"},
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/relative"} {
		if _, err := remote.NewClient(remote.ClientConfig{BaseURL: raw}); err == nil {
			t.Errorf("NewClient(%q) should fail", raw)
		}
	}
}

func TestClient_EndToEnd(t *testing.T) {
	ts := newCloud(t)
	c := newClient(t, ts.URL, "")
	ctx := context.Background()

	ok, err := c.IsAuthenticated(ctx)
	if err != nil || ok {
		t.Fatalf("IsAuthenticated before sign-in = %v, %v", ok, err)
	}
	if _, err := c.List(ctx, tool.ListParams{}); !errors.Is(err, remote.ErrUnauthorized) {
		t.Fatalf("List without token: err = %v, want ErrUnauthorized", err)
	}

	u, err := c.SignUp(ctx, "ada@example.com", "hunter2")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if ok, _ := c.IsAuthenticated(ctx); !ok {
		t.Fatal("expected authenticated after sign-up")
	}
	if me, _ := c.CurrentUser(ctx); me.ID != u.ID {
		t.Errorf("CurrentUser = %+v, want %+v", me, u)
	}

	m, err := c.Save(ctx, echo(), tool.SaveMeta{IsPublic: true})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if m.Source != tool.SourceRemote || m.Owner != u.ID || tool.IsLocalID(m.ID) {
		t.Errorf("meta = %+v", m)
	}
	wantHash, _ := echo().Hash()
	if m.ContentHash != wantHash {
		t.Errorf("server hash %s differs from client hash %s", m.ContentHash, wantHash)
	}

	rec, err := c.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Definition.Name != "Echo" || !rec.OwnerMeta.UpdatedAt.Equal(m.UpdatedAt) {
		t.Errorf("record = %+v", rec)
	}

	list, err := c.List(ctx, tool.ListParams{Query: "echo"})
	if err != nil || len(list) != 1 || list[0].Source != tool.SourceRemote {
		t.Fatalf("List = %+v, %v", list, err)
	}

	if err := c.Favorite(ctx, m.ID, true); err != nil {
		t.Fatal(err)
	}
	if fav, _ := c.IsFavorite(ctx, m.ID); !fav {
		t.Error("expected favorite")
	}

	if err := c.Delete(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, m.ID); !errors.Is(err, tool.ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want tool.ErrNotFound", err)
	}

	if err := c.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := c.IsAuthenticated(ctx); ok {
		t.Error("expected signed out")
	}
}

func TestClient_SignInWrongPassword(t *testing.T) {
	ts := newCloud(t)
	c := newClient(t, ts.URL, "")
	ctx := context.Background()
	_, _ = c.SignUp(ctx, "ada@example.com", "hunter2")
	_ = c.SignOut(ctx)

	if _, err := c.SignIn(ctx, "ada@example.com", "nope"); !errors.Is(err, remote.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestClient_TokenFilePersists(t *testing.T) {
	ts := newCloud(t)
	tokenFile := filepath.Join(t.TempDir(), "auth", "token")
	ctx := context.Background()

	first := newClient(t, ts.URL, tokenFile)
	if _, err := first.SignUp(ctx, "ada@example.com", "hunter2"); err != nil {
		t.Fatal(err)
	}

	second := newClient(t, ts.URL, tokenFile)
	if ok, err := second.IsAuthenticated(ctx); !ok || err != nil {
		t.Errorf("restored session: ok=%v err=%v", ok, err)
	}

	if err := second.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(tokenFile); !os.IsNotExist(err) {
		t.Errorf("token file should be removed on sign-out, stat err = %v", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := newClient(t, url, "")
	ctx := context.Background()
	if _, err := c.List(ctx, tool.ListParams{}); !errors.Is(err, remote.ErrUnavailable) {
		t.Errorf("List: err = %v, want ErrUnavailable", err)
	}
	if _, err := c.SignIn(ctx, "a@b.c", "x"); !errors.Is(err, remote.ErrUnavailable) {
		t.Errorf("SignIn: err = %v, want ErrUnavailable", err)
	}
	if _, err := c.IsAuthenticated(ctx); err != nil {
		t.Errorf("IsAuthenticated without token should not touch the network: %v", err)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusInternalServerError, remote.ErrUnavailable},
		{http.StatusBadGateway, remote.ErrUnavailable},
		{http.StatusUnauthorized, remote.ErrUnauthorized},
		{http.StatusForbidden, remote.ErrUnauthorized},
		{http.StatusNotFound, tool.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"boom"}`))
			}))
			defer ts.Close()

			c := newClient(t, ts.URL, "")
			_, err := c.Get(context.Background(), "x")
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestClient_DropsMalformedHashes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tools":[
			{"id":"a","name":"A","contentHash":"0000abcd","updatedAt":"2026-01-01T00:00:00Z"},
			{"id":"b","name":"B","contentHash":"not-a-hash","updatedAt":"2026-01-01T00:00:00Z"}
		]}`))
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, "")
	metas, err := c.List(context.Background(), tool.ListParams{})
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 1 || metas[0].ID != "a" {
		t.Errorf("metas = %+v", metas)
	}
}
