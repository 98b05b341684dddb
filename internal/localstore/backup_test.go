package localstore_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/HendryAvila/toolvault/internal/localstore"
	"github.com/HendryAvila/toolvault/internal/tool"
)

type metaKey struct {
	ID       string
	Owner    string
	Hash     string
	IsPublic bool
	Favorite bool
}

func snapshot(t *testing.T, s *localstore.Store) []metaKey {
	t.Helper()
	ctx := context.Background()
	metas, err := s.List(ctx, tool.ListParams{})
	if err != nil {
		t.Fatal(err)
	}
	var keys []metaKey
	for _, m := range metas {
		fav, _ := s.IsFavorite(ctx, m.ID)
		keys = append(keys, metaKey{ID: m.ID, Owner: m.Owner, Hash: m.ContentHash, IsPublic: m.IsPublic, Favorite: fav})
	}
	return keys
}

func TestExportImport_RoundTripIntoFreshStore(t *testing.T) {
	useClock(t)
	src := newTestStore(t)
	ctx := context.Background()

	a, _ := src.Save(ctx, echo(), tool.SaveMeta{IsPublic: true})
	d := echo()
	d.Name = "Crop"
	d.Pipeline = []tool.Step{{Op: "crop", Args: map[string]any{"box": []any{0, 0, 10, 10}}}}
	b, _ := src.Save(ctx, d, tool.SaveMeta{})
	_ = src.Favorite(ctx, b.ID, true)
	_, _ = src.Put(ctx, tool.Record{ID: "remote-7", Owner: "user-42", Definition: echo(), OwnerMeta: tool.OwnerMeta{Name: "Remote Echo", UpdatedAt: a.UpdatedAt}})

	before := snapshot(t, src)

	text, err := src.ExportJSON(ctx)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	dst := newTestStore(t)
	res, err := dst.ImportJSON(ctx, text)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if res.ToolsImported != 3 || res.FavoritesImported != 1 {
		t.Errorf("result = %+v", res)
	}

	after := snapshot(t, dst)
	sortKeys := cmpopts.SortSlices(func(x, y metaKey) bool { return x.ID < y.ID })
	if diff := cmp.Diff(before, after, sortKeys); diff != "" {
		t.Errorf("round trip mismatch (-before +after):\n%s", diff)
	}
}

func TestImport_OverwritesExistingIDs(t *testing.T) {
	useClock(t)
	s := newTestStore(t)
	ctx := context.Background()

	m, _ := s.Save(ctx, echo(), tool.SaveMeta{})
	text, _ := s.ExportJSON(ctx)

	changed := echo()
	changed.Summary = "edited after backup"
	_, _ = s.Save(ctx, changed, tool.SaveMeta{ID: m.ID})

	if _, err := s.ImportJSON(ctx, text); err != nil {
		t.Fatal(err)
	}
	all, _ := s.List(ctx, tool.ListParams{})
	if len(all) != 1 {
		t.Fatalf("len = %d, want 1", len(all))
	}
	if all[0].ContentHash != m.ContentHash {
		t.Error("import should restore backed-up content")
	}
	if !all[0].UpdatedAt.After(m.UpdatedAt) {
		t.Error("import is a save and must refresh updatedAt")
	}
}

func TestExportJSON_Shape(t *testing.T) {
	s := newTestStore(t)
	text, err := s.ExportJSON(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(text, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"version", "exportedAt", "tools", "favorites"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
}

func TestImportJSON_Malformed(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.ImportJSON(context.Background(), []byte("{not json")); err == nil {
		t.Error("expected decode error")
	}
}
