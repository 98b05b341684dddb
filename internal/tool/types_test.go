package tool

import (
	"testing"
	"time"
)

func sampleDefinition() Definition {
	return Definition{
		Name:    "Resize",
		Summary: "Shrink images",
		Inputs:  []Input{{Name: "image", Type: "file", Options: map[string]any{"accept": "image/*", "max": 10}}},
		Pipeline: []Step{
			{Op: "resize", Args: map[string]any{"width": 100, "height": 50, "fit": map[string]any{"mode": "cover", "bg": "#fff"}}},
		},
		Output: Output{Type: "file", Pattern: "{name}-small.{ext}"},
	}
}

func TestIsLocalID(t *testing.T) {
	if !IsLocalID("local_abc") {
		t.Error("local_abc should be local")
	}
	if IsLocalID("abc") {
		t.Error("abc should not be local")
	}
}

func TestDefinitionHash_StableAcrossMapOrder(t *testing.T) {
	a := sampleDefinition()
	b := sampleDefinition()
	b.Pipeline[0].Args = map[string]any{"fit": map[string]any{"bg": "#fff", "mode": "cover"}, "height": 50, "width": 100}

	ha, err := a.Hash()
	if err != nil {
		t.Fatal(err)
	}
	hb, err := b.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Errorf("hash differs: %s vs %s", ha, hb)
	}
}

func TestDefinitionHash_ChangesWithContent(t *testing.T) {
	a := sampleDefinition()
	b := sampleDefinition()
	b.Pipeline[0].Args["width"] = 101

	ha, _ := a.Hash()
	hb, _ := b.Hash()
	if ha == hb {
		t.Error("different definitions must not share a hash")
	}
}

func TestRecordMeta_DefaultsNameToDefinition(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := Record{ID: "x", Definition: sampleDefinition(), OwnerMeta: OwnerMeta{UpdatedAt: now, IsPublic: true}}

	m, err := rec.Meta(SourceLocal)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "Resize" {
		t.Errorf("Name = %q, want Resize", m.Name)
	}
	if !m.IsPublic || !m.UpdatedAt.Equal(now) || m.Source != SourceLocal {
		t.Errorf("unexpected meta %+v", m)
	}
	want, _ := rec.Definition.Hash()
	if m.ContentHash != want {
		t.Errorf("ContentHash = %s, want %s", m.ContentHash, want)
	}
}

func TestPick(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Second)

	tests := []struct {
		name   string
		local  time.Time
		remote time.Time
		want   Source
	}{
		{"local newer", t2, t1, SourceLocal},
		{"remote newer", t1, t2, SourceRemote},
		{"tie prefers remote", t1, t1, SourceRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pick(
				Meta{ID: "l", UpdatedAt: tt.local, Source: SourceLocal},
				Meta{ID: "r", UpdatedAt: tt.remote, Source: SourceRemote},
			)
			if got.Source != tt.want {
				t.Errorf("Pick = %s, want %s", got.Source, tt.want)
			}
		})
	}
}

func TestSortNewestFirst(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	metas := []Meta{
		{ID: "b", UpdatedAt: t1},
		{ID: "c", UpdatedAt: t1.Add(2 * time.Hour)},
		{ID: "a", UpdatedAt: t1},
	}
	SortNewestFirst(metas)
	got := []string{metas[0].ID, metas[1].ID, metas[2].ID}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
