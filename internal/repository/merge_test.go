package repository

import (
	"testing"
	"time"

	"github.com/HendryAvila/toolvault/internal/tool"
)

func TestMerge(t *testing.T) {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }
	meta := func(id, hash string, src tool.Source, min int) tool.Meta {
		return tool.Meta{ID: id, ContentHash: hash, Source: src, UpdatedAt: at(min)}
	}

	tests := []struct {
		name   string
		local  []tool.Meta
		remote []tool.Meta
		want   []string
	}{
		{
			name:   "disjoint hashes sorted newest first",
			local:  []tool.Meta{meta("l1", "h1", tool.SourceLocal, 1)},
			remote: []tool.Meta{meta("r2", "h2", tool.SourceRemote, 2)},
			want:   []string{"r2", "l1"},
		},
		{
			name:   "exact tie keeps remote",
			local:  []tool.Meta{meta("l1", "h1", tool.SourceLocal, 1)},
			remote: []tool.Meta{meta("r1", "h1", tool.SourceRemote, 1)},
			want:   []string{"r1"},
		},
		{
			name:   "later local wins",
			local:  []tool.Meta{meta("l1", "h1", tool.SourceLocal, 2)},
			remote: []tool.Meta{meta("r1", "h1", tool.SourceRemote, 1)},
			want:   []string{"l1"},
		},
		{
			name:   "later remote wins",
			local:  []tool.Meta{meta("l1", "h1", tool.SourceLocal, 1)},
			remote: []tool.Meta{meta("r1", "h1", tool.SourceRemote, 3)},
			want:   []string{"r1"},
		},
		{
			name: "local duplicates collapse to the later one",
			local: []tool.Meta{
				meta("l1", "h1", tool.SourceLocal, 1),
				meta("l2", "h1", tool.SourceLocal, 2),
			},
			want: []string{"l2"},
		},
		{
			name:  "empty",
			local: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.local, tt.remote)
			ids := make([]string, 0, len(got))
			for _, m := range got {
				ids = append(ids, m.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("ids = %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}
}
