package localstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HendryAvila/toolvault/internal/tool"
)

// exportVersion is the backup format version.
const exportVersion = "1"

// ExportData is the full serializable dump of the local store. Recency
// entries are device-local and are not exported.
type ExportData struct {
	Version    string        `json:"version"`
	ExportedAt string        `json:"exportedAt"`
	Tools      []tool.Record `json:"tools"`
	Favorites  []string      `json:"favorites"`
}

// ImportResult holds counts of imported entries.
type ImportResult struct {
	ToolsImported     int `json:"toolsImported"`
	FavoritesImported int `json:"favoritesImported"`
}

// Export dumps every record and favorite.
func (s *Store) Export(ctx context.Context) (*ExportData, error) {
	data := &ExportData{
		Version:    exportVersion,
		ExportedAt: formatTime(timeNow()),
		Tools:      []tool.Record{},
		Favorites:  []string{},
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+toolColumns+` FROM tools ORDER BY updated_at, id`)
	if err != nil {
		return nil, fmt.Errorf("localstore: export tools: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		rec, _, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("localstore: export tools: %w", err)
		}
		data.Tools = append(data.Tools, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	_ = rows.Close()

	favs, err := s.Favorites(ctx)
	if err != nil {
		return nil, err
	}
	data.Favorites = append(data.Favorites, favs...)
	return data, nil
}

// ExportJSON returns Export as indented JSON for user-initiated backup.
func (s *Store) ExportJSON(ctx context.Context) ([]byte, error) {
	data, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("localstore: encode export: %w", err)
	}
	return out, nil
}

// Import applies exported data. Every record goes through the save path,
// so an existing id is overwritten with a fresh updatedAt. Unlike Save, an
// unknown id is kept rather than re-minted so that a backup restores the
// same identities and owners.
func (s *Store) Import(ctx context.Context, data *ExportData) (*ImportResult, error) {
	result := &ImportResult{}
	for _, rec := range data.Tools {
		if rec.ID == "" {
			rec.ID = NewLocalID()
		}
		_, err := s.save(ctx, rec.Definition, tool.SaveMeta{
			ID:       rec.ID,
			Name:     rec.OwnerMeta.Name,
			IsPublic: rec.OwnerMeta.IsPublic,
		}, saveOptions{keepID: true, owner: rec.Owner})
		if err != nil {
			return result, fmt.Errorf("localstore: import tool %s: %w", rec.ID, err)
		}
		result.ToolsImported++
	}
	for _, id := range data.Favorites {
		if err := s.Favorite(ctx, id, true); err != nil {
			return result, fmt.Errorf("localstore: import favorite %s: %w", id, err)
		}
		result.FavoritesImported++
	}
	return result, nil
}

// ImportJSON decodes text produced by ExportJSON and imports it.
func (s *Store) ImportJSON(ctx context.Context, text []byte) (*ImportResult, error) {
	var data ExportData
	if err := json.Unmarshal(text, &data); err != nil {
		return nil, fmt.Errorf("localstore: decode import: %w", err)
	}
	return s.Import(ctx, &data)
}
