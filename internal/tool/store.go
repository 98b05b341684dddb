package tool

import (
	"context"
	"sort"
)

// Store is the contract shared by the local and remote tool stores.
type Store interface {
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, params ListParams) ([]Meta, error)
	Save(ctx context.Context, def Definition, meta SaveMeta) (Meta, error)
	Delete(ctx context.Context, id string) error
	Favorite(ctx context.Context, id string, on bool) error
	IsFavorite(ctx context.Context, id string) (bool, error)
}

// Pick returns whichever of a local and a remote summary wins the merge:
// the strictly later UpdatedAt, and the remote copy on an exact tie.
func Pick(local, remote Meta) Meta {
	if local.UpdatedAt.After(remote.UpdatedAt) {
		return local
	}
	return remote
}

// SortNewestFirst orders metas by UpdatedAt descending, then by id for a
// stable result.
func SortNewestFirst(metas []Meta) {
	sort.SliceStable(metas, func(i, j int) bool {
		if !metas[i].UpdatedAt.Equal(metas[j].UpdatedAt) {
			return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
		}
		return metas[i].ID < metas[j].ID
	})
}
