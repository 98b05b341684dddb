// Package tool defines the tool data model shared by the local and remote
// stores, and the Store contract both of them satisfy.
package tool

import (
	"errors"
	"strings"
	"time"

	"github.com/HendryAvila/toolvault/internal/canon"
)

// LocalIDPrefix marks ids minted on-device before any remote write.
const LocalIDPrefix = "local_"

// ErrNotFound is returned when a record does not exist in a store.
var ErrNotFound = errors.New("tool not found")

// IsLocalID reports whether id carries local provenance.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// ─── Definition ─────────────────────────────────────────────────────────────

// Input declares one typed input of a tool.
type Input struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Label    string         `json:"label,omitempty"`
	Required bool           `json:"required,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// Step is one processing operation in a tool's pipeline.
type Step struct {
	Op   string         `json:"op"`
	Args map[string]any `json:"args,omitempty"`
}

// Output describes what a tool run produces.
type Output struct {
	Type    string `json:"type"`
	Pattern string `json:"pattern,omitempty"`
	Bundle  bool   `json:"bundle,omitempty"`
}

// Definition is the user-visible unit of work. A changed definition is a
// new content identity.
type Definition struct {
	Name     string  `json:"name"`
	Summary  string  `json:"summary,omitempty"`
	Inputs   []Input `json:"inputs,omitempty"`
	Pipeline []Step  `json:"pipeline,omitempty"`
	Output   Output  `json:"output"`
}

// Hash returns the content hash of the definition.
func (d Definition) Hash() (string, error) {
	return canon.ContentHash(d)
}

// ─── Records ────────────────────────────────────────────────────────────────

// OwnerMeta holds the mutable per-record metadata.
type OwnerMeta struct {
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
	IsPublic  bool      `json:"isPublic"`
}

// Record is one stored tool. Owner is empty for records that never came
// from a remote store.
type Record struct {
	ID         string     `json:"id"`
	Definition Definition `json:"definition"`
	OwnerMeta  OwnerMeta  `json:"ownerMeta"`
	Owner      string     `json:"owner,omitempty"`
}

// Source identifies which store produced a Meta.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Meta is the cross-store listing summary, always derived from a Record.
type Meta struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner,omitempty"`
	Name        string    `json:"name"`
	ContentHash string    `json:"contentHash"`
	IsPublic    bool      `json:"isPublic"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Source      Source    `json:"source"`
}

// Meta derives the listing summary of r.
func (r Record) Meta(src Source) (Meta, error) {
	hash, err := r.Definition.Hash()
	if err != nil {
		return Meta{}, err
	}
	name := r.OwnerMeta.Name
	if name == "" {
		name = r.Definition.Name
	}
	return Meta{
		ID:          r.ID,
		Owner:       r.Owner,
		Name:        name,
		ContentHash: hash,
		IsPublic:    r.OwnerMeta.IsPublic,
		UpdatedAt:   r.OwnerMeta.UpdatedAt,
		Source:      src,
	}, nil
}

// SaveMeta overrides record metadata on save. An ID that names an existing
// record overwrites it; any other ID is ignored by stores that mint their own.
type SaveMeta struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	IsPublic bool   `json:"isPublic,omitempty"`
}

// ListParams filters a listing. Limit <= 0 means no limit. Query is a
// case-insensitive substring match over name and summary.
type ListParams struct {
	Limit int    `json:"limit,omitempty"`
	Query string `json:"query,omitempty"`
}
