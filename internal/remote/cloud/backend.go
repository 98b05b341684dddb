// Package cloud is the reference toolvault remote backend: an in-memory,
// per-owner tool store served over HTTP with bearer-token sessions.
package cloud

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/HendryAvila/toolvault/internal/remote"
	"github.com/HendryAvila/toolvault/internal/tool"
)

var (
	ErrEmailTaken     = errors.New("email already registered")
	ErrBadCredentials = errors.New("invalid email or password")
	ErrForbidden      = errors.New("record belongs to another user")
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

type account struct {
	user remote.User
	hash []byte
}

// Backend holds users, records and favorites in memory. It is safe for
// concurrent use.
type Backend struct {
	mu        sync.RWMutex
	accounts  map[string]*account // by email
	records   map[string]tool.Record
	favorites map[string]map[string]struct{} // user id -> tool ids
	cost      int
}

// NewBackend returns an empty backend. cost is the bcrypt cost; zero means
// bcrypt.DefaultCost.
func NewBackend(cost int) *Backend {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Backend{
		accounts:  make(map[string]*account),
		records:   make(map[string]tool.Record),
		favorites: make(map[string]map[string]struct{}),
		cost:      cost,
	}
}

// ─── Accounts ───────────────────────────────────────────────────────────────

// SignUp registers a new account.
func (b *Backend) SignUp(email, password string) (remote.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return remote.User{}, ErrBadCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return remote.User{}, fmt.Errorf("cloud: hash password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[email]; ok {
		return remote.User{}, ErrEmailTaken
	}
	u := remote.User{ID: uuid.NewString(), Email: email}
	b.accounts[email] = &account{user: u, hash: hash}
	return u, nil
}

// SignIn verifies credentials.
func (b *Backend) SignIn(email, password string) (remote.User, error) {
	b.mu.RLock()
	acct, ok := b.accounts[normalizeEmail(email)]
	b.mu.RUnlock()
	if !ok {
		return remote.User{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return remote.User{}, ErrBadCredentials
	}
	return acct.user, nil
}

// UserByID looks up an account by id.
func (b *Backend) UserByID(id string) (remote.User, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, acct := range b.accounts {
		if acct.user.ID == id {
			return acct.user, true
		}
	}
	return remote.User{}, false
}

// ─── Records ────────────────────────────────────────────────────────────────

// Get returns a record visible to owner: its own or a public one.
func (b *Backend) Get(owner, id string) (tool.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[id]
	if !ok || (rec.Owner != owner && !rec.OwnerMeta.IsPublic) {
		return tool.Record{}, tool.ErrNotFound
	}
	return rec, nil
}

// List returns summaries visible to owner, newest first.
func (b *Backend) List(owner string, params tool.ListParams) ([]tool.Meta, error) {
	q := strings.ToLower(strings.TrimSpace(params.Query))

	b.mu.RLock()
	var metas []tool.Meta
	for _, rec := range b.records {
		if rec.Owner != owner && !rec.OwnerMeta.IsPublic {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(rec.OwnerMeta.Name), q) &&
			!strings.Contains(strings.ToLower(rec.Definition.Summary), q) {
			continue
		}
		m, err := rec.Meta(tool.SourceRemote)
		if err != nil {
			b.mu.RUnlock()
			return nil, err
		}
		metas = append(metas, m)
	}
	b.mu.RUnlock()

	tool.SortNewestFirst(metas)
	if params.Limit > 0 && len(metas) > params.Limit {
		metas = metas[:params.Limit]
	}
	return metas, nil
}

// Save stores def for owner. meta.ID overwrites a record the owner already
// holds; any other id is ignored and a fresh one assigned.
func (b *Backend) Save(owner string, def tool.Definition, meta tool.SaveMeta) (tool.Meta, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := timeNow().UTC()
	id := ""
	if prev, ok := b.records[meta.ID]; ok && prev.Owner == owner {
		id = prev.ID
		if !now.After(prev.OwnerMeta.UpdatedAt) {
			now = prev.OwnerMeta.UpdatedAt.Add(time.Microsecond)
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	name := meta.Name
	if name == "" {
		name = def.Name
	}
	rec := tool.Record{
		ID:         id,
		Definition: def,
		Owner:      owner,
		OwnerMeta:  tool.OwnerMeta{Name: name, UpdatedAt: now, IsPublic: meta.IsPublic},
	}
	m, err := rec.Meta(tool.SourceRemote)
	if err != nil {
		return tool.Meta{}, err
	}
	b.records[id] = rec
	return m, nil
}

// Delete removes a record the owner holds. A missing id is not an error.
func (b *Backend) Delete(owner, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[id]
	if !ok {
		return nil
	}
	if rec.Owner != owner {
		return ErrForbidden
	}
	delete(b.records, id)
	for _, set := range b.favorites {
		delete(set, id)
	}
	return nil
}

// Favorite toggles id in owner's favorites.
func (b *Backend) Favorite(owner, id string, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.favorites[owner]
	if on {
		if set == nil {
			set = make(map[string]struct{})
			b.favorites[owner] = set
		}
		set[id] = struct{}{}
		return
	}
	delete(set, id)
}

// IsFavorite reports membership.
func (b *Backend) IsFavorite(owner, id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.favorites[owner][id]
	return ok
}

// Favorites returns owner's favorite ids, sorted.
func (b *Backend) Favorites(owner string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.favorites[owner]))
	for id := range b.favorites[owner] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Put stores rec verbatim. It seeds fixtures with explicit timestamps.
func (b *Backend) Put(rec tool.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[rec.ID] = rec
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
