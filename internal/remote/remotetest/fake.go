// Package remotetest provides an in-memory remote.Store with failure
// injection for tests.
package remotetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/HendryAvila/toolvault/internal/remote"
	"github.com/HendryAvila/toolvault/internal/tool"
)

var _ remote.Store = (*Fake)(nil)

// Fake is a signed-in remote store held in memory.
type Fake struct {
	mu        sync.Mutex
	records   map[string]tool.Record
	favorites map[string]bool
	authed    bool
	err       error
	failSave  func(tool.Definition) bool
	calls     map[string]int
	seq       int

	// Now stamps saved records. Defaults to time.Now.
	Now func() time.Time
}

// NewFake returns an empty, authenticated fake.
func NewFake() *Fake {
	return &Fake{
		records:   make(map[string]tool.Record),
		favorites: make(map[string]bool),
		authed:    true,
		calls:     make(map[string]int),
		Now:       time.Now,
	}
}

// Fail makes every subsequent call fail with err. A nil err heals the fake.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// FailSaveWhen makes Save fail with remote.ErrUnavailable for matching
// definitions.
func (f *Fake) FailSaveWhen(pred func(tool.Definition) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSave = pred
}

// SetAuthenticated toggles the session.
func (f *Fake) SetAuthenticated(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authed = on
}

// Put seeds rec verbatim.
func (f *Fake) Put(rec tool.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.ID] = rec
}

// Record returns a stored record.
func (f *Fake) Record(id string) (tool.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	return rec, ok
}

// Len returns the number of stored records.
func (f *Fake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Fake) enter(op string) error {
	f.calls[op]++
	if f.err != nil {
		return fmt.Errorf("fake %s: %w", op, f.err)
	}
	return nil
}

// ─── tool.Store ─────────────────────────────────────────────────────────────

func (f *Fake) Get(_ context.Context, id string) (tool.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("get"); err != nil {
		return tool.Record{}, err
	}
	rec, ok := f.records[id]
	if !ok {
		return tool.Record{}, fmt.Errorf("fake get %s: %w", id, tool.ErrNotFound)
	}
	return rec, nil
}

func (f *Fake) List(_ context.Context, params tool.ListParams) ([]tool.Meta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("list"); err != nil {
		return nil, err
	}
	q := strings.ToLower(params.Query)
	var metas []tool.Meta
	for _, rec := range f.records {
		if q != "" && !strings.Contains(strings.ToLower(rec.OwnerMeta.Name+" "+rec.Definition.Summary), q) {
			continue
		}
		m, err := rec.Meta(tool.SourceRemote)
		if err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	tool.SortNewestFirst(metas)
	if params.Limit > 0 && len(metas) > params.Limit {
		metas = metas[:params.Limit]
	}
	return metas, nil
}

func (f *Fake) Save(_ context.Context, def tool.Definition, meta tool.SaveMeta) (tool.Meta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("save"); err != nil {
		return tool.Meta{}, err
	}
	if f.failSave != nil && f.failSave(def) {
		return tool.Meta{}, fmt.Errorf("fake save %q: %w", def.Name, remote.ErrUnavailable)
	}
	id := meta.ID
	if _, ok := f.records[id]; !ok || id == "" {
		f.seq++
		id = fmt.Sprintf("remote-%d", f.seq)
	}
	name := meta.Name
	if name == "" {
		name = def.Name
	}
	rec := tool.Record{
		ID:         id,
		Definition: def,
		Owner:      "user-1",
		OwnerMeta:  tool.OwnerMeta{Name: name, UpdatedAt: f.Now().UTC(), IsPublic: meta.IsPublic},
	}
	f.records[id] = rec
	return rec.Meta(tool.SourceRemote)
}

func (f *Fake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("delete"); err != nil {
		return err
	}
	delete(f.records, id)
	delete(f.favorites, id)
	return nil
}

func (f *Fake) Favorite(_ context.Context, id string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("favorite"); err != nil {
		return err
	}
	if on {
		f.favorites[id] = true
	} else {
		delete(f.favorites, id)
	}
	return nil
}

func (f *Fake) IsFavorite(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("is_favorite"); err != nil {
		return false, err
	}
	return f.favorites[id], nil
}

// ─── remote.Authenticator ───────────────────────────────────────────────────

func (f *Fake) SignIn(_ context.Context, email, _ string) (remote.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("sign_in"); err != nil {
		return remote.User{}, err
	}
	f.authed = true
	return remote.User{ID: "user-1", Email: email}, nil
}

func (f *Fake) SignUp(ctx context.Context, email, password string) (remote.User, error) {
	return f.SignIn(ctx, email, password)
}

func (f *Fake) SignOut(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authed = false
	return nil
}

func (f *Fake) CurrentUser(context.Context) (remote.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("current_user"); err != nil {
		return remote.User{}, err
	}
	if !f.authed {
		return remote.User{}, remote.ErrUnauthorized
	}
	return remote.User{ID: "user-1"}, nil
}

func (f *Fake) IsAuthenticated(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("is_authenticated"); err != nil {
		return false, err
	}
	return f.authed, nil
}
