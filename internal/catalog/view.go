package catalog

import (
	"context"
	"sync"

	"golang.org/x/text/language"
)

// Result is what the catalog surface renders.
type Result struct {
	Products      []Product `json:"products"`
	Criteria      Criteria  `json:"criteria"`
	Categories    []string  `json:"categories"`
	Manufacturers []string  `json:"manufacturers"`
	Loading       bool      `json:"loading"`
}

// View is one shopper's catalog session: a snapshot loaded once and the criteria in force.
type View struct {
	loader *Loader
	tag    language.Tag

	mu       sync.Mutex
	store    *Store
	loaded   bool
	criteria Criteria

	// generation identifies the latest load; pending counts loads not yet answered.
	generation uint64
	pending    int
}

func NewView(loader *Loader, tag language.Tag) *View {
	return &View{
		loader:   loader,
		tag:      tag,
		store:    NewStore(tag, nil),
		criteria: DefaultCriteria(),
	}
}

// Load populates the snapshot on first use. Later calls are no-ops until Refresh.
func (v *View) Load(ctx context.Context) error {
	return v.load(ctx, false)
}

// Refresh starts a new browsing session snapshot, bypassing the shared cache.
func (v *View) Refresh(ctx context.Context) error {
	return v.load(ctx, true)
}

// load applies only the answer of the latest load; an older answer arriving later is dropped.
func (v *View) load(ctx context.Context, fresh bool) error {
	v.mu.Lock()
	if !fresh && v.loaded {
		v.mu.Unlock()
		return nil
	}
	v.generation++
	token := v.generation
	v.pending++
	v.mu.Unlock()

	products, err := v.loader.Snapshot(ctx, fresh)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending--
	if token != v.generation {
		return nil
	}
	if err != nil {
		return err
	}
	v.store = NewStore(v.tag, products)
	v.loaded = true
	return nil
}

// Update replaces the criteria. A rejected value leaves the previous criteria in force,
// and the effective criteria are returned either way.
func (v *View) Update(c Criteria) (Criteria, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := c.Validate(); err != nil {
		return v.criteria, err
	}
	v.criteria = c
	return v.criteria, nil
}

// Criteria returns the criteria in force.
func (v *View) Criteria() Criteria {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.criteria
}

// Result recomputes the query over the snapshot. It reads only local state.
func (v *View) Result() Result {
	v.mu.Lock()
	s, c, loading := v.store, v.criteria, v.pending > 0
	v.mu.Unlock()

	return Result{
		Products:      ApplyLocale(v.tag, s.Products(), c),
		Criteria:      c,
		Categories:    s.Categories(),
		Manufacturers: s.Manufacturers(),
		Loading:       loading,
	}
}

// Loading reports an outstanding snapshot fetch.
func (v *View) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending > 0
}
