// Package store provides the in-memory observation registry and the
// per-observation merged result sets. All public methods are safe for
// concurrent use; merges for one observation are serialized while
// different observations proceed in parallel.
package store

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"OfferTracker/internal/domain"
)

// MaxOffers caps a merged result set after every merge.
const MaxOffers = 50

var (
	// ErrNotFound signals an unknown observation identifier.
	ErrNotFound = errors.New("observation not found")
	// ErrCategoryRequired rejects observations without a category.
	ErrCategoryRequired = errors.New("categoryId is required")
)

// Registry keeps observations and their merged offers keyed by the
// generated observation identifier.
type Registry struct {
	mu           sync.RWMutex
	observations map[string]domain.Observation
	results      map[string]*resultSet
	lastID       int64
}

// resultSet owns one observation's merged offers. Its mutex serializes
// merges so a stale read-modify-write cannot clobber a newer one.
type resultSet struct {
	mu     sync.Mutex
	offers []domain.FormattedOffer
}

// New creates an empty Registry ready for use.
func New() *Registry {
	return &Registry{
		observations: make(map[string]domain.Observation),
		results:      make(map[string]*resultSet),
	}
}

// Patch describes a partial observation update. Nil fields are left
// untouched; param constraints overwrite same-key entries or append.
type Patch struct {
	CategoryID *string
	Keywords   *string
	PriceMin   *string
	PriceMax   *string
	Params     []domain.ParamConstraint
}

// Create registers a new observation, assigning a unique, monotonically
// increasing millisecond identifier. String criteria are trimmed.
func (r *Registry) Create(obs domain.Observation) (domain.Observation, error) {
	trim(&obs)
	if obs.CategoryID == "" {
		return domain.Observation{}, ErrCategoryRequired
	}
	if obs.Criteria.Params != nil {
		obs.Criteria.Params = append([]domain.ParamConstraint(nil), obs.Criteria.Params...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	obs.ID = r.nextID(now)
	obs.CreatedAt = now
	obs.UpdatedAt = now
	r.observations[obs.ID] = obs
	r.results[obs.ID] = &resultSet{}
	return obs, nil
}

// Get returns the observation for id.
func (r *Registry) Get(id string) (domain.Observation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obs, ok := r.observations[id]
	if !ok {
		return domain.Observation{}, ErrNotFound
	}
	return obs, nil
}

// List returns every observation, ordered by identifier.
func (r *Registry) List() []domain.Observation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]domain.Observation, 0, len(r.observations))
	for _, obs := range r.observations {
		list = append(list, obs)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// ApplyPatch overwrites the provided fields, trimming string values.
func (r *Registry) ApplyPatch(id string, p Patch) (domain.Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obs, ok := r.observations[id]
	if !ok {
		return domain.Observation{}, ErrNotFound
	}

	if p.CategoryID != nil {
		obs.CategoryID = strings.TrimSpace(*p.CategoryID)
	}
	if p.Keywords != nil {
		obs.Keywords = strings.TrimSpace(*p.Keywords)
	}
	if p.PriceMin != nil {
		obs.Criteria.PriceMin = strings.TrimSpace(*p.PriceMin)
	}
	if p.PriceMax != nil {
		obs.Criteria.PriceMax = strings.TrimSpace(*p.PriceMax)
	}
	if len(p.Params) > 0 {
		// Snapshots handed out by Get and List alias the stored slice;
		// mutate a copy so concurrent readers keep a consistent view.
		obs.Criteria.Params = append([]domain.ParamConstraint(nil), obs.Criteria.Params...)
		for _, c := range p.Params {
			c.Value = strings.TrimSpace(c.Value)
			obs.Criteria = setParam(obs.Criteria, c)
		}
	}
	obs.UpdatedAt = time.Now()

	r.observations[id] = obs
	return obs, nil
}

// Delete removes the observation and its merged result set. Deleting an
// unknown identifier is a no-op.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.observations, id)
	delete(r.results, id)
}

// Offers returns a copy of the observation's merged result set, newest
// first. Unknown observations yield an empty slice.
func (r *Registry) Offers(id string) []domain.FormattedOffer {
	r.mu.RLock()
	rs, ok := r.results[id]
	r.mu.RUnlock()
	if !ok {
		return []domain.FormattedOffer{}
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	offers := make([]domain.FormattedOffer, len(rs.offers))
	copy(offers, rs.offers)
	return offers
}

// Merge folds incoming offers into the observation's result set. Incoming
// entries overwrite existing ones by identifier (within a batch the last
// occurrence wins), the set is re-sorted descending by listing refresh
// time and truncated to MaxOffers. IsNew is set on offers whose
// identifier was absent before the merge. Merging the same batch twice
// leaves the set unchanged apart from IsNew.
func (r *Registry) Merge(id string, incoming []domain.FormattedOffer) ([]domain.FormattedOffer, error) {
	r.mu.RLock()
	rs, ok := r.results[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	prior := make(map[string]bool, len(rs.offers))
	index := make(map[string]int, len(rs.offers))
	merged := make([]domain.FormattedOffer, len(rs.offers), len(rs.offers)+len(incoming))
	copy(merged, rs.offers)
	for i, o := range merged {
		prior[o.ID] = true
		index[o.ID] = i
	}

	for _, o := range incoming {
		o.IsNew = !prior[o.ID]
		if i, ok := index[o.ID]; ok {
			merged[i] = o
			continue
		}
		index[o.ID] = len(merged)
		merged = append(merged, o)
	}

	// ISO refresh timestamps order lexicographically; the empty string
	// sorts last. Stable keeps the incoming order on ties.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].LastRefreshTime > merged[j].LastRefreshTime
	})
	if len(merged) > MaxOffers {
		merged = merged[:MaxOffers]
	}

	rs.offers = merged

	offers := make([]domain.FormattedOffer, len(merged))
	copy(offers, merged)
	return offers, nil
}

// nextID generates a millisecond identifier, bumped past the previous one
// when the clock has not advanced. Callers hold the registry lock.
func (r *Registry) nextID(now time.Time) string {
	id := now.UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return strconv.FormatInt(id, 10)
}

func trim(obs *domain.Observation) {
	obs.CategoryID = strings.TrimSpace(obs.CategoryID)
	obs.Keywords = strings.TrimSpace(obs.Keywords)
	obs.Criteria.PriceMin = strings.TrimSpace(obs.Criteria.PriceMin)
	obs.Criteria.PriceMax = strings.TrimSpace(obs.Criteria.PriceMax)
	for i := range obs.Criteria.Params {
		obs.Criteria.Params[i].Key = strings.TrimSpace(obs.Criteria.Params[i].Key)
		obs.Criteria.Params[i].Value = strings.TrimSpace(obs.Criteria.Params[i].Value)
	}
}

func setParam(c domain.Criteria, constraint domain.ParamConstraint) domain.Criteria {
	for i, p := range c.Params {
		if p.Key == constraint.Key {
			c.Params[i] = constraint
			return c
		}
	}
	c.Params = append(c.Params, constraint)
	return c
}
