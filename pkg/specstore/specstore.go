package specstore

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/kvstore"
	"github.com/cuemby/cephadmd/pkg/types"
)

// SpecStore is the persisted set of desired-state service specs, keyed
// by service name, plus a separate preview area for uncommitted specs.
type SpecStore struct {
	mu       sync.RWMutex
	store    *kvstore.Store
	specs    map[string]*types.Spec
	previews map[string]*types.Spec
}

// New loads the SpecStore from store.
func New(store *kvstore.Store) (*SpecStore, error) {
	ss := &SpecStore{
		store:    store,
		specs:    make(map[string]*types.Spec),
		previews: make(map[string]*types.Spec),
	}
	if err := loadInto(store, kvstore.BucketSpecs, ss.specs); err != nil {
		return nil, err
	}
	if err := loadInto(store, kvstore.BucketSpecPreviews, ss.previews); err != nil {
		return nil, err
	}
	return ss, nil
}

func loadInto(store *kvstore.Store, bucket []byte, dst map[string]*types.Spec) error {
	return store.ForEach(bucket, func(key, value []byte) error {
		var s types.Spec
		if err := json.Unmarshal(value, &s); err != nil {
			return err
		}
		dst[string(key)] = &s
		return nil
	})
}

// Save records spec under its service name, stamping CreatedAt on first
// save only. Saving an existing service name replaces its spec in
// place, preserving the original CreatedAt.
func (ss *SpecStore) Save(spec *types.Spec) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	name := spec.ServiceName()
	if !types.ValidName(name) {
		return errs.Newf(errs.InvalidArg, "invalid service name %q", name)
	}
	if existing, ok := ss.specs[name]; ok {
		spec.CreatedAt = existing.CreatedAt
	} else {
		spec.CreatedAt = time.Now()
	}
	data, err := json.Marshal(spec)
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal spec", err)
	}
	if err := ss.store.Put(kvstore.BucketSpecs, []byte(name), data); err != nil {
		return errs.Wrap(errs.Internal, "persist spec", err)
	}
	ss.specs[name] = spec
	return nil
}

// Rm removes a spec by service name, reporting whether it existed.
func (ss *SpecStore) Rm(name string) (bool, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if _, ok := ss.specs[name]; !ok {
		return false, nil
	}
	if err := ss.store.Delete(kvstore.BucketSpecs, []byte(name)); err != nil {
		return false, errs.Wrap(errs.Internal, "delete spec", err)
	}
	delete(ss.specs, name)
	return true, nil
}

// Find returns the spec for service_name, or nil if absent.
func (ss *SpecStore) Find(serviceName string) *types.Spec {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	s, ok := ss.specs[serviceName]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// Specs returns every spec, sorted by service name for stable
// iteration order in the reconciler's per-spec apply loop.
func (ss *SpecStore) Specs() []*types.Spec {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	out := make([]*types.Spec, 0, len(ss.specs))
	for _, s := range ss.specs {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceName() < out[j].ServiceName() })
	return out
}

// SavePreview records spec as an uncommitted dry-run result, replacing
// any previous preview for the same service name.
func (ss *SpecStore) SavePreview(spec *types.Spec) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	name := spec.ServiceName()
	data, err := json.Marshal(spec)
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal spec preview", err)
	}
	if err := ss.store.Put(kvstore.BucketSpecPreviews, []byte(name), data); err != nil {
		return errs.Wrap(errs.Internal, "persist spec preview", err)
	}
	ss.previews[name] = spec
	return nil
}

// SpecPreview returns every uncommitted preview spec, sorted by service
// name.
func (ss *SpecStore) SpecPreview() []*types.Spec {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	out := make([]*types.Spec, 0, len(ss.previews))
	for _, s := range ss.previews {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceName() < out[j].ServiceName() })
	return out
}

// ClearPreview discards the preview for a service name, called once its
// spec has been committed via Save.
func (ss *SpecStore) ClearPreview(name string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	delete(ss.previews, name)
	return ss.store.Delete(kvstore.BucketSpecPreviews, []byte(name))
}
