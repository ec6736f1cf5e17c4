package inventory

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/kvstore"
	"github.com/cuemby/cephadmd/pkg/types"
)

// Inventory is the persisted set of managed hosts.
type Inventory struct {
	mu    sync.RWMutex
	store *kvstore.Store
	hosts map[string]*types.Host
}

// New loads the Inventory from store.
func New(store *kvstore.Store) (*Inventory, error) {
	inv := &Inventory{
		store: store,
		hosts: make(map[string]*types.Host),
	}
	if err := inv.load(); err != nil {
		return nil, err
	}
	return inv, nil
}

func (inv *Inventory) load() error {
	return inv.store.ForEach(kvstore.BucketHosts, func(_, value []byte) error {
		var h types.Host
		if err := json.Unmarshal(value, &h); err != nil {
			return err
		}
		inv.hosts[h.Hostname] = &h
		return nil
	})
}

func (inv *Inventory) persist(h *types.Host) error {
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	return inv.store.Put(kvstore.BucketHosts, []byte(h.Hostname), data)
}

// Add adds a new host. Fails with AlreadyExists on duplicate hostname.
func (inv *Inventory) Add(hostname, address string) (*types.Host, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, ok := inv.hosts[hostname]; ok {
		return nil, errs.Newf(errs.AlreadyExists, "host %q already in inventory", hostname)
	}
	h := &types.Host{
		Hostname: hostname,
		Address:  address,
		Labels:   make(map[string]bool),
		Status:   types.HostOnline,
	}
	if err := inv.persist(h); err != nil {
		return nil, errs.Wrap(errs.Internal, "persist host", err)
	}
	inv.hosts[hostname] = h
	return h, nil
}

// Remove deletes a host. Fails with NotFound on missing host.
func (inv *Inventory) Remove(hostname string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, ok := inv.hosts[hostname]; !ok {
		return errs.Newf(errs.NotFound, "host %q not in inventory", hostname)
	}
	if err := inv.store.Delete(kvstore.BucketHosts, []byte(hostname)); err != nil {
		return errs.Wrap(errs.Internal, "delete host", err)
	}
	delete(inv.hosts, hostname)
	return nil
}

// Get returns a copy of the named host.
func (inv *Inventory) Get(hostname string) (*types.Host, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	h, ok := inv.hosts[hostname]
	if !ok {
		return nil, errs.Newf(errs.NotFound, "host %q not in inventory", hostname)
	}
	cp := *h
	cp.Labels = cloneLabels(h.Labels)
	return &cp, nil
}

// SetAddress updates a host's connect address.
func (inv *Inventory) SetAddress(hostname, address string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	h, ok := inv.hosts[hostname]
	if !ok {
		return errs.Newf(errs.NotFound, "host %q not in inventory", hostname)
	}
	h.Address = address
	if err := inv.persist(h); err != nil {
		return errs.Wrap(errs.Internal, "persist host", err)
	}
	return nil
}

// SetStatus updates a host's online/offline status. Called by the
// Executor when a connection fails or recovers.
func (inv *Inventory) SetStatus(hostname string, status types.HostStatus) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	h, ok := inv.hosts[hostname]
	if !ok {
		return errs.Newf(errs.NotFound, "host %q not in inventory", hostname)
	}
	if h.Status == status {
		return nil
	}
	h.Status = status
	if err := inv.persist(h); err != nil {
		return errs.Wrap(errs.Internal, "persist host", err)
	}
	return nil
}

// AddLabel attaches a label to a host.
func (inv *Inventory) AddLabel(hostname, label string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	h, ok := inv.hosts[hostname]
	if !ok {
		return errs.Newf(errs.NotFound, "host %q not in inventory", hostname)
	}
	h.Labels[label] = true
	if err := inv.persist(h); err != nil {
		return errs.Wrap(errs.Internal, "persist host", err)
	}
	return nil
}

// RmLabel removes a label from a host.
func (inv *Inventory) RmLabel(hostname, label string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	h, ok := inv.hosts[hostname]
	if !ok {
		return errs.Newf(errs.NotFound, "host %q not in inventory", hostname)
	}
	delete(h.Labels, label)
	if err := inv.persist(h); err != nil {
		return errs.Wrap(errs.Internal, "persist host", err)
	}
	return nil
}

// All returns every host, sorted by hostname for deterministic
// downstream scheduling; placement tie-breaks rely on this order.
func (inv *Inventory) All() []*types.Host {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	out := make([]*types.Host, 0, len(inv.hosts))
	for _, h := range inv.hosts {
		cp := *h
		cp.Labels = cloneLabels(h.Labels)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out
}

// FilterByLabel returns hosts carrying label, or every host when label
// is empty.
func (inv *Inventory) FilterByLabel(label string) []*types.Host {
	all := inv.All()
	if label == "" {
		return all
	}
	out := all[:0:0]
	for _, h := range all {
		if h.HasLabel(label) {
			out = append(out, h)
		}
	}
	return out
}

// Exists reports whether hostname is in the inventory.
func (inv *Inventory) Exists(hostname string) bool {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	_, ok := inv.hosts[hostname]
	return ok
}

func cloneLabels(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
