// Package cluster is the facade over the underlying distributed-storage
// cluster that the reconciler, OSD removal engine, and upgrade engine
// consult for monitor commands, config-store reads, and PG placement
// state. Per the purpose statement this collaborator is out of scope:
// the real implementation would speak the cluster's wire protocol
// directly. Client is the seam; InMemoryClient is a minimal stand-in so
// the rest of the orchestrator has something concrete to call and to
// test against.
package cluster

import (
	"context"
	"fmt"
	"sync"
)

// Client is the facade every component that needs cluster state is
// handed, instead of a direct dependency on a storage-cluster SDK.
type Client interface {
	// MonCommand issues a monitor command (e.g. "osd reweight", "osd
	// purge") and returns its JSON-ish reply and an informational
	// string, mirroring the real client's (retval, outbuf, outs) shape
	// collapsed to (reply, info, error).
	MonCommand(ctx context.Context, prefix string, args map[string]string) (reply []byte, info string, err error)
	// Get reads a single config-store key (monmap epoch, public
	// network CIDR, registry URL, and similar small values the
	// reconciler consults every pass).
	Get(key string) (string, error)
	// Set writes a single config-store key.
	Set(key, value string) error
	// PGSummaryForOSD returns the number of PGs currently mapped to
	// osdID, the figure the OSD removal engine polls during drain.
	PGSummaryForOSD(ctx context.Context, osdID int) (numPGs int, err error)
	// RadosGet/RadosPut perform RADOS object I/O against a pool and
	// namespace, used by drivers that stash per-daemon state in the
	// cluster itself (e.g. NFS export configuration).
	RadosGet(ctx context.Context, pool, namespace, object string) ([]byte, error)
	RadosPut(ctx context.Context, pool, namespace, object string, data []byte) error
}

// InMemoryClient is a Client backed by plain maps, standing in for the
// real cluster during tests and for a from-scratch deployment that has
// not yet been wired to a live cluster. PG counts are seeded externally
// (SetPGCount) so OSD-removal drain tests can script a drain-to-zero
// sequence deterministically.
type InMemoryClient struct {
	mu        sync.Mutex
	kv        map[string]string
	pgCounts  map[int]int
	weights   map[int]float64
	purged    map[int]bool
	destroyed map[int]bool
	rados     map[string][]byte
	calls     []string
	nextOSDID int
}

// NewInMemoryClient returns an empty InMemoryClient.
func NewInMemoryClient() *InMemoryClient {
	return &InMemoryClient{
		kv:        make(map[string]string),
		pgCounts:  make(map[int]int),
		weights:   make(map[int]float64),
		purged:    make(map[int]bool),
		destroyed: make(map[int]bool),
		rados:     make(map[string][]byte),
	}
}

func radosKey(pool, namespace, object string) string {
	return fmt.Sprintf("%s/%s/%s", pool, namespace, object)
}

func (c *InMemoryClient) MonCommand(_ context.Context, prefix string, args map[string]string) ([]byte, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, prefix)

	switch prefix {
	case "osd create":
		id := c.nextOSDID
		c.nextOSDID++
		return []byte(fmt.Sprintf("%d", id)), fmt.Sprintf("created osd.%d", id), nil
	case "osd reweight":
		id, weight := args["id"], args["weight"]
		var osdID int
		var w float64
		fmt.Sscanf(id, "%d", &osdID)
		fmt.Sscanf(weight, "%f", &w)
		c.weights[osdID] = w
		return nil, fmt.Sprintf("reweighted osd.%d to %v", osdID, w), nil
	case "osd out":
		return nil, "marked out", nil
	case "osd purge":
		var osdID int
		fmt.Sscanf(args["id"], "%d", &osdID)
		c.purged[osdID] = true
		return nil, fmt.Sprintf("purged osd.%d", osdID), nil
	case "osd destroy":
		var osdID int
		fmt.Sscanf(args["id"], "%d", &osdID)
		c.destroyed[osdID] = true
		return nil, fmt.Sprintf("destroyed osd.%d", osdID), nil
	default:
		return nil, "", nil
	}
}

func (c *InMemoryClient) Get(key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kv[key], nil
}

func (c *InMemoryClient) Set(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kv[key] = value
	return nil
}

// SetPGCount seeds the PG count the next PGSummaryForOSD call observes
// for osdID, used by tests to script a drain sequence.
func (c *InMemoryClient) SetPGCount(osdID, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pgCounts[osdID] = n
}

func (c *InMemoryClient) PGSummaryForOSD(_ context.Context, osdID int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pgCounts[osdID], nil
}

func (c *InMemoryClient) RadosGet(_ context.Context, pool, namespace, object string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.rados[radosKey(pool, namespace, object)]
	if !ok {
		return nil, fmt.Errorf("rados object %s/%s/%s not found", pool, namespace, object)
	}
	return v, nil
}

func (c *InMemoryClient) RadosPut(_ context.Context, pool, namespace, object string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rados[radosKey(pool, namespace, object)] = data
	return nil
}

// Purged reports whether osd.id was purged (mutual exclusion vs
// Destroyed), for test assertions.
func (c *InMemoryClient) Purged(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purged[id]
}

// Destroyed reports whether osd.id was destroyed via "osd destroy"
// (the replace=true path), for test assertions.
func (c *InMemoryClient) Destroyed(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed[id]
}

// Weight returns the last reweight value issued for osd.id.
func (c *InMemoryClient) Weight(id int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weights[id]
}
