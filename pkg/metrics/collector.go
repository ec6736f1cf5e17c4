package metrics

import (
	"time"

	"github.com/cuemby/cephadmd/pkg/health"
	"github.com/cuemby/cephadmd/pkg/hostcache"
	"github.com/cuemby/cephadmd/pkg/inventory"
	"github.com/cuemby/cephadmd/pkg/osdremoval"
	"github.com/cuemby/cephadmd/pkg/types"
)

// Collector periodically samples orchestrator state into the gauges
// defined in metrics.go. It never mutates anything it reads.
type Collector struct {
	inventory *inventory.Inventory
	hostcache *hostcache.HostCache
	removal   *osdremoval.Queue
	health    *health.Publisher
	stopCh    chan struct{}
}

// NewCollector builds a Collector over the orchestrator's shared state.
func NewCollector(inv *inventory.Inventory, hc *hostcache.HostCache, removal *osdremoval.Queue, hp *health.Publisher) *Collector {
	return &Collector{
		inventory: inv,
		hostcache: hc,
		removal:   removal,
		health:    hp,
		stopCh:    make(chan struct{}),
	}
}

// Start begins sampling on a 15s ticker.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectHosts()
	c.collectDaemons()
	c.collectRemovalQueue()
	c.collectHealth()
}

func (c *Collector) collectHosts() {
	counts := map[types.HostStatus]int{}
	for _, h := range c.inventory.All() {
		counts[h.Status]++
	}
	for _, status := range []types.HostStatus{types.HostOnline, types.HostOffline} {
		HostsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

func (c *Collector) collectDaemons() {
	type key struct {
		daemonType string
		status     string
	}
	counts := make(map[key]int)
	for _, d := range c.hostcache.AllDaemons() {
		counts[key{string(d.DaemonType), statusLabel(d.Status)}]++
	}
	DaemonsTotal.Reset()
	for k, n := range counts {
		DaemonsTotal.WithLabelValues(k.daemonType, k.status).Set(float64(n))
	}
}

func statusLabel(s types.DaemonStatus) string {
	switch s {
	case types.StatusRunning:
		return "running"
	case types.StatusStopped:
		return "stopped"
	default:
		return "error"
	}
}

func (c *Collector) collectRemovalQueue() {
	OSDRemovalQueueLength.Set(float64(len(c.removal.Status())))
}

func (c *Collector) collectHealth() {
	HealthChecksActive.Set(float64(len(c.health.All())))
}
