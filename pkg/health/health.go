package health

import (
	"sort"
	"sync"

	"github.com/cuemby/cephadmd/pkg/types"
)

// Named checks. Upgrade checks are parameterized by stage, so
// only the fixed prefix is named here.
const (
	CheckPaused          = "PAUSED"
	CheckStrayHost       = "STRAY_HOST"
	CheckStrayDaemon     = "STRAY_DAEMON"
	CheckHostCheckFailed = "HOST_CHECK_FAILED"
	CheckRefreshFailed   = "REFRESH_FAILED"
	CheckUpgradePrefix   = "UPGRADE_"
)

// Publisher holds the current set of published health checks, keyed by
// name. Publishing is idempotent; a name absent from a Publish* call
// this pass is left untouched, callers must Clear it explicitly.
type Publisher struct {
	mu     sync.Mutex
	checks map[string]types.HealthCheck
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{checks: make(map[string]types.HealthCheck)}
}

// Publish records or replaces a named check.
func (p *Publisher) Publish(check types.HealthCheck) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks[check.Name] = check
}

// Clear removes a named check; clearing an absent name is a no-op.
func (p *Publisher) Clear(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.checks, name)
}

// All returns every currently published check, sorted by name.
func (p *Publisher) All() []types.HealthCheck {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]types.HealthCheck, 0, len(p.checks))
	for _, c := range p.checks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PublishOrClear publishes check when count > 0, otherwise clears its
// name — the common "N stray daemons found" / "none found" shape every
// per-pass check in the reconciler follows.
func (p *Publisher) PublishOrClear(name string, severity types.HealthSeverity, summary string, count int, detail []string) {
	if count == 0 {
		p.Clear(name)
		return
	}
	p.Publish(types.HealthCheck{
		Name:     name,
		Severity: severity,
		Summary:  summary,
		Count:    count,
		Detail:   detail,
	})
}
