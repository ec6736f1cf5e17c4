// Package orchestrator wires every component package into the
// running cephadmd process and exposes the admin command surface as Go
// methods. It owns Start/Stop and is the single object cmd/cephadmd
// holds a reference to; nothing in this package drives a terminal or
// parses argv, that belongs to the CLI layer above it.
package orchestrator

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/cuemby/cephadmd/pkg/cluster"
	"github.com/cuemby/cephadmd/pkg/config"
	"github.com/cuemby/cephadmd/pkg/drivers"
	"github.com/cuemby/cephadmd/pkg/eventstore"
	"github.com/cuemby/cephadmd/pkg/executor"
	"github.com/cuemby/cephadmd/pkg/health"
	"github.com/cuemby/cephadmd/pkg/hostcache"
	"github.com/cuemby/cephadmd/pkg/inventory"
	"github.com/cuemby/cephadmd/pkg/kvstore"
	"github.com/cuemby/cephadmd/pkg/log"
	"github.com/cuemby/cephadmd/pkg/metrics"
	"github.com/cuemby/cephadmd/pkg/osdremoval"
	"github.com/cuemby/cephadmd/pkg/reconciler"
	"github.com/cuemby/cephadmd/pkg/security"
	"github.com/cuemby/cephadmd/pkg/specstore"
	"github.com/cuemby/cephadmd/pkg/upgrade"

	"github.com/rs/zerolog"
)

// Orchestrator holds every shared component and exposes the admin
// operations as methods. Construct with New, call Start once, Stop on
// shutdown.
type Orchestrator struct {
	cfg config.Config

	store     *kvstore.Store
	inventory *inventory.Inventory
	hostcache *hostcache.HostCache
	specs     *specstore.SpecStore
	events    *eventstore.EventStore
	health    *health.Publisher
	cluster   cluster.Client
	executor  *executor.Executor
	transport *executor.SSHTransport
	drivers   *drivers.Registry
	removal   *osdremoval.Queue
	reconcile *reconciler.Reconciler
	upgrade   *upgrade.Engine
	secrets   *security.Manager

	collector  *metrics.Collector
	metricsSrv *http.Server

	logger zerolog.Logger
}

// New constructs every component in dependency order and opens the
// backing store under cfg.DataDir. cl is the cluster facade; a nil cl
// falls back to cluster.NewInMemoryClient, the in-process stand-in
// (cmd/cephadmd passes nil).
func New(cfg config.Config, cl cluster.Client) (*Orchestrator, error) {
	log.Init(cfg.LogConfig())
	logger := log.WithComponent("orchestrator")

	store, err := kvstore.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	inv, err := inventory.New(store)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	hc, err := hostcache.New(store, cfg.HostCacheConfig())
	if err != nil {
		return nil, fmt.Errorf("load host cache: %w", err)
	}
	specs, err := specstore.New(store)
	if err != nil {
		return nil, fmt.Errorf("load spec store: %w", err)
	}
	events := eventstore.New(0)
	hp := health.New()

	if cl == nil {
		cl = cluster.NewInMemoryClient()
	}

	sshCfg := executor.DefaultConfig()
	sshCfg.User = cfg.SSHUser
	sshCfg.Port = cfg.SSHPort
	sshCfg.ConnectTimeout = cfg.ConnectTimeout
	sshCfg.CallTimeout = cfg.ExecTimeout

	persistedKey, needsGeneratedKey, err := loadPersistedPrivateKey(store)
	if err != nil {
		return nil, err
	}
	if persistedKey != nil {
		sshCfg.PrivateKey = persistedKey
	} else {
		// No keypair persisted yet: stand up the transport with a
		// throwaway key so construction succeeds, then replace it with
		// a generated, persisted keypair below.
		placeholder, err := newEphemeralKeyPEM()
		if err != nil {
			return nil, err
		}
		sshCfg.PrivateKey = placeholder
	}
	transport, err := executor.NewSSHTransport(sshCfg)
	if err != nil {
		return nil, fmt.Errorf("build ssh transport: %w", err)
	}
	exec := executor.New(transport, inv, cfg.ExecTimeout)

	dr := drivers.NewRegistry(cl)

	removal, err := osdremoval.New(store, cl, dr, hc, events)
	if err != nil {
		return nil, fmt.Errorf("load removal queue: %w", err)
	}

	rec, err := reconciler.New(store, inv, hc, specs, exec, dr, removal, cl, hp, events)
	if err != nil {
		return nil, fmt.Errorf("build reconciler: %w", err)
	}

	up, err := upgrade.New(store, hc, inv, dr, hp, events)
	if err != nil {
		return nil, fmt.Errorf("load upgrade engine: %w", err)
	}
	rec.AttachUpgradeEngine(up)

	o := &Orchestrator{
		cfg:       cfg,
		store:     store,
		inventory: inv,
		hostcache: hc,
		specs:     specs,
		events:    events,
		health:    hp,
		cluster:   cl,
		executor:  exec,
		transport: transport,
		drivers:   dr,
		removal:   removal,
		reconcile: rec,
		upgrade:   up,
		logger:    logger,
	}
	rec.SetRegistryLoginPayload(o.registryLoginPayload)

	if needsGeneratedKey {
		if _, err := o.GenerateKey(); err != nil {
			return nil, fmt.Errorf("generate initial ssh keypair: %w", err)
		}
	}
	return o, nil
}

// Start begins the reconciler's serve loop and, when a metrics address
// is configured, the metrics/health listener and state collector. Call
// once.
func (o *Orchestrator) Start(ctx context.Context) {
	o.logger.Info().Msg("orchestrator starting")

	metrics.SetComponent("kvstore", true, "")
	metrics.SetComponent("executor", true, "")
	metrics.SetComponent("reconciler", true, "")

	o.reconcile.Start(ctx)

	if o.cfg.MetricsAddr != "" {
		o.collector = metrics.NewCollector(o.inventory, o.hostcache, o.removal, o.health)
		o.collector.Start()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", metrics.HealthHandler())
		mux.HandleFunc("/ready", metrics.ReadyHandler())
		mux.HandleFunc("/live", metrics.LivenessHandler())
		o.metricsSrv = &http.Server{Addr: o.cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := o.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				o.logger.Error().Err(err).Str("addr", o.cfg.MetricsAddr).Msg("metrics listener failed")
			}
		}()
	}
}

// Stop blocks until the current reconciliation pass finishes and the
// serve loop exits; in-flight remote calls are allowed to complete.
func (o *Orchestrator) Stop() {
	o.reconcile.Stop()
	if o.collector != nil {
		o.collector.Stop()
	}
	if o.metricsSrv != nil {
		_ = o.metricsSrv.Close()
	}
	if err := o.store.Close(); err != nil {
		o.logger.Error().Err(err).Msg("store close failed")
	}
	o.logger.Info().Msg("orchestrator stopped")
}

// secretsManager lazily builds the security.Manager from the key
// persisted at BucketConfig/encryption_key, generating one on first
// use. Keeping this lazy means a bare `host add` or `ls` never touches
// the secrets path at all.
func (o *Orchestrator) secretsManager() (*security.Manager, error) {
	if o.secrets != nil {
		return o.secrets, nil
	}
	key, err := o.store.Get(kvstore.BucketConfig, []byte(keyEncryptionKey))
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate encryption key: %w", err)
		}
		if err := o.store.Put(kvstore.BucketConfig, []byte(keyEncryptionKey), key); err != nil {
			return nil, fmt.Errorf("persist encryption key: %w", err)
		}
	}
	mgr, err := security.NewManager(key)
	if err != nil {
		return nil, err
	}
	o.secrets = mgr
	return mgr, nil
}

