// Package osdremoval implements the OSD removal queue and its
// drain-then-destroy state machine: queued -> draining ->
// drained -> purging -> done, with a failed terminal state reachable
// from any in-flight stage.
package osdremoval

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/cephadmd/pkg/cluster"
	"github.com/cuemby/cephadmd/pkg/drivers"
	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/eventstore"
	"github.com/cuemby/cephadmd/pkg/hostcache"
	"github.com/cuemby/cephadmd/pkg/kvstore"
	"github.com/cuemby/cephadmd/pkg/log"
	"github.com/cuemby/cephadmd/pkg/types"
)

// Queue is the persisted OSD removal queue. Entries survive process
// restarts and are driven one state transition per
// Process call, matching the reconciler's "advance the state machine"
// stage.
type Queue struct {
	store     *kvstore.Store
	cluster   cluster.Client
	drivers   *drivers.Registry
	hostcache *hostcache.HostCache
	events    *eventstore.EventStore
	logger    zerolog.Logger

	mu      sync.Mutex
	entries map[int]*types.RemovalQueueEntry
}

// New loads the removal queue from store.
func New(store *kvstore.Store, cl cluster.Client, dr *drivers.Registry, hc *hostcache.HostCache, events *eventstore.EventStore) (*Queue, error) {
	q := &Queue{
		store:     store,
		cluster:   cl,
		drivers:   dr,
		hostcache: hc,
		events:    events,
		logger:    log.WithComponent("osdremoval"),
		entries:   make(map[int]*types.RemovalQueueEntry),
	}
	err := store.ForEach(kvstore.BucketRemovalQueue, func(_, value []byte) error {
		var e types.RemovalQueueEntry
		if err := json.Unmarshal(value, &e); err != nil {
			return err
		}
		q.entries[e.OSDID] = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) persist(e *types.RemovalQueueEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return q.store.Put(kvstore.BucketRemovalQueue, osdKey(e.OSDID), data)
}

func osdKey(id int) []byte { return []byte(fmt.Sprintf("%d", id)) }

// Enqueue adds osdID to the removal queue. Unless force is set, the
// OSD driver's ok_to_stop gate is consulted first and a veto rejects
// the call with NotSafeToStop.
func (q *Queue) Enqueue(osdID int, hostname, fullname string, replace, force bool, daemon *types.DaemonDescription) error {
	if !force {
		d, err := q.drivers.For(types.ServiceOSD)
		if err != nil {
			return err
		}
		if daemon != nil {
			if ok, reason := d.OkToStop([]*types.DaemonDescription{daemon}); !ok {
				return errs.Newf(errs.NotSafeToStop, "osd.%d: %s", osdID, reason)
			}
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.entries[osdID]; exists {
		return nil // idempotent re-enqueue
	}
	e := &types.RemovalQueueEntry{
		OSDID:     osdID,
		Replace:   replace,
		Force:     force,
		Hostname:  hostname,
		Fullname:  fullname,
		StartedAt: time.Now(),
		State:     types.RemovalQueued,
	}
	if err := q.persist(e); err != nil {
		return errs.Wrap(errs.Internal, "persist removal queue entry", err)
	}
	q.entries[osdID] = e
	q.events.Info(fmt.Sprintf("osd.%d", osdID), "queued for removal")
	return nil
}

// Status returns every removal-queue entry, for "osd rm-status".
func (q *Queue) Status() []*types.RemovalQueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*types.RemovalQueueEntry, 0, len(q.entries))
	for _, e := range q.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

// Stop restores an OSD's crush weight and drops it from the queue, as
// long as it has not progressed past draining. Later stages reject the
// request — the drain has already committed to the out/purge path.
func (q *Queue) Stop(ctx context.Context, osdID int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[osdID]
	if !ok {
		return errs.Newf(errs.NotFound, "osd.%d not in removal queue", osdID)
	}
	if e.State != types.RemovalQueued && e.State != types.RemovalDraining {
		return errs.Newf(errs.InvalidArg, "osd.%d is past draining (state=%s), cannot stop removal", osdID, e.State)
	}
	_, _, err := q.cluster.MonCommand(ctx, "osd reweight", map[string]string{"id": fmt.Sprintf("%d", osdID), "weight": "1"})
	if err != nil {
		return errs.Wrap(errs.Internal, "restore osd weight", err)
	}
	if err := q.store.Delete(kvstore.BucketRemovalQueue, osdKey(osdID)); err != nil {
		return errs.Wrap(errs.Internal, "delete removal queue entry", err)
	}
	delete(q.entries, osdID)
	q.events.Info(fmt.Sprintf("osd.%d", osdID), "removal stopped, weight restored")
	return nil
}

// Process advances every in-flight entry's state machine by one step
// and reports whether any entry made progress, so the reconciler can
// decide whether to loop again immediately.
func (q *Queue) Process(ctx context.Context) (bool, error) {
	q.mu.Lock()
	inflight := make([]*types.RemovalQueueEntry, 0, len(q.entries))
	for _, e := range q.entries {
		inflight = append(inflight, e)
	}
	q.mu.Unlock()

	didWork := false
	for _, e := range inflight {
		if e.State == types.RemovalDone || e.State == types.RemovalFailed {
			continue
		}
		progressed, err := q.step(ctx, e)
		if err != nil {
			q.logger.Error().Err(err).Int("osd_id", e.OSDID).Msg("removal step failed")
		}
		if progressed {
			didWork = true
		}
	}
	return didWork, nil
}

func (q *Queue) step(ctx context.Context, e *types.RemovalQueueEntry) (bool, error) {
	switch e.State {
	case types.RemovalQueued:
		_, _, err := q.cluster.MonCommand(ctx, "osd reweight", map[string]string{"id": fmt.Sprintf("%d", e.OSDID), "weight": "0"})
		if err != nil {
			return q.fail(e, err)
		}
		e.State = types.RemovalDraining
		q.events.Info(e.Fullname, "draining started")
		return true, q.persist(e)

	case types.RemovalDraining:
		n, err := q.cluster.PGSummaryForOSD(ctx, e.OSDID)
		if err != nil {
			return q.fail(e, err)
		}
		e.LastPGCount = n
		if n > 0 {
			return false, q.persist(e)
		}
		e.State = types.RemovalDrained
		q.events.Info(e.Fullname, "drain complete, 0 pgs remaining")
		return true, q.persist(e)

	case types.RemovalDrained:
		if q.hostcache != nil {
			if d, ok := q.findDaemon(e); ok {
				driver, err := q.drivers.For(types.ServiceOSD)
				if err == nil {
					if err := driver.PreRemove(d); err != nil {
						return q.fail(e, err)
					}
				}
			}
		}
		if _, _, err := q.cluster.MonCommand(ctx, "osd out", map[string]string{"id": fmt.Sprintf("%d", e.OSDID)}); err != nil {
			return q.fail(e, err)
		}
		e.State = types.RemovalPurging
		return true, q.persist(e)

	case types.RemovalPurging:
		prefix := "osd purge"
		if e.Replace {
			prefix = "osd destroy"
		}
		if _, _, err := q.cluster.MonCommand(ctx, prefix, map[string]string{"id": fmt.Sprintf("%d", e.OSDID)}); err != nil {
			return q.fail(e, err)
		}
		e.State = types.RemovalDone
		if q.hostcache != nil && e.Hostname != "" && e.Fullname != "" {
			_ = q.hostcache.RmDaemon(e.Hostname, e.Fullname)
		}
		q.events.Info(e.Fullname, fmt.Sprintf("removal complete (%s)", prefix))
		return true, q.persist(e)
	}
	return false, nil
}

func (q *Queue) findDaemon(e *types.RemovalQueueEntry) (*types.DaemonDescription, bool) {
	for _, d := range q.hostcache.GetDaemonsOnHost(e.Hostname) {
		if d.Name() == e.Fullname {
			return d, true
		}
	}
	return nil, false
}

func (q *Queue) fail(e *types.RemovalQueueEntry, cause error) (bool, error) {
	e.State = types.RemovalFailed
	e.FailReason = cause.Error()
	q.events.Error(e.Fullname, fmt.Sprintf("removal failed: %v", cause))
	return true, q.persist(e)
}
