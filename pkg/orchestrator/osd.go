package orchestrator

import (
	"context"
	"fmt"

	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/types"
)

// OSDRm enqueues one or more OSDs for drain-then-destroy removal
// ("osd rm <id…> [--replace] [--force]").
func (o *Orchestrator) OSDRm(ids []int, replace, force bool) error {
	var first error
	for _, id := range ids {
		d, err := o.findDaemon(fmt.Sprintf("%s.%d", types.ServiceOSD, id))
		if err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		if err := o.removal.Enqueue(id, d.Hostname, d.Name(), replace, force, d); err != nil && first == nil {
			first = err
		} else if err == nil {
			o.logger.Info().Int("osd", id).Bool("replace", replace).Msg("osd queued for removal")
		}
	}
	o.reconcile.Wake()
	return first
}

// OSDRmStatus reports every OSD currently moving through the removal
// queue ("osd rm-status").
func (o *Orchestrator) OSDRmStatus() []*types.RemovalQueueEntry {
	return o.removal.Status()
}

// OSDRmStop cancels a queued removal, leaving the OSD in place
// ("osd rm-stop <id…>").
func (o *Orchestrator) OSDRmStop(ctx context.Context, ids []int) error {
	var first error
	for _, id := range ids {
		if err := o.removal.Stop(ctx, id); err != nil {
			if errs.Is(err, errs.NotFound) {
				continue
			}
			if first == nil {
				first = err
			}
		}
	}
	return first
}
