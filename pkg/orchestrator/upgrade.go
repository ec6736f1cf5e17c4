package orchestrator

import (
	"context"

	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/executor"
	"github.com/cuemby/cephadmd/pkg/types"
)

// UpgradeStart begins a rolling upgrade to targetImage, iterated by
// the serve loop's stage 8 ("upgrade start [--image IMG]").
func (o *Orchestrator) UpgradeStart(targetImage, targetVersion string) error {
	if targetImage == "" {
		return errs.New(errs.InvalidArg, "upgrade start requires --image")
	}
	if err := o.upgrade.Start(targetImage, "", targetVersion); err != nil {
		return err
	}
	o.logger.Info().Str("image", targetImage).Msg("upgrade started")
	return nil
}

// UpgradePause pauses an in-progress upgrade ("upgrade pause").
func (o *Orchestrator) UpgradePause() error { return o.upgrade.Pause() }

// UpgradeResume resumes a paused upgrade ("upgrade resume").
func (o *Orchestrator) UpgradeResume() error { return o.upgrade.Resume() }

// UpgradeStop aborts an in-progress upgrade ("upgrade stop").
func (o *Orchestrator) UpgradeStop() error {
	if err := o.upgrade.Stop(); err != nil {
		return err
	}
	o.logger.Info().Msg("upgrade stopped")
	return nil
}

// UpgradeStatus reports the upgrade state machine's current state
// ("upgrade status").
func (o *Orchestrator) UpgradeStatus() types.UpgradeState { return o.upgrade.Status() }

// UpgradeCheck verifies that targetImage can actually be pulled,
// without starting an upgrade: it runs the agent's "pull" command
// against one online host and surfaces the result. The upgrade engine
// itself runs no such probe before redeploying daemons ("upgrade check
// [--image IMG]").
func (o *Orchestrator) UpgradeCheck(ctx context.Context, targetImage string) (string, error) {
	if targetImage == "" {
		return "", errs.New(errs.InvalidArg, "upgrade check requires --image")
	}
	hosts := o.inventory.All()
	var probe *types.Host
	for _, h := range hosts {
		if h.Status == types.HostOnline {
			probe = h
			break
		}
	}
	if probe == nil {
		return "", errs.New(errs.HostUnreachable, "no online host available to check image")
	}
	res, err := o.executor.Run(ctx, probe, "cephadm", "pull", []string{"--image", targetImage}, executor.RunOptions{Image: targetImage})
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}
