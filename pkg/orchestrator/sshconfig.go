package orchestrator

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/kvstore"
)

// SetSSHConfig stores a raw OpenSSH-style client config
// ("set-ssh-config -i <file>") and applies the directives it
// recognizes -- User, Port, ConnectTimeout -- to the live transport.
// Unrecognized directives (StrictHostKeyChecking, UserKnownHostsFile,
// …) are accepted and persisted verbatim but have no executor-level
// effect, since SSHTransport always connects with host key checking
// disabled and /dev/null known-hosts.
func (o *Orchestrator) SetSSHConfig(raw []byte) error {
	user, port, connectTimeout, err := parseSSHConfig(raw)
	if err != nil {
		return err
	}
	if err := o.store.Put(kvstore.BucketConfig, []byte(keySSHConfig), raw); err != nil {
		return errs.Wrap(errs.Internal, "persist ssh config", err)
	}
	o.transport.SetConfig(user, port, connectTimeout)
	return nil
}

// ClearSSHConfig removes any custom ssh_config, reverting future
// connections to the compiled-in default ("clear-ssh-config").
func (o *Orchestrator) ClearSSHConfig() error {
	if err := o.store.Delete(kvstore.BucketConfig, []byte(keySSHConfig)); err != nil {
		return errs.Wrap(errs.Internal, "clear ssh config", err)
	}
	o.transport.SetConfig(o.cfg.SSHUser, o.cfg.SSHPort, o.cfg.ConnectTimeout)
	return nil
}

// GetSSHConfig returns the currently persisted custom ssh_config, or
// nil if none has been set ("get-ssh-config").
func (o *Orchestrator) GetSSHConfig() ([]byte, error) {
	data, err := o.store.Get(kvstore.BucketConfig, []byte(keySSHConfig))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "read ssh config", err)
	}
	return data, nil
}

// parseSSHConfig scans a small subset of OpenSSH client config
// directives this orchestrator's transport actually honors.
func parseSSHConfig(raw []byte) (user string, port int, connectTimeout time.Duration, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		key, value := strings.ToLower(fields[0]), fields[1]
		switch key {
		case "user":
			user = value
		case "port":
			n, perr := strconv.Atoi(value)
			if perr != nil {
				return "", 0, 0, errs.Newf(errs.InvalidArg, "invalid ssh_config Port %q", value)
			}
			port = n
		case "connecttimeout":
			n, perr := strconv.Atoi(value)
			if perr != nil {
				return "", 0, 0, errs.Newf(errs.InvalidArg, "invalid ssh_config ConnectTimeout %q", value)
			}
			connectTimeout = time.Duration(n) * time.Second
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return "", 0, 0, errs.Wrap(errs.InvalidArg, "scan ssh_config", scanErr)
	}
	return user, port, connectTimeout, nil
}
