package executor

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/inventory"
	"github.com/cuemby/cephadmd/pkg/log"
	"github.com/cuemby/cephadmd/pkg/types"

	"github.com/rs/zerolog"
)

// Result is the outcome of one Run call.
type Result struct {
	Stdout string
	Stderr string
	Code   int
}

// RunOptions carries the optional parameters of a run call.
type RunOptions struct {
	Stdin      []byte
	Env        map[string]string
	Image      string
	NoFsid     bool
	AllowError bool
}

// Transport is the connection layer the Executor drives. SSHTransport
// is the production implementation; tests substitute an in-memory fake.
type Transport interface {
	Run(ctx context.Context, host *types.Host, entity, command string, args []string, opts RunOptions) (Result, error)
	Close(hostname string)
}

// Config holds the SSH connection parameters shared across every host.
type Config struct {
	User           string
	PrivateKey     []byte
	Port           int
	ConnectTimeout time.Duration
	CallTimeout    time.Duration
}

// DefaultConfig returns cephadm's usual root/22/30s defaults.
func DefaultConfig() Config {
	return Config{
		User:           "root",
		Port:           22,
		ConnectTimeout: 30 * time.Second,
		CallTimeout:    30 * time.Second,
	}
}

// SSHTransport is the concrete Transport: a pool of persistent SSH
// client connections keyed by hostname, reconnected on failure.
type SSHTransport struct {
	cfg    Config
	signer ssh.Signer

	mu      sync.Mutex
	clients map[string]*ssh.Client
}

// NewSSHTransport builds a transport from cfg. cfg.PrivateKey must be a
// PEM-encoded private key.
func NewSSHTransport(cfg Config) (*SSHTransport, error) {
	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArg, "parse ssh private key", err)
	}
	return &SSHTransport{
		cfg:     cfg,
		signer:  signer,
		clients: make(map[string]*ssh.Client),
	}, nil
}

func (t *SSHTransport) client(host *types.Host) (*ssh.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.clients[host.Hostname]; ok {
		return c, nil
	}

	addr := host.Address
	if addr == "" {
		addr = host.Hostname
	}
	clientCfg := &ssh.ClientConfig{
		User:            t.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(t.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         t.cfg.ConnectTimeout,
	}
	c, err := ssh.Dial("tcp", net.JoinHostPort(addr, portString(t.cfg.Port)), clientCfg)
	if err != nil {
		return nil, err
	}
	t.clients[host.Hostname] = c
	return c, nil
}

func portString(p int) string {
	if p == 0 {
		p = 22
	}
	return fmt.Sprintf("%d", p)
}

// Close drops a cached connection, forcing the next Run to reconnect.
func (t *SSHTransport) Close(hostname string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[hostname]; ok {
		c.Close()
		delete(t.clients, hostname)
	}
}

// closeAllLocked drops every cached connection. Callers hold t.mu.
func (t *SSHTransport) closeAllLocked() {
	for hostname, c := range t.clients {
		c.Close()
		delete(t.clients, hostname)
	}
}

// SetPrivateKey replaces the signer used for every future connection
// ("set-priv-key"/"generate-key") and drops every cached connection
// so it takes effect immediately instead of only on the next new host.
func (t *SSHTransport) SetPrivateKey(pemKey []byte) error {
	signer, err := ssh.ParsePrivateKey(pemKey)
	if err != nil {
		return errs.Wrap(errs.InvalidArg, "parse ssh private key", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signer = signer
	t.closeAllLocked()
	return nil
}

// SetConfig updates the connection parameters applied to every future
// connection ("set-ssh-config"), dropping cached connections the
// same way SetPrivateKey does.
func (t *SSHTransport) SetConfig(user string, port int, connectTimeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if user != "" {
		t.cfg.User = user
	}
	if port != 0 {
		t.cfg.Port = port
	}
	if connectTimeout != 0 {
		t.cfg.ConnectTimeout = connectTimeout
	}
	t.closeAllLocked()
}

// Run executes the cephadm-style agent invocation over a fresh SSH
// session on the pooled connection for host.
func (t *SSHTransport) Run(ctx context.Context, host *types.Host, entity, command string, args []string, opts RunOptions) (Result, error) {
	client, err := t.client(host)
	if err != nil {
		return Result{}, err
	}

	session, err := client.NewSession()
	if err != nil {
		t.Close(host.Hostname)
		return Result{}, err
	}
	defer session.Close()

	for k, v := range opts.Env {
		session.Setenv(k, v)
	}
	if len(opts.Stdin) > 0 {
		session.Stdin = bytes.NewReader(opts.Stdin)
	}

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	cmdline := buildCommandLine(entity, command, args)

	done := make(chan error, 1)
	go func() { done <- session.Run(cmdline) }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return Result{}, ctx.Err()
	case err := <-done:
		code := 0
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				code = exitErr.ExitStatus()
			} else {
				return Result{}, err
			}
		}
		return Result{Stdout: stdout.String(), Stderr: stderr.String(), Code: code}, nil
	}
}

func buildCommandLine(entity, command string, args []string) string {
	parts := append([]string{entity, command}, args...)
	return strings.Join(parts, " ")
}

// Executor is the facade the reconciler and drivers call: it wraps a
// Transport, classifies failures into HostUnreachable vs AgentError,
// and maintains the offline-hosts set the rest of the
// orchestrator consults.
type Executor struct {
	transport Transport
	inventory *inventory.Inventory
	logger    zerolog.Logger
	timeout   time.Duration

	mu      sync.Mutex
	offline map[string]bool
}

// New builds an Executor over transport, marking host status through inv.
func New(transport Transport, inv *inventory.Inventory, timeout time.Duration) *Executor {
	return &Executor{
		transport: transport,
		inventory: inv,
		logger:    log.WithComponent("executor"),
		timeout:   timeout,
		offline:   make(map[string]bool),
	}
}

// Run executes entity/command on host, translating transport failures
// into HostUnreachable and non-zero agent exits into AgentError (unless
// opts.AllowError is set).
func (e *Executor) Run(ctx context.Context, host *types.Host, entity, command string, args []string, opts RunOptions) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.transport.Run(ctx, host, entity, command, args, opts)
	if err != nil {
		e.markOffline(host.Hostname)
		return Result{}, errs.Wrap(errs.HostUnreachable, fmt.Sprintf("connect to %s", host.Hostname), err)
	}
	e.markOnline(host.Hostname)

	if res.Code != 0 && !opts.AllowError {
		return res, errs.Newf(errs.AgentError, "%s %s on %s exited %d: %s", entity, command, host.Hostname, res.Code, res.Stderr)
	}
	return res, nil
}

func (e *Executor) markOffline(hostname string) {
	e.mu.Lock()
	wasOnline := !e.offline[hostname]
	e.offline[hostname] = true
	e.mu.Unlock()

	if wasOnline {
		e.logger.Warn().Str("hostname", hostname).Msg("host unreachable, marking offline")
	}
	if e.inventory != nil {
		_ = e.inventory.SetStatus(hostname, types.HostOffline)
	}
}

func (e *Executor) markOnline(hostname string) {
	e.mu.Lock()
	wasOffline := e.offline[hostname]
	delete(e.offline, hostname)
	e.mu.Unlock()

	if wasOffline {
		e.logger.Info().Str("hostname", hostname).Msg("host reachable again")
	}
	if e.inventory != nil {
		_ = e.inventory.SetStatus(hostname, types.HostOnline)
	}
}

// OfflineHosts returns the current offline-hosts set.
func (e *Executor) OfflineHosts() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]bool, len(e.offline))
	for h := range e.offline {
		out[h] = true
	}
	return out
}
