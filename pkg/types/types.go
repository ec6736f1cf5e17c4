// Package types defines the data model shared across the orchestrator:
// hosts, service specs, placement rules, daemon descriptions, and the
// handful of persisted records (removal-queue entries, upgrade state,
// events) that every other package builds on.
package types

import (
	"fmt"
	"strings"
	"time"
)

// HostStatus is the reachability state of a managed host.
type HostStatus string

const (
	HostOnline  HostStatus = "online"
	HostOffline HostStatus = "offline"
)

// Host is an entry in the Inventory: a managed machine with an address
// and a set of labels used by placement rules.
type Host struct {
	Hostname string            `json:"hostname"`
	Address  string            `json:"address"`
	Labels   map[string]bool   `json:"labels"`
	Status   HostStatus        `json:"status"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HasLabel reports whether the host carries the given label.
func (h *Host) HasLabel(label string) bool {
	return h.Labels[label]
}

// ServiceType enumerates the daemon families the orchestrator manages.
type ServiceType string

const (
	ServiceMon          ServiceType = "mon"
	ServiceMgr          ServiceType = "mgr"
	ServiceOSD          ServiceType = "osd"
	ServiceMDS          ServiceType = "mds"
	ServiceRGW          ServiceType = "rgw"
	ServiceRBDMirror    ServiceType = "rbd-mirror"
	ServiceNFS          ServiceType = "nfs"
	ServiceISCSI        ServiceType = "iscsi"
	ServiceGrafana      ServiceType = "grafana"
	ServiceAlertmanager ServiceType = "alertmanager"
	ServicePrometheus   ServiceType = "prometheus"
	ServiceNodeExporter ServiceType = "node-exporter"
	ServiceCrash        ServiceType = "crash"
)

// ValidServiceTypes is the complete set of recognized service types.
var ValidServiceTypes = map[ServiceType]bool{
	ServiceMon: true, ServiceMgr: true, ServiceOSD: true, ServiceMDS: true,
	ServiceRGW: true, ServiceRBDMirror: true, ServiceNFS: true, ServiceISCSI: true,
	ServiceGrafana: true, ServiceAlertmanager: true, ServicePrometheus: true,
	ServiceNodeExporter: true, ServiceCrash: true,
}

// ImplicitSpecTypes are daemon types that may be observed without a
// corresponding SpecStore entry (mon/mgr/osd are bootstrapped before any
// spec exists, or managed by a spec-less drive-group flow for osd).
var ImplicitSpecTypes = map[ServiceType]bool{
	ServiceMon: true, ServiceMgr: true, ServiceOSD: true,
}

// NonSuffixedTypes get a bare daemon id (shortHost) instead of a
// shortHost+random-suffix id; see the reconciler's daemon id allocation.
var NonSuffixedTypes = map[ServiceType]bool{
	ServiceMon: true, ServiceCrash: true, ServiceNFS: true,
	ServiceGrafana: true, ServiceAlertmanager: true,
	ServicePrometheus: true, ServiceNodeExporter: true,
}

// PlacementSpec narrows a spec to a subset of hosts. At most one of
// Hosts, Label, HostPattern may be set; Count further bounds the
// target. Count is a pointer so an explicit "count: 0" — which must be
// rejected for mon/mgr, not silently replaced by a default — is
// distinguishable from an omitted count.
type PlacementSpec struct {
	Count       *int     `yaml:"count,omitempty" json:"count,omitempty"`
	Hosts       []string `yaml:"hosts,omitempty" json:"hosts,omitempty"`
	Label       string   `yaml:"label,omitempty" json:"label,omitempty"`
	HostPattern string   `yaml:"host_pattern,omitempty" json:"host_pattern,omitempty"`
}

// CountPtr builds the *int a literal placement count needs.
func CountPtr(n int) *int { return &n }

// IsEmpty reports whether the placement carries no explicit selection,
// meaning the scheduler should fall back to the service's default
// placement (see pkg/scheduler.DefaultPlacement).
func (p PlacementSpec) IsEmpty() bool {
	return p.Count == nil && len(p.Hosts) == 0 && p.Label == "" && p.HostPattern == ""
}

// HostPlacementSpec names one host chosen by the scheduler for a daemon,
// optionally narrowing the network interface or forcing a daemon id.
type HostPlacementSpec struct {
	Hostname string `json:"hostname"`
	Network  string `json:"network,omitempty"`
	Name     string `json:"name,omitempty"`
}

// ParseHostPlacement parses one entry of placement.hosts:
// "hostname[:network][=name]".
func ParseHostPlacement(entry string) HostPlacementSpec {
	hps := HostPlacementSpec{}
	rest := entry
	if idx := strings.Index(rest, "="); idx >= 0 {
		hps.Name = rest[idx+1:]
		rest = rest[:idx]
	}
	if idx := strings.Index(rest, ":"); idx >= 0 {
		hps.Network = rest[idx+1:]
		rest = rest[:idx]
	}
	hps.Hostname = rest
	return hps
}

// Spec is the declarative description of one service: the desired set
// of daemons of a given type. Type-specific attributes live in their own
// fields rather than a discriminated sub-struct, matching the flat
// "spec:" block the YAML schema accepts.
type Spec struct {
	ServiceType ServiceType   `yaml:"service_type" json:"service_type"`
	ServiceID   string        `yaml:"service_id,omitempty" json:"service_id,omitempty"`
	Unmanaged   bool          `yaml:"unmanaged,omitempty" json:"unmanaged,omitempty"`
	PreviewOnly bool          `yaml:"preview_only,omitempty" json:"preview_only,omitempty"`
	Placement   PlacementSpec `yaml:"placement,omitempty" json:"placement,omitempty"`

	// Type-specific attributes. Only the field(s) matching ServiceType
	// are meaningful; callers treat this as a union discriminated
	// by service_type.
	NFS *NFSSpec `yaml:"nfs,omitempty" json:"nfs,omitempty"`
	RGW *RGWSpec `yaml:"rgw,omitempty" json:"rgw,omitempty"`
	OSD *OSDSpec `yaml:"osd,omitempty" json:"osd,omitempty"`

	CreatedAt time.Time `yaml:"-" json:"created_at,omitempty"`
}

// NFSSpec carries NFS-specific attributes.
type NFSSpec struct {
	Pool      string `yaml:"pool" json:"pool"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// RGWSpec carries RGW-specific attributes.
type RGWSpec struct {
	Realm string `yaml:"realm,omitempty" json:"realm,omitempty"`
	Zone  string `yaml:"zone,omitempty" json:"zone,omitempty"`
}

// OSDSpec carries drive-group filters for OSD creation.
type OSDSpec struct {
	DataDevices string `yaml:"data_devices,omitempty" json:"data_devices,omitempty"`
	DBDevices   string `yaml:"db_devices,omitempty" json:"db_devices,omitempty"`
	Encrypted   bool   `yaml:"encrypted,omitempty" json:"encrypted,omitempty"`
}

var validNameChars = func() [256]bool {
	var table [256]bool
	for c := 'A'; c <= 'Z'; c++ {
		table[c] = true
	}
	for c := 'a'; c <= 'z'; c++ {
		table[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		table[c] = true
	}
	table['_'] = true
	table['.'] = true
	table['-'] = true
	return table
}()

// ValidName reports whether s matches [A-Za-z0-9_.\-]+.
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !validNameChars[s[i]] {
			return false
		}
	}
	return true
}

// ServiceName returns the "type[.id]" key identifying this spec and its
// daemons. mon/mgr never carry a service_id.
func (s *Spec) ServiceName() string {
	if s.ServiceID == "" {
		return string(s.ServiceType)
	}
	return fmt.Sprintf("%s.%s", s.ServiceType, s.ServiceID)
}

// DaemonStatus mirrors the agent's reported daemon state.
type DaemonStatus int

const (
	StatusError   DaemonStatus = -1
	StatusStopped DaemonStatus = 0
	StatusRunning DaemonStatus = 1
)

// DaemonDescription is one observed (or just-deployed) daemon instance.
type DaemonDescription struct {
	DaemonType         ServiceType  `json:"daemon_type"`
	DaemonID           string       `json:"daemon_id"`
	Hostname           string       `json:"hostname"`
	ContainerImageID   string       `json:"container_image_id,omitempty"`
	ContainerImageName string       `json:"container_image_name,omitempty"`
	Version            string       `json:"version,omitempty"`
	Status             DaemonStatus `json:"status"`
	StatusDesc         string       `json:"status_desc,omitempty"`

	Created        time.Time `json:"created,omitempty"`
	Started        time.Time `json:"started,omitempty"`
	LastConfigured time.Time `json:"last_configured,omitempty"`
	LastDeployed   time.Time `json:"last_deployed,omitempty"`
	LastRefresh    time.Time `json:"last_refresh,omitempty"`

	OSDSpecAffinity string `json:"osdspec_affinity,omitempty"`
	IsActive        bool   `json:"is_active,omitempty"`

	// ServiceID is the spec sub-identifier this daemon belongs to, if
	// any (e.g. "fs1" for a daemon under spec "mds.fs1"). Empty for
	// types that never carry one (mon, mgr) or for plain single-id
	// services.
	ServiceID string `json:"service_id,omitempty"`
}

// Name returns the daemon name "{type}.{id}".
func (d *DaemonDescription) Name() string {
	return fmt.Sprintf("%s.%s", d.DaemonType, d.DaemonID)
}

// ServiceName returns the service name "{type}[.{service_id}]" this
// daemon belongs to.
func (d *DaemonDescription) ServiceName() string {
	if d.ServiceID == "" {
		return string(d.DaemonType)
	}
	return fmt.Sprintf("%s.%s", d.DaemonType, d.ServiceID)
}

// ConfigDeps records the dependency set a daemon was last configured
// with and when, used to detect when a reconfig is required.
type ConfigDeps struct {
	Deps           []string  `json:"deps"`
	LastConfigTime time.Time `json:"last_config_time"`
}

// HostCacheEntry is the per-host observed state cached by the reconciler.
type HostCacheEntry struct {
	Hostname string                        `json:"hostname"`
	Daemons  map[string]*DaemonDescription `json:"daemons"`
	Devices  []Device                      `json:"devices,omitempty"`
	Networks map[string][]string           `json:"networks,omitempty"` // cidr -> []ip

	LastHostCheck     time.Time `json:"last_host_check"`
	LastDaemonRefresh time.Time `json:"last_daemon_refresh"`
	LastDeviceRefresh time.Time `json:"last_device_refresh"`
	LastEtcConfWrite  time.Time `json:"last_etc_conf_write"`
	LastEtcConfEpoch  string    `json:"last_etc_conf_epoch,omitempty"`

	DaemonConfigDeps   map[string]ConfigDeps `json:"daemon_config_deps,omitempty"`
	NeedsRegistryLogin bool                  `json:"needs_registry_login"`

	// invalidation flags; cleared after the corresponding refresh runs
	daemonsInvalidated bool
	devicesInvalidated bool
}

// NewHostCacheEntry returns an empty, just-primed cache entry.
func NewHostCacheEntry(hostname string) *HostCacheEntry {
	return &HostCacheEntry{
		Hostname:           hostname,
		Daemons:            make(map[string]*DaemonDescription),
		Networks:           make(map[string][]string),
		DaemonConfigDeps:   make(map[string]ConfigDeps),
		NeedsRegistryLogin: true,
	}
}

// InvalidateDaemons forces the next daemon-refresh predicate to be due.
func (e *HostCacheEntry) InvalidateDaemons() { e.daemonsInvalidated = true }

// InvalidateDevices forces the next device-refresh predicate to be due.
func (e *HostCacheEntry) InvalidateDevices() { e.devicesInvalidated = true }

// NeedsDaemonRefresh reports whether the daemon list is stale.
func (e *HostCacheEntry) NeedsDaemonRefresh(timeout time.Duration) bool {
	return e.daemonsInvalidated || time.Since(e.LastDaemonRefresh) > timeout
}

// NeedsDeviceRefresh reports whether the device inventory is stale.
func (e *HostCacheEntry) NeedsDeviceRefresh(timeout time.Duration) bool {
	return e.devicesInvalidated || time.Since(e.LastDeviceRefresh) > timeout
}

// NeedsHostCheck reports whether the host-check is stale.
func (e *HostCacheEntry) NeedsHostCheck(interval time.Duration) bool {
	return time.Since(e.LastHostCheck) > interval
}

// MarkDaemonsRefreshed records a completed daemon refresh.
func (e *HostCacheEntry) MarkDaemonsRefreshed(now time.Time) {
	e.LastDaemonRefresh = now
	e.daemonsInvalidated = false
}

// MarkDevicesRefreshed records a completed device refresh.
func (e *HostCacheEntry) MarkDevicesRefreshed(now time.Time) {
	e.LastDeviceRefresh = now
	e.devicesInvalidated = false
}

// Device is one observed block device reported by the agent's device
// inventory call.
type Device struct {
	Path          string   `json:"path"`
	Available     bool     `json:"available"`
	RejectReasons []string `json:"reject_reasons,omitempty"`
	Size          int64    `json:"size,omitempty"`
	LVs           int      `json:"lvs,omitempty"`
}

// RemovalState is a stage in the OSD removal drain state machine.
type RemovalState string

const (
	RemovalQueued   RemovalState = "queued"
	RemovalDraining RemovalState = "draining"
	RemovalDrained  RemovalState = "drained"
	RemovalPurging  RemovalState = "purging"
	RemovalDone     RemovalState = "done"
	RemovalFailed   RemovalState = "failed"
)

// RemovalQueueEntry tracks one OSD moving through the drain-then-destroy
// workflow.
type RemovalQueueEntry struct {
	OSDID      int          `json:"osd_id"`
	Replace    bool         `json:"replace"`
	Force      bool         `json:"force"`
	Hostname   string       `json:"hostname"`
	Fullname   string       `json:"fullname"`
	StartedAt  time.Time    `json:"started_at"`
	State      RemovalState `json:"state"`
	FailReason string       `json:"fail_reason,omitempty"`

	// LastPGCount is the most recently observed pg_summary count for
	// this OSD, recorded so "osd rm-status" can report drain progress
	// without a live cluster round-trip.
	LastPGCount int `json:"last_pg_count"`
}

// EventLevel classifies an event's severity.
type EventLevel string

const (
	EventInfo  EventLevel = "INFO"
	EventError EventLevel = "ERROR"
)

// Event is one entry in a per-subject event ring (EventStore).
type Event struct {
	ID        string     `json:"id"`
	Subject   string     `json:"subject"` // service name or daemon name
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// UpgradeState is the persisted state of the rolling upgrade engine.
type UpgradeState struct {
	TargetImage   string `json:"target_image,omitempty"`
	TargetID      string `json:"target_id,omitempty"`
	TargetVersion string `json:"target_version,omitempty"`
	InProgress    bool   `json:"in_progress"`
	Paused        bool   `json:"paused"`
	CurrentType   string `json:"current_type,omitempty"`
	CurrentDaemon string `json:"current_daemon,omitempty"`
	Error         string `json:"error,omitempty"`
}

// HealthSeverity classifies a published health check.
type HealthSeverity string

const (
	SeverityWarning HealthSeverity = "warning"
	SeverityError   HealthSeverity = "error"
)

// HealthCheck is one named, published health condition.
type HealthCheck struct {
	Name     string         `json:"name"`
	Severity HealthSeverity `json:"severity"`
	Summary  string         `json:"summary"`
	Count    int            `json:"count"`
	Detail   []string       `json:"detail,omitempty"`
}
