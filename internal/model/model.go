package model

import (
	"fmt"
	"time"
)

// Endpoint identifies and authenticates to one managed router.
// Immutable once a session is built from it; equality is (host, port).
type Endpoint struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
}

// Addr returns the dialable host:port form.
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

func (e Endpoint) String() string {
	return e.Addr()
}

// SystemSnapshot is a point-in-time view of the router's resources.
type SystemSnapshot struct {
	CPULoadPercent  float64
	Voltage         float64
	TemperatureC    int
	Uptime          string
	MemoryTotal     int64
	MemoryFree      int64
	BoardName       string
	FirmwareVersion string
	Architecture    string
	BuildTime       string
}

// MemoryUsagePercent derives used memory as a percentage of total.
// A zero total reports 0, not a division fault.
func (s SystemSnapshot) MemoryUsagePercent() float64 {
	if s.MemoryTotal <= 0 {
		return 0
	}
	return float64(s.MemoryTotal-s.MemoryFree) / float64(s.MemoryTotal) * 100
}

// InterfaceStat describes one router interface and its counters.
type InterfaceStat struct {
	Name      string
	Type      string
	Running   bool
	Disabled  bool
	RxBytes   int64
	TxBytes   int64
	RxPackets int64
	TxPackets int64
	RxErrors  int64
	TxErrors  int64
}

// RxMegabytes converts the receive counter to MiB.
func (i InterfaceStat) RxMegabytes() float64 { return float64(i.RxBytes) / (1024 * 1024) }

// TxMegabytes converts the transmit counter to MiB.
func (i InterfaceStat) TxMegabytes() float64 { return float64(i.TxBytes) / (1024 * 1024) }

// HotspotUser is a captive-portal credential record. The session fields are
// populated only when the record represents a live connection.
type HotspotUser struct {
	Name            string
	Password        string
	Profile         string
	Server          string
	Disabled        bool
	Comment         string
	LimitUptime     string
	LimitBytesIn    string
	LimitBytesOut   string
	LimitBytesTotal string

	IPAddress  string
	MACAddress string
	Uptime     string
	BytesIn    int64
	BytesOut   int64
	PacketsIn  int64
	PacketsOut int64
}

// Active reports whether the record represents a live hotspot session.
func (u HotspotUser) Active() bool { return u.IPAddress != "" }

// TotalBytesUsed sums the live traffic counters.
func (u HotspotUser) TotalBytesUsed() int64 { return u.BytesIn + u.BytesOut }

// AccessCard is one generated (username, password, quota, validity) tuple
// intended for print distribution. Immutable after creation.
type AccessCard struct {
	Username     string
	Password     string
	Profile      string
	DataQuota    string
	TimeQuota    string
	ValidityDays int
	CreatedAt    time.Time
}

// Neighbor is a device discovered on the router's network segment.
type Neighbor struct {
	IPAddress  string
	MACAddress string
	Identity   string
	Platform   string
}

// PingOutcome is the result of a device-side ping run.
type PingOutcome struct {
	Target      string
	Sent        int
	Received    int
	LossPercent float64
	MinMs       float64
	AvgMs       float64
	MaxMs       float64
	Log         string
}

// TracerouteHop is one hop in a traceroute. Address is "*" on timeout.
type TracerouteHop struct {
	Index   int
	Address string
	Time    string
}

// TracerouteOutcome is the ordered hop list for one traceroute run.
type TracerouteOutcome struct {
	Target string
	Hops   []TracerouteHop
	Log    string
}

// Level grades one diagnostic verdict.
type Level string

const (
	LevelOK      Level = "ok"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Worse reports whether l is more severe than other.
func (l Level) Worse(other Level) bool {
	return rank(l) > rank(other)
}

func rank(l Level) int {
	switch l {
	case LevelError:
		return 2
	case LevelWarning:
		return 1
	default:
		return 0
	}
}

// Verdict is one subsystem's diagnostic result.
type Verdict struct {
	Subsystem string
	Level     Level
	Message   string
}

// HealthReport aggregates the per-subsystem verdicts.
type HealthReport struct {
	CPU          Verdict
	Memory       Verdict
	Interfaces   Verdict
	Overall      Level
	Remediations []string
}

// OperationLog is one audit entry for a user-triggered operation.
type OperationLog struct {
	ID         int64
	ChatUserID int64
	Kind       string
	Details    string
	Success    bool
	Error      string
	CreatedAt  time.Time
}

// SavedDevice is a persisted endpoint reference (password stored sealed).
type SavedDevice struct {
	ID         int64
	ChatUserID int64
	Name       string
	Host       string
	Port       int
	Username   string
	UseTLS     bool
	CreatedAt  time.Time
}
