// Package device owns one authenticated RouterOS API connection per session
// and maps high-level intents onto device RPC calls. Every public operation
// has a total contract: transport and protocol failures are logged and
// reduced to zero values, never propagated.
package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotspotctl/internal/model"
)

// Session holds the control-plane connection to one router. Operations for
// the same session are serialized internally; the underlying transport
// handle is not safe for concurrent use.
type Session struct {
	endpoint model.Endpoint
	dial     Dialer
	log      zerolog.Logger

	mu   sync.Mutex
	conn Conn
}

// Option customizes a Session.
type Option func(*Session)

// WithDialer overrides the transport dialer (used in tests).
func WithDialer(d Dialer) Option {
	return func(s *Session) { s.dial = d }
}

// WithLogger overrides the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// New builds a disconnected session for the endpoint.
func New(ep model.Endpoint, opts ...Option) *Session {
	s := &Session{
		endpoint: ep,
		dial:     DialRouterOS,
		log:      log.With().Str("device", ep.Addr()).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Endpoint returns the endpoint this session was built from.
func (s *Session) Endpoint() model.Endpoint { return s.endpoint }

// Connect dials the router and verifies the connection with an identity
// query. Returns false on any failure; the session stays disconnected.
// Connecting an already-connected session is a no-op success.
func (s *Session) Connect(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return true
	}

	conn, err := s.dial(ctx, s.endpoint)
	if err != nil {
		s.log.Error().Err(err).Msg("connect failed")
		return false
	}

	if _, err := conn.Run(ctx, "/system/identity/print"); err != nil {
		_ = conn.Close()
		s.log.Error().Err(err).Msg("identity check failed")
		return false
	}

	s.conn = conn
	s.log.Info().Msg("connected")
	return true
}

// Disconnect releases the transport handle. Safe to call repeatedly.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close failed")
	}
	s.conn = nil
	s.log.Info().Msg("disconnected")
}

// Connected reports the connection state without touching the transport.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// call runs one RPC sentence while holding the session lock. A nil reply
// with ok=false means either "not connected" or a failed call; both leave
// the prior connectivity state unchanged.
func (s *Session) call(ctx context.Context, sentence ...string) ([]map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, false
	}

	reply, err := s.conn.Run(ctx, sentence...)
	if err != nil {
		s.log.Error().Err(err).Str("command", sentence[0]).Msg("device call failed")
		return nil, false
	}

	out := make([]map[string]string, 0, len(reply.Re))
	for _, re := range reply.Re {
		out = append(out, re.Map)
	}
	return out, true
}

// SystemInfo fetches and normalizes the resource snapshot.
func (s *Session) SystemInfo(ctx context.Context) (model.SystemSnapshot, bool) {
	res, ok := s.call(ctx, "/system/resource/print")
	if !ok || len(res) == 0 {
		return model.SystemSnapshot{}, false
	}

	m := res[0]
	return model.SystemSnapshot{
		CPULoadPercent:  fieldFloat(m, "cpu-load", "%"),
		Voltage:         fieldFloat(m, "voltage", "V"),
		TemperatureC:    fieldInt(m, "cpu-temperature", "C"),
		Uptime:          m["uptime"],
		MemoryTotal:     fieldInt64(m, "total-memory"),
		MemoryFree:      fieldInt64(m, "free-memory"),
		BoardName:       m["board-name"],
		FirmwareVersion: m["version"],
		Architecture:    m["architecture-name"],
		BuildTime:       m["build-time"],
	}, true
}

// Interfaces lists router interfaces with traffic counters.
func (s *Session) Interfaces(ctx context.Context) []model.InterfaceStat {
	res, ok := s.call(ctx, "/interface/print", "=stats=")
	if !ok {
		return nil
	}

	out := make([]model.InterfaceStat, 0, len(res))
	for _, m := range res {
		out = append(out, model.InterfaceStat{
			Name:      m["name"],
			Type:      m["type"],
			Running:   fieldBool(m, "running"),
			Disabled:  fieldBool(m, "disabled"),
			RxBytes:   fieldInt64(m, "rx-byte"),
			TxBytes:   fieldInt64(m, "tx-byte"),
			RxPackets: fieldInt64(m, "rx-packet"),
			TxPackets: fieldInt64(m, "tx-packet"),
			RxErrors:  fieldInt64(m, "rx-error"),
			TxErrors:  fieldInt64(m, "tx-error"),
		})
	}
	return out
}

// HotspotUsers lists stored captive-portal user records.
func (s *Session) HotspotUsers(ctx context.Context) []model.HotspotUser {
	res, ok := s.call(ctx, "/ip/hotspot/user/print")
	if !ok {
		return nil
	}

	out := make([]model.HotspotUser, 0, len(res))
	for _, m := range res {
		u := model.HotspotUser{
			Name:            m["name"],
			Password:        m["password"],
			Profile:         m["profile"],
			Server:          m["server"],
			Disabled:        fieldBool(m, "disabled"),
			Comment:         m["comment"],
			LimitUptime:     m["limit-uptime"],
			LimitBytesIn:    m["limit-bytes-in"],
			LimitBytesOut:   m["limit-bytes-out"],
			LimitBytesTotal: m["limit-bytes-total"],
		}
		if u.Profile == "" {
			u.Profile = "default"
		}
		if u.Server == "" {
			u.Server = "all"
		}
		out = append(out, u)
	}
	return out
}

// ActiveHotspotUsers lists currently connected hotspot sessions.
func (s *Session) ActiveHotspotUsers(ctx context.Context) []model.HotspotUser {
	res, ok := s.call(ctx, "/ip/hotspot/active/print")
	if !ok {
		return nil
	}

	out := make([]model.HotspotUser, 0, len(res))
	for _, m := range res {
		out = append(out, model.HotspotUser{
			Name:       m["user"],
			Server:     m["server"],
			IPAddress:  m["address"],
			MACAddress: m["mac-address"],
			Uptime:     m["uptime"],
			BytesIn:    fieldInt64(m, "bytes-in"),
			BytesOut:   fieldInt64(m, "bytes-out"),
			PacketsIn:  fieldInt64(m, "packets-in"),
			PacketsOut: fieldInt64(m, "packets-out"),
		})
	}
	return out
}

// AddHotspotUser creates one captive-portal user. Empty limit fields are
// omitted from the wire sentence so device defaults stay untouched.
func (s *Session) AddHotspotUser(ctx context.Context, u model.HotspotUser) bool {
	disabled := "no"
	if u.Disabled {
		disabled = "yes"
	}
	sentence := []string{
		"/ip/hotspot/user/add",
		"=name=" + u.Name,
		"=password=" + u.Password,
		"=profile=" + u.Profile,
		"=server=" + u.Server,
		"=disabled=" + disabled,
		"=comment=" + u.Comment,
	}
	if u.LimitUptime != "" {
		sentence = append(sentence, "=limit-uptime="+u.LimitUptime)
	}
	if u.LimitBytesIn != "" {
		sentence = append(sentence, "=limit-bytes-in="+u.LimitBytesIn)
	}
	if u.LimitBytesOut != "" {
		sentence = append(sentence, "=limit-bytes-out="+u.LimitBytesOut)
	}
	if u.LimitBytesTotal != "" {
		sentence = append(sentence, "=limit-bytes-total="+u.LimitBytesTotal)
	}

	if _, ok := s.call(ctx, sentence...); !ok {
		return false
	}
	s.log.Info().Str("user", u.Name).Msg("hotspot user added")
	return true
}

// RemoveHotspotUser deletes the named user. Returns false when the user
// does not exist or the call fails.
func (s *Session) RemoveHotspotUser(ctx context.Context, name string) bool {
	res, ok := s.call(ctx, "/ip/hotspot/user/print", "?name="+name)
	if !ok {
		return false
	}
	if len(res) == 0 {
		s.log.Warn().Str("user", name).Msg("hotspot user not found")
		return false
	}

	id := res[0][".id"]
	if _, ok := s.call(ctx, "/ip/hotspot/user/remove", "=.id="+id); !ok {
		return false
	}
	s.log.Info().Str("user", name).Msg("hotspot user removed")
	return true
}

// Ping runs a device-side ping. A probe counts as received iff the reply
// sentence carries a round-trip-time field; min/avg/max cover received
// samples only and report 0 when everything was lost.
func (s *Session) Ping(ctx context.Context, target string, count int) (model.PingOutcome, bool) {
	if count <= 0 {
		count = 4
	}
	res, ok := s.call(ctx, "/ping", "=address="+target, "=count="+strconv.Itoa(count))
	if !ok {
		return model.PingOutcome{}, false
	}

	var times []float64
	var lines []string
	lines = append(lines, fmt.Sprintf("PING %s:", target))
	for i, m := range res {
		if ms, ok := parseMillis(m["time"]); ok {
			times = append(times, ms)
			lines = append(lines, fmt.Sprintf("Reply from %s: time=%s", target, m["time"]))
		} else {
			lines = append(lines, fmt.Sprintf("Request timeout for icmp_seq %d", i+1))
		}
	}

	out := model.PingOutcome{
		Target:   target,
		Sent:     count,
		Received: len(times),
	}
	out.LossPercent = float64(out.Sent-out.Received) / float64(out.Sent) * 100
	if len(times) > 0 {
		minMs, maxMs, sum := times[0], times[0], 0.0
		for _, t := range times {
			if t < minMs {
				minMs = t
			}
			if t > maxMs {
				maxMs = t
			}
			sum += t
		}
		out.MinMs = minMs
		out.MaxMs = maxMs
		out.AvgMs = sum / float64(len(times))
	}

	lines = append(lines, "", fmt.Sprintf("--- %s ping statistics ---", target))
	lines = append(lines, fmt.Sprintf("%d packets transmitted, %d received, %.1f%% packet loss",
		out.Sent, out.Received, out.LossPercent))
	if len(times) > 0 {
		lines = append(lines, fmt.Sprintf("round-trip min/avg/max = %.1f/%.1f/%.1f ms",
			out.MinMs, out.AvgMs, out.MaxMs))
	}
	out.Log = strings.Join(lines, "\n")
	return out, true
}

// Traceroute runs a device-side traceroute and returns the ordered hop list.
func (s *Session) Traceroute(ctx context.Context, target string, maxHops int) (model.TracerouteOutcome, bool) {
	if maxHops <= 0 {
		maxHops = 30
	}
	res, ok := s.call(ctx, "/tool/traceroute", "=address="+target, "=count=1",
		"=max-hops="+strconv.Itoa(maxHops))
	if !ok {
		return model.TracerouteOutcome{}, false
	}

	out := model.TracerouteOutcome{Target: target}
	lines := []string{fmt.Sprintf("traceroute to %s, %d hops max", target, maxHops)}
	for i, m := range res {
		if i >= maxHops {
			break
		}
		hop := model.TracerouteHop{Index: i + 1, Address: m["address"], Time: m["time"]}
		if hop.Address == "" {
			hop.Address = "*"
		}
		if hop.Time == "" {
			hop.Time = "timeout"
		}
		out.Hops = append(out.Hops, hop)

		if hop.Address != "*" {
			lines = append(lines, fmt.Sprintf("%2d  %s  %s", hop.Index, hop.Address, hop.Time))
		} else {
			lines = append(lines, fmt.Sprintf("%2d  * * *", hop.Index))
		}
	}
	out.Log = strings.Join(lines, "\n")
	return out, true
}

// Neighbors lists devices seen by the router's neighbor discovery.
func (s *Session) Neighbors(ctx context.Context) []model.Neighbor {
	res, ok := s.call(ctx, "/ip/neighbor/print")
	if !ok {
		return nil
	}

	out := make([]model.Neighbor, 0, len(res))
	for _, m := range res {
		out = append(out, model.Neighbor{
			IPAddress:  m["address"],
			MACAddress: m["mac-address"],
			Identity:   m["identity"],
			Platform:   m["platform"],
		})
	}
	return out
}

// Reboot asks the device to restart. The transport dies with the device;
// callers should drop the session after a successful reboot.
func (s *Session) Reboot(ctx context.Context) bool {
	if _, ok := s.call(ctx, "/system/reboot"); !ok {
		return false
	}
	s.log.Info().Msg("reboot issued")
	return true
}
