package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime TCP connections accepted
	ActiveConnections atomic.Int64 // connections currently in handshake or session
	LoginsAccepted    atomic.Int64 // logins that produced a session
	LoginsRejected    atomic.Int64 // logins refused with a status byte
	Registrations     atomic.Int64 // accounts created over the wire
	RegistrationsFail atomic.Int64 // registrations refused or failed
	Disconnects       atomic.Int64 // sessions that ended
	ProtocolErrors    atomic.Int64 // unknown request bytes and oversized lines

	// Chat counters
	GlobalMessages  atomic.Int64 // global chat lines relayed
	PrivateMessages atomic.Int64 // private messages relayed
	WriteFailures   atomic.Int64 // per-recipient delivery failures

	// Command counters
	Commands         atomic.Int64 // commands dispatched
	Kicks            atomic.Int64 // users kicked
	Bans             atomic.Int64 // users banned
	Unbans           atomic.Int64 // users un-banned
	Deletes          atomic.Int64 // accounts deleted
	PrivilegeChanges atomic.Int64 // promotions and demotions
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	TotalConnections  int64 `json:"total_connections"`
	ActiveConnections int64 `json:"active_connections"`
	LoginsAccepted    int64 `json:"logins_accepted"`
	LoginsRejected    int64 `json:"logins_rejected"`
	Registrations     int64 `json:"registrations"`
	RegistrationsFail int64 `json:"registrations_failed"`
	Disconnects       int64 `json:"disconnects"`
	ProtocolErrors    int64 `json:"protocol_errors"`

	GlobalMessages  int64 `json:"global_messages"`
	PrivateMessages int64 `json:"private_messages"`
	WriteFailures   int64 `json:"write_failures"`

	Commands         int64 `json:"commands"`
	Kicks            int64 `json:"kicks"`
	Bans             int64 `json:"bans"`
	Unbans           int64 `json:"unbans"`
	Deletes          int64 `json:"deletes"`
	PrivilegeChanges int64 `json:"privilege_changes"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		TotalConnections:  m.TotalConnections.Load(),
		ActiveConnections: m.ActiveConnections.Load(),
		LoginsAccepted:    m.LoginsAccepted.Load(),
		LoginsRejected:    m.LoginsRejected.Load(),
		Registrations:     m.Registrations.Load(),
		RegistrationsFail: m.RegistrationsFail.Load(),
		Disconnects:       m.Disconnects.Load(),
		ProtocolErrors:    m.ProtocolErrors.Load(),
		GlobalMessages:    m.GlobalMessages.Load(),
		PrivateMessages:   m.PrivateMessages.Load(),
		WriteFailures:     m.WriteFailures.Load(),
		Commands:          m.Commands.Load(),
		Kicks:             m.Kicks.Load(),
		Bans:              m.Bans.Load(),
		Unbans:            m.Unbans.Load(),
		Deletes:           m.Deletes.Load(),
		PrivilegeChanges:  m.PrivilegeChanges.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary(sessions int) {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"sessions", sessions,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"global_msgs", s.GlobalMessages,
		"private_msgs", s.PrivateMessages,
		"commands", s.Commands,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, sessions func() int, done <-chan struct{}) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary(sessions())
			}
		}
	}()
}
