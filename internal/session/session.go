// Package session tracks logical client conversations, independent of any
// single TCP connection. A client may drop its socket and later resume the
// same conversation by presenting the session identifier it was issued at
// handshake.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// ClientInfo is optional metadata reported by the client during handshake.
// Used for display only.
type ClientInfo struct {
	Name    string
	Version string
}

// Session is one logical client conversation. All fields are owned by the
// Registry and mutated only under its lock; callers observe state through
// Snapshot copies.
type Session struct {
	ID            string
	ConnectedAt   time.Time
	LastActivity  time.Time
	LastPingAt    time.Time
	LastPongAt    time.Time
	FailedPings   int
	ClientName    string
	ClientVersion string

	inactivity *time.Timer
}

// Snapshot is an immutable copy of session state handed to subscribers
type Snapshot struct {
	ID            string
	ConnectedAt   time.Time
	LastActivity  time.Time
	LastPingAt    time.Time
	LastPongAt    time.Time
	FailedPings   int
	ClientName    string
	ClientVersion string
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:            s.ID,
		ConnectedAt:   s.ConnectedAt,
		LastActivity:  s.LastActivity,
		LastPingAt:    s.LastPingAt,
		LastPongAt:    s.LastPongAt,
		FailedPings:   s.FailedPings,
		ClientName:    s.ClientName,
		ClientVersion: s.ClientVersion,
	}
}

func (s *Session) stopTimers() {
	if s.inactivity != nil {
		s.inactivity.Stop()
		s.inactivity = nil
	}
}

// MintID creates a unique session identifier
func MintID() string {
	timestamp := time.Now().Format("20060102_150405")
	randomBytes := make([]byte, 4)
	_, _ = rand.Read(randomBytes)
	return fmt.Sprintf("vox_%s_%s", timestamp, hex.EncodeToString(randomBytes))
}
