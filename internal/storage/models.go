package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Member is the membership record of one username
type Member struct {
	Join     Timestamp  `json:"join"`
	LastPaid *Timestamp `json:"last_paid,omitempty"`
	Wallet   string     `json:"wallet,omitempty"`
	UserID   *int64     `json:"user_id,omitempty"`
}

// LastActive returns the time the TTL is measured from: the last payment,
// or the join time for members that never paid.
func (m Member) LastActive() time.Time {
	if m.LastPaid != nil && !m.LastPaid.IsZero() {
		return m.LastPaid.Time
	}
	return m.Join.Time
}

// ExpiresAt returns last payment + ttl. ok is false when the member never paid.
func (m Member) ExpiresAt(ttl time.Duration) (time.Time, bool) {
	if m.LastPaid == nil || m.LastPaid.IsZero() {
		return time.Time{}, false
	}
	return m.LastPaid.Add(ttl), true
}

// Expired is a member removed by a sweep
type Expired struct {
	Username string
	Member   Member
}

// Stats is a point-in-time count of the store contents
type Stats struct {
	Members int
	Wallets int
	Seen    int
}

// snapshot is the persisted document. It is rewritten whole on every save.
type snapshot struct {
	Users     map[string]*Member `json:"users"`
	WalletMap map[string]string  `json:"wallet_map"`
	SeenTx    []string           `json:"seen_tx"`
}

// legacyLayout is the naive UTC layout earlier data files were written with.
const legacyLayout = "2006-01-02T15:04:05"

// Timestamp is a UTC instant stored as RFC 3339. Naive timestamps without a
// zone are read as UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp returns t truncated to microseconds in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Microsecond)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	parsed, err := time.ParseInLocation(legacyLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", strconv.Quote(s), err)
	}
	t.Time = parsed
	return nil
}

// Username returns the store key for a Telegram sender: "@" plus the
// lower-cased handle, or the numeric id when the sender has no handle.
func Username(handle string, userID int64) string {
	if h := NormalizeHandle(handle); h != "" {
		return "@" + h
	}
	return strconv.FormatInt(userID, 10)
}

// NormalizeHandle lower-cases a handle and strips leading "@".
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(handle), "@"))
}

// normalizeKey maps a stored username key to the form Username produces.
// Earlier data files kept the handle's original case.
func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if _, err := strconv.ParseInt(key, 10, 64); err == nil {
		return key
	}
	if h := NormalizeHandle(key); h != "" {
		return "@" + h
	}
	return key
}

// merge folds src into m: the earliest join and the latest payment win,
// wallet and user id come from whichever record was active last.
func (m *Member) merge(src *Member) {
	newer := src.LastActive().After(m.LastActive())

	if m.Join.IsZero() || (!src.Join.IsZero() && src.Join.Before(m.Join.Time)) {
		m.Join = src.Join
	}
	if src.LastPaid != nil && !src.LastPaid.IsZero() &&
		(m.LastPaid == nil || src.LastPaid.After(m.LastPaid.Time)) {
		m.LastPaid = src.LastPaid
	}
	if src.Wallet != "" && (m.Wallet == "" || newer) {
		m.Wallet = src.Wallet
	}
	if src.UserID != nil && (m.UserID == nil || newer) {
		m.UserID = src.UserID
	}
}
