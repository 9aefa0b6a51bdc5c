package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
)

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// Store owns all membership state. Every mutation and the save that follows
// it run under one mutex, so the scanner, the command handler and the
// sweeper observe a single total order of changes.
type Store struct {
	mu        sync.Mutex
	backend   Backend
	seenLimit int
	closed    bool

	users   map[string]*Member
	wallets map[string]string
	seen    []string
	seenIdx map[string]struct{}
}

// Open loads the document from backend. Username keys are normalized and
// records that collide after normalization are merged. seenLimit caps the number of
// remembered transaction signatures (oldest dropped first); 0 disables the cap.
func Open(backend Backend, seenLimit int) (*Store, error) {
	s := &Store{
		backend:   backend,
		seenLimit: seenLimit,
		users:     make(map[string]*Member),
		wallets:   make(map[string]string),
		seenIdx:   make(map[string]struct{}),
	}

	data, err := backend.Load()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return s, nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	for name, m := range snap.Users {
		if m == nil {
			m = &Member{}
		}
		key := normalizeKey(name)
		if existing, ok := s.users[key]; ok {
			existing.merge(m)
			continue
		}
		s.users[key] = m
	}
	for addr, name := range snap.WalletMap {
		s.wallets[addr] = normalizeKey(name)
	}
	for _, sig := range snap.SeenTx {
		s.addSeenLocked(sig)
	}

	return s, nil
}

// Save writes the current state. Used once at startup so the data file exists.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// Close waits for any in-flight write and closes the backend
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.backend.Close()
}

// --- Members ---

// Member returns a copy of the record for username
func (s *Store) Member(username string) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.users[username]
	if !ok {
		return Member{}, ErrNotFound
	}
	return *m, nil
}

// Register records first contact from a Telegram user. The join time is set
// only if absent. A non-empty wallet is linked to the member and mapped to
// username, replacing any previous owner of that address.
func (s *Store) Register(username string, userID int64, wallet string, now time.Time) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.memberLocked(username, now)
	id := userID
	m.UserID = &id
	if wallet != "" {
		m.Wallet = wallet
		s.wallets[wallet] = username
	}

	return *m, s.persistLocked()
}

// RecordPayment marks a qualifying payment by wallet for username. The record
// is created if it vanished since the wallet was mapped.
func (s *Store) RecordPayment(username, wallet string, now time.Time) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.memberLocked(username, now)
	paid := NewTimestamp(now)
	if m.LastPaid == nil || paid.After(m.LastPaid.Time) {
		m.LastPaid = &paid
	}
	m.Wallet = wallet

	return *m, s.persistLocked()
}

// memberLocked returns the record for username, creating it with join = now.
func (s *Store) memberLocked(username string, now time.Time) *Member {
	m, ok := s.users[username]
	if !ok {
		m = &Member{}
		s.users[username] = m
	}
	if m.Join.IsZero() {
		m.Join = NewTimestamp(now)
	}
	return m
}

// UsernameForWallet resolves a payer address to the username that claimed it
func (s *Store) UsernameForWallet(wallet string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.wallets[wallet]
	return name, ok
}

// ExpireStale deletes every member whose last activity is more than ttl
// before now, unless exempt reports true for the username. Wallet mappings
// pointing at removed usernames go with them. The store is saved once, and
// only when something was removed.
func (s *Store) ExpireStale(now time.Time, ttl time.Duration, exempt func(username string) bool) ([]Expired, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []Expired
	for name, m := range s.users {
		if exempt != nil && exempt(name) {
			continue
		}
		last := m.LastActive()
		if last.IsZero() {
			continue
		}
		if now.Sub(last) > ttl {
			expired = append(expired, Expired{Username: name, Member: *m})
		}
	}

	if len(expired) == 0 {
		return nil, nil
	}

	names := lo.Map(expired, func(e Expired, _ int) string { return e.Username })
	for _, name := range names {
		delete(s.users, name)
	}
	s.wallets = lo.OmitByValues(s.wallets, names)

	return expired, s.persistLocked()
}

// --- Seen transactions ---

// IsSeen reports whether signature was already processed
func (s *Store) IsSeen(signature string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.seenIdx[signature]
	return ok
}

// MarkSeen records signature as processed, returns true if it was new.
// The store is saved only for new signatures.
func (s *Store) MarkSeen(signature string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seenIdx[signature]; ok {
		return false, nil
	}
	s.addSeenLocked(signature)
	return true, s.persistLocked()
}

func (s *Store) addSeenLocked(signature string) {
	if _, ok := s.seenIdx[signature]; ok || signature == "" {
		return
	}
	s.seen = append(s.seen, signature)
	s.seenIdx[signature] = struct{}{}

	if s.seenLimit > 0 && len(s.seen) > s.seenLimit {
		drop := len(s.seen) - s.seenLimit
		for _, old := range s.seen[:drop] {
			delete(s.seenIdx, old)
		}
		s.seen = append([]string(nil), s.seen[drop:]...)
	}
}

// Stats returns the current member, wallet and seen counts
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Members: len(s.users),
		Wallets: len(s.wallets),
		Seen:    len(s.seen),
	}
}

func (s *Store) persistLocked() error {
	if s.closed {
		return ErrClosed
	}

	seen := s.seen
	if seen == nil {
		seen = []string{}
	}
	data, err := json.MarshalIndent(snapshot{
		Users:     s.users,
		WalletMap: s.wallets,
		SeenTx:    seen,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	return s.backend.Save(data)
}
