// Package memory is an in-process implementation of the repository interfaces.
//
// Transactions are serialized: Begin blocks until the previous transaction has
// committed or rolled back, and works on a private copy of the committed state.
// That gives the same observable guarantees the ledger relies on from Postgres
// row locks, at table granularity.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/repository"
)

var errNoSQL = errors.New("memory store does not execute SQL")

type state struct {
	players map[uuid.UUID]domain.Player
	fines   map[uuid.UUID]domain.Fine
	presets map[uuid.UUID]domain.FinePreset
	audit   []domain.AuditLog
	outbox  []outboxEntry
	seq     int64
}

type outboxEntry struct {
	row       domain.OutboxRow
	published bool
}

func newState() *state {
	return &state{
		players: map[uuid.UUID]domain.Player{},
		fines:   map[uuid.UUID]domain.Fine{},
		presets: map[uuid.UUID]domain.FinePreset{},
	}
}

func (s *state) clone() *state {
	c := &state{
		players: make(map[uuid.UUID]domain.Player, len(s.players)),
		fines:   make(map[uuid.UUID]domain.Fine, len(s.fines)),
		presets: make(map[uuid.UUID]domain.FinePreset, len(s.presets)),
		audit:   append([]domain.AuditLog(nil), s.audit...),
		outbox:  append([]outboxEntry(nil), s.outbox...),
		seq:     s.seq,
	}
	for k, v := range s.players {
		c.players[k] = v
	}
	for k, v := range s.fines {
		c.fines[k] = v
	}
	for k, v := range s.presets {
		c.presets[k] = v
	}
	return c
}

// Store holds committed state and implements repository.TxBeginner.
type Store struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	committed *state
	failures  map[string]error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{committed: newState(), failures: map[string]error{}}
}

var _ repository.TxBeginner = (*Store)(nil)

func (s *Store) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNoSQL
}

func (s *Store) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errNoSQL
}

func (s *Store) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return errRow{}
}

// Ping satisfies infra.Pinger.
func (s *Store) Ping(context.Context) error { return nil }

// Begin waits for any open transaction to finish and starts a new one.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.txMu.Lock()
	s.mu.RLock()
	snap := s.committed.clone()
	s.mu.RUnlock()
	return &Tx{store: s, state: snap}, nil
}

// FailOn makes the named operation return err until cleared with a nil err.
// Names are "<repo>.<method>", e.g. "audit.Insert".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) failure(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures[op]
}

// view resolves db to the state it should read. The returned func must be called when done.
func (s *Store) view(db repository.DBTX) (*state, func(), error) {
	switch d := db.(type) {
	case *Tx:
		if d.done {
			return nil, nil, pgx.ErrTxClosed
		}
		return d.state, func() {}, nil
	case *Store:
		d.mu.RLock()
		return d.committed, d.mu.RUnlock, nil
	default:
		return nil, nil, fmt.Errorf("memory: unsupported DBTX %T", db)
	}
}

// write runs fn against a transaction's state, or inside an implicit
// single-statement transaction when db is the store itself.
func (s *Store) write(ctx context.Context, db repository.DBTX, fn func(*state) error) error {
	if tx, ok := db.(*Tx); ok {
		if tx.done {
			return pgx.ErrTxClosed
		}
		return fn(tx.state)
	}
	if _, ok := db.(*Store); !ok {
		return fmt.Errorf("memory: unsupported DBTX %T", db)
	}
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx.(*Tx).state); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Tx is a serialized transaction over a private copy of the store.
// Only Commit and Rollback are implemented; the embedded pgx.Tx is nil.
type Tx struct {
	pgx.Tx
	store *Store
	state *state
	done  bool
}

func (t *Tx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	t.store.committed = t.state
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.state = nil
	t.store.txMu.Unlock()
	return nil
}

func asTx(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("memory: unsupported tx %T", tx)
	}
	if t.done {
		return nil, pgx.ErrTxClosed
	}
	return t, nil
}

type errRow struct{}

func (errRow) Scan(...any) error { return errNoSQL }

// AuditCount returns the number of committed audit rows.
func (s *Store) AuditCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.committed.audit)
}

// OutboxCount returns the number of committed outbox rows, published or not.
func (s *Store) OutboxCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.committed.outbox)
}

// SetBalance overwrites a committed player balance, bypassing the ledger.
// It exists to simulate drift in tests.
func (s *Store) SetBalance(id uuid.UUID, balance int64) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.committed.players[id]; ok {
		p.Balance = balance
		s.committed.players[id] = p
	}
}
