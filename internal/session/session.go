// Package session holds the editable state of one open budget period and
// pushes check-state changes to a Store.
//
// Every change is applied to the local snapshot first and then queued for the
// store. Queued jobs run one at a time in submission order. When a job fails
// the session discards its local state, reloads it from the store and drops
// every job that was queued against the discarded state.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"pulpe/internal/calculator"
	"pulpe/internal/cascade"
	apperrors "pulpe/internal/errors"
	"pulpe/internal/display"
	"pulpe/internal/logger"
	"pulpe/internal/models"
)

// DefaultCallTimeout bounds each queued job.
const DefaultCallTimeout = 30 * time.Second

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// Store is the persistence collaborator of a session.
type Store interface {
	LoadSnapshot(ctx context.Context, periodID string) (cascade.Snapshot, error)
	SetEnvelopeChecked(ctx context.Context, envelopeID string, checkedAt *time.Time) error
	SetTransactionChecked(ctx context.Context, transactionID string, checkedAt *time.Time) error
	CreateTransaction(ctx context.Context, tx models.Transaction) (models.Transaction, error)
}

// PendingTransaction is a transaction waiting for its durable id.
type PendingTransaction struct {
	Ref         Ref
	Transaction models.Transaction
}

// View is what a period screen renders.
type View struct {
	Totals calculator.Totals `json:"totals"`
	Items  []display.Item    `json:"items"`
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the time source used to stamp checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithErrorHandler registers a callback receiving every sync failure. The
// callback runs on the queue goroutine and must not block.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Session) { s.onError = fn }
}

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Session) { s.callTimeout = d }
}

// WithLogger overrides the global logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Session) { s.log = l }
}

// Session is the state container of one open period.
type Session struct {
	periodID    string
	store       Store
	now         func() time.Time
	onError     func(error)
	callTimeout time.Duration
	log         *zap.SugaredLogger

	mu         sync.Mutex
	snap       cascade.Snapshot
	pending    []PendingTransaction
	resolved   map[string]string
	generation uint64
	stale      bool
	closed     bool
	tail       <-chan struct{}
}

// Open loads the period from the store and returns a session for it.
func Open(ctx context.Context, periodID string, store Store, opts ...Option) (*Session, error) {
	s := &Session{
		periodID:    periodID,
		store:       store,
		now:         time.Now,
		callTimeout: DefaultCallTimeout,
		log:         logger.Get(),
		resolved:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := store.LoadSnapshot(ctx, periodID)
	if err != nil {
		return nil, err
	}
	s.snap = snap.Clone()

	done := make(chan struct{})
	close(done)
	s.tail = done
	return s, nil
}

// PeriodID returns the id of the period the session edits.
func (s *Session) PeriodID() string { return s.periodID }

// Snapshot returns a copy of the persisted part of the state.
func (s *Session) Snapshot() cascade.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Pending returns the transactions still waiting for a durable id.
func (s *Session) Pending() []PendingTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pending)
}

// View computes totals and ordered display items over the current state,
// pending transactions included.
func (s *Session) View() View {
	s.mu.Lock()
	envelopes := s.snap.Envelopes
	transactions := slices.Clone(s.snap.Transactions)
	for _, p := range s.pending {
		tx := p.Transaction
		tx.ID = p.Ref.String()
		transactions = append(transactions, tx)
	}
	s.mu.Unlock()

	return View{
		Totals: calculator.ComputeTotals(envelopes, transactions),
		Items:  display.Order(envelopes, transactions),
	}
}

// Resolve returns the persisted ref of a reconciled pending ref. ok is false
// while the transaction has not been acknowledged by the store.
func (s *Session) Resolve(ref Ref) (Ref, bool) {
	if !ref.IsPending() {
		return ref, true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.resolved[ref.key]
	if !ok {
		return ref, false
	}
	return Persisted(id), true
}

// ToggleEnvelope checks or unchecks an envelope together with its allocated
// transactions. The local state changes before ToggleEnvelope returns; the
// returned Sync settles once the store has been updated.
//
// The rollover envelope is toggled locally only.
func (s *Session) ToggleEnvelope(id string) (*Sync, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return nil, err
	}

	if models.IsRolloverEnvelopeID(id) {
		return s.toggleRolloverLocked(id)
	}

	res := cascade.ToggleEnvelope(id, s.snap, s.now())
	if res == nil {
		return nil, apperrors.ErrEnvelopeNotFound
	}
	s.snap = res.Snapshot()

	checkedAt := res.Envelopes[envelopePos(res.Envelopes, id)].CheckedAt
	toSync := res.TransactionsToSync
	s.log.Debugw("Envelope toggled", "period_id", s.periodID, "envelope_id", id,
		"checking", res.IsChecking, "cascaded", len(toSync))

	return s.enqueueLocked(true, func(ctx context.Context) error {
		if err := s.store.SetEnvelopeChecked(ctx, id, checkedAt); err != nil {
			return err
		}
		for _, tx := range toSync {
			if err := s.store.SetTransactionChecked(ctx, tx.ID, tx.CheckedAt); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

// ToggleTransaction checks or unchecks a transaction and updates its parent
// envelope when needed. A pending ref that has not been reconciled yet is
// rejected with ErrPendingIdentifier.
func (s *Session) ToggleTransaction(ref Ref) (*Sync, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return nil, err
	}

	if ref.IsZero() {
		return nil, apperrors.ErrTransactionNotFound
	}
	id := ref.ID()
	if ref.IsPending() {
		durable, ok := s.resolved[ref.key]
		if !ok {
			return nil, apperrors.ErrPendingIdentifier
		}
		id = durable
	}

	res := cascade.ToggleTransaction(id, s.snap, s.now())
	if res == nil {
		return nil, apperrors.ErrTransactionNotFound
	}
	s.snap = res.Snapshot()

	txCheckedAt := res.Transactions[transactionPos(res.Transactions, id)].CheckedAt
	var envelopeID string
	var envCheckedAt *time.Time
	if res.ShouldToggleEnvelope {
		envelopeID = *res.EnvelopeID
		envCheckedAt = res.Envelopes[envelopePos(res.Envelopes, envelopeID)].CheckedAt
	}
	s.log.Debugw("Transaction toggled", "period_id", s.periodID, "transaction_id", id,
		"checking", res.IsChecking, "envelope_toggled", res.ShouldToggleEnvelope)

	return s.enqueueLocked(true, func(ctx context.Context) error {
		if err := s.store.SetTransactionChecked(ctx, id, txCheckedAt); err != nil {
			return err
		}
		if envelopeID != "" {
			return s.store.SetEnvelopeChecked(ctx, envelopeID, envCheckedAt)
		}
		return nil
	}), nil
}

// AddTransaction shows tx immediately under a pending ref and queues its
// creation. Once the store answers, the pending entry is replaced by the
// stored transaction in a single state update.
func (s *Session) AddTransaction(tx models.Transaction) (Ref, *Sync, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return Ref{}, nil, err
	}

	tx.PeriodID = s.periodID
	tx.ID = ""
	if tx.EnvelopeID != nil {
		if models.IsRolloverEnvelopeID(*tx.EnvelopeID) {
			return Ref{}, nil, apperrors.ErrRolloverImmutable
		}
		pos := envelopePos(s.snap.Envelopes, *tx.EnvelopeID)
		if pos < 0 {
			return Ref{}, nil, apperrors.ErrEnvelopeOutsidePeriod
		}
		if !tx.Kind.Fits(s.snap.Envelopes[pos].Kind) {
			return Ref{}, nil, apperrors.ErrInvariantViolation
		}
	}

	ref := newPendingRef()
	s.pending = append(s.pending, PendingTransaction{Ref: ref, Transaction: tx})

	queued := s.enqueueLocked(true, func(ctx context.Context) error {
		created, err := s.store.CreateTransaction(ctx, tx)
		if err != nil {
			return err
		}
		s.reconcile(ref, created)
		return nil
	})
	return ref, queued, nil
}

// Reload replaces the local state with the store's once every queued job has
// settled. It clears the stale flag left by a failed rollback. Changes made
// while the reload is queued are discarded with it.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	queued := s.enqueueLocked(false, s.replaceState)
	s.mu.Unlock()
	return queued.Wait(ctx)
}

// Close rejects new operations and waits for queued jobs to settle.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	tail := s.tail
	s.mu.Unlock()
	<-tail
}

func (s *Session) usableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.stale {
		return apperrors.WithMessage(apperrors.ErrSyncFailure, "Period state is out of date and must be reloaded")
	}
	return nil
}

func (s *Session) toggleRolloverLocked(id string) (*Sync, error) {
	pos := envelopePos(s.snap.Envelopes, id)
	if pos < 0 {
		return nil, apperrors.ErrEnvelopeNotFound
	}
	envelopes := slices.Clone(s.snap.Envelopes)
	if envelopes[pos].IsChecked() {
		envelopes[pos].CheckedAt = nil
	} else {
		now := s.now()
		envelopes[pos].CheckedAt = &now
	}
	s.snap = cascade.Snapshot{Envelopes: envelopes, Transactions: s.snap.Transactions}
	return settled(nil), nil
}

// enqueueLocked chains job behind the current tail. Jobs guarded by the
// generation are dropped when a rollback happened after they were queued.
func (s *Session) enqueueLocked(guarded bool, job func(ctx context.Context) error) *Sync {
	gen := s.generation
	prev := s.tail
	result := newSync()
	s.tail = result.done

	go func() {
		<-prev
		result.settle(s.run(gen, guarded, job))
	}()
	return result
}

func (s *Session) run(gen uint64, guarded bool, job func(ctx context.Context) error) error {
	if guarded {
		s.mu.Lock()
		dropped := gen != s.generation
		s.mu.Unlock()
		if dropped {
			return apperrors.WithMessage(apperrors.ErrSyncFailure, "Change discarded after an earlier failure")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()

	err := job(ctx)
	if err == nil {
		return nil
	}
	if !guarded {
		return err
	}

	s.log.Errorw("Sync failed, reloading period", "period_id", s.periodID, "error", err)
	syncErr := apperrors.Wrap(apperrors.ErrSyncFailure, err)
	s.rollback()
	if s.onError != nil {
		s.onError(syncErr)
	}
	return syncErr
}

// rollback discards local state and reloads it. On reload failure the
// session is marked stale until Reload succeeds.
func (s *Session) rollback() {
	ctx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	defer cancel()
	if err := s.replaceState(ctx); err != nil {
		s.log.Errorw("Failed to reload period after sync failure", "period_id", s.periodID, "error", err)
		s.mu.Lock()
		s.generation++
		s.pending = nil
		s.stale = true
		s.mu.Unlock()
	}
}

func (s *Session) replaceState(ctx context.Context) error {
	snap, err := s.store.LoadSnapshot(ctx, s.periodID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.generation++
	s.snap = snap.Clone()
	s.pending = nil
	s.stale = false
	s.mu.Unlock()
	return nil
}

func (s *Session) reconcile(ref Ref, created models.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = slices.DeleteFunc(s.pending, func(p PendingTransaction) bool {
		return p.Ref == ref
	})
	// The store unchecks the parent of an open transaction; mirror it.
	envelopes := s.snap.Envelopes
	if created.EnvelopeID != nil && !created.IsChecked() {
		if pos := envelopePos(envelopes, *created.EnvelopeID); pos >= 0 && envelopes[pos].IsChecked() {
			envelopes = slices.Clone(envelopes)
			envelopes[pos].CheckedAt = nil
		}
	}
	transactions := slices.Clone(s.snap.Transactions)
	s.snap = cascade.Snapshot{
		Envelopes:    envelopes,
		Transactions: append(transactions, created),
	}
	s.resolved[ref.key] = created.ID
}

func envelopePos(envelopes []models.Envelope, id string) int {
	return slices.IndexFunc(envelopes, func(e models.Envelope) bool { return e.ID == id })
}

func transactionPos(transactions []models.Transaction, id string) int {
	return slices.IndexFunc(transactions, func(t models.Transaction) bool { return t.ID == id })
}
