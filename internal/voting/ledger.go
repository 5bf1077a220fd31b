package voting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/citifix/backend/internal/reports"
)

var ErrUnknownReport = errors.New("unknown report")

type State int

const (
	NotVoted State = iota
	OptimisticallyVoted
	Voted
)

func (s State) String() string {
	switch s {
	case OptimisticallyVoted:
		return "optimistic"
	case Voted:
		return "voted"
	default:
		return "not_voted"
	}
}

// Txn records what a vote changed so a failed confirmation can be undone.
type Txn struct {
	ReportID   string
	PriorVotes int
}

// Confirmer persists a vote with the backend.
type Confirmer interface {
	ConfirmVote(ctx context.Context, reportID string) error
}

type ConfirmerFunc func(ctx context.Context, reportID string) error

func (f ConfirmerFunc) ConfirmVote(ctx context.Context, reportID string) error { return f(ctx, reportID) }

// Ledger tracks which reports a session has voted for. The count is raised
// before the backend confirms and restored if it refuses.
type Ledger struct {
	store     *reports.Store
	confirmer Confirmer

	mu     sync.Mutex
	states map[string]State
	txns   map[string]Txn
}

func NewLedger(store *reports.Store, confirmer Confirmer) *Ledger {
	return &Ledger{
		store:     store,
		confirmer: confirmer,
		states:    map[string]State{},
		txns:      map[string]Txn{},
	}
}

// Vote is a no-op for a report already voted or still being confirmed.
func (l *Ledger) Vote(ctx context.Context, reportID string) error {
	l.mu.Lock()
	if l.states[reportID] != NotVoted {
		l.mu.Unlock()
		return nil
	}
	r, ok := l.store.Get(reportID)
	if !ok {
		l.mu.Unlock()
		return ErrUnknownReport
	}
	if _, err := l.store.AdjustVotes(reportID, 1); err != nil {
		l.mu.Unlock()
		return ErrUnknownReport
	}
	l.txns[reportID] = Txn{ReportID: reportID, PriorVotes: r.Votes}
	l.states[reportID] = OptimisticallyVoted
	l.mu.Unlock()

	var err error
	if l.confirmer != nil {
		err = l.confirmer.ConfirmVote(ctx, reportID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	txn := l.txns[reportID]
	delete(l.txns, reportID)
	if err != nil {
		_ = l.store.SetVotes(reportID, txn.PriorVotes)
		delete(l.states, reportID)
		return fmt.Errorf("confirm vote: %w", err)
	}
	l.states[reportID] = Voted
	return nil
}

func (l *Ledger) State(reportID string) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states[reportID]
}

// HasVoted is true once a vote was recorded, confirmed or not.
func (l *Ledger) HasVoted(reportID string) bool {
	return l.State(reportID) != NotVoted
}

func (l *Ledger) Voted() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.states))
	for id := range l.states {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Pending returns the transactions still waiting for confirmation.
func (l *Ledger) Pending() []Txn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Txn, 0, len(l.txns))
	for _, t := range l.txns {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportID < out[j].ReportID })
	return out
}
