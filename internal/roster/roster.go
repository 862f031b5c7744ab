// Package roster defines the membership-directory collaborator contract.
//
// Trip membership is owned by the surrounding application; the budget
// engine only ever reads it. The directory is pulled on every operation
// rather than cached, so the engine can infer past members (users present
// in a budget but absent from the roster) without holding duplicated state.
package roster

import (
	"context"
	"sort"
	"sync"

	"github.com/voyago/tripledger/internal/errs"
)

// Member is one entry of a trip's current roster.
type Member struct {
	UserID   string
	Name     string
	Username string
}

// Directory answers "who is currently on this trip".
type Directory interface {
	// GetCurrentMembers returns the trip's current members. A user missing
	// from the result but present in the budget is a past member.
	GetCurrentMembers(ctx context.Context, tripID string) ([]Member, error)
}

// Static is an in-memory Directory for tests and single-process
// deployments. Safe for concurrent use.
type Static struct {
	mu    sync.RWMutex
	trips map[string][]Member
}

var _ Directory = (*Static)(nil)

// NewStatic returns an empty in-memory directory.
func NewStatic() *Static {
	return &Static{trips: make(map[string][]Member)}
}

// SetMembers replaces the roster for tripID.
func (s *Static) SetMembers(tripID string, members []Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]Member, len(members))
	copy(copied, members)
	sort.Slice(copied, func(i, j int) bool { return copied[i].UserID < copied[j].UserID })
	s.trips[tripID] = copied
}

// RemoveMember drops userID from tripID's roster, simulating a departure.
func (s *Static) RemoveMember(tripID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.trips[tripID]
	kept := members[:0]
	for _, m := range members {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	s.trips[tripID] = kept
}

// GetCurrentMembers implements Directory.
func (s *Static) GetCurrentMembers(_ context.Context, tripID string) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members, ok := s.trips[tripID]
	if !ok {
		return nil, errs.NotFoundf("trip %q has no roster", tripID)
	}
	out := make([]Member, len(members))
	copy(out, members)
	return out, nil
}
