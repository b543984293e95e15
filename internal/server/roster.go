// Package server maintains the authoritative in-memory roster of registered
// participants, guarded for concurrent registration, removal, and snapshots.
package server

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ErrDuplicateName is returned by Register when another participant already
// holds the requested display name (case-sensitive exact match).
var ErrDuplicateName = errors.New("name already taken")

// Participant is a registered display name plus its server-assigned id.
// Participants are immutable once created.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Roster is the shared, ordered list of active participants. All access goes
// through its mutex; callers never see the backing slice directly.
type Roster struct {
	mu           sync.Mutex
	participants []Participant
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{
		participants: make([]Participant, 0),
	}
}

// Register creates a participant with a fresh uuid and appends it to the
// roster. It fails with ErrDuplicateName if the name is already present.
// The check and the insert happen under one lock, so two concurrent calls
// with the same name cannot both succeed.
func (r *Roster) Register(name string) (Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, taken := lo.Find(r.participants, func(p Participant) bool {
		return p.Name == name
	})
	if taken {
		return Participant{}, ErrDuplicateName
	}

	participant := Participant{
		ID:   uuid.NewString(),
		Name: name,
	}
	r.participants = append(r.participants, participant)
	return participant, nil
}

// Remove deletes the first participant matching name. Removing a name that is
// not present is a no-op, so repeated exit frames are harmless.
func (r *Roster) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.participants {
		if p.Name == name {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			return
		}
	}
}

// Snapshot returns a copy of the current roster in insertion order. The
// returned slice is owned by the caller; later roster mutations never alias
// into it. An empty roster yields an empty (non-nil) slice so it marshals as
// a JSON array rather than null.
func (r *Roster) Snapshot() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]Participant, len(r.participants))
	copy(snapshot, r.participants)
	return snapshot
}

// Len reports the number of registered participants.
func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}
