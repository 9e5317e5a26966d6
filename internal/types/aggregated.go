package types

import (
	"fmt"
	"time"

	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
)

// MaxAggregatedLength caps the number of member activities retained on a
// single aggregated activity. Beyond the cap the oldest members are
// dropped and only counted through MinimizedCount.
const MaxAggregatedLength = 15

// AggregatedActivity is a set of activities sharing a group key, plus
// recency and read-state metadata. It is either hydrated (Activities
// holds the full members) or dehydrated (ActivityIDs holds references
// only). Members are kept most-recent-first.
type AggregatedActivity struct {
	Group      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SeenAt     *time.Time
	ReadAt     *time.Time
	Activities []*Activity

	// ActivityIDs carries the member references while dehydrated.
	ActivityIDs []string
	// MinimizedCount is the total logical member count once the member
	// list has been truncated or dehydrated. Zero means the member list
	// is complete.
	MinimizedCount int
	Dehydrated     bool

	// raw is the stored timeline representation this instance was decoded
	// from, kept so removals target the exact persisted bytes.
	raw []byte
}

func NewAggregatedActivity(group string) *AggregatedActivity {
	return &AggregatedActivity{Group: group}
}

// SerializationID mirrors Activity.SerializationID for ranked storage:
// the group's recency expressed as epoch millis.
func (g *AggregatedActivity) SerializationID() string {
	return fmt.Sprintf("%013d", g.UpdatedAt.UnixMilli())
}

func (g *AggregatedActivity) Score() float64 {
	return float64(g.UpdatedAt.UnixMilli())
}

// ActivityCount is the total logical member count, including members
// dropped by minimization and members missing after partial hydration.
func (g *AggregatedActivity) ActivityCount() int {
	n := len(g.Activities)
	if g.Dehydrated {
		n = len(g.ActivityIDs)
	}
	if g.MinimizedCount > n {
		return g.MinimizedCount
	}
	return n
}

// MemberIDs returns the ordered member serialization ids, working on both
// hydrated and dehydrated instances.
func (g *AggregatedActivity) MemberIDs() []string {
	if g.Dehydrated {
		out := make([]string, len(g.ActivityIDs))
		copy(out, g.ActivityIDs)
		return out
	}
	out := make([]string, 0, len(g.Activities))
	for _, a := range g.Activities {
		out = append(out, a.SerializationID())
	}
	return out
}

func (g *AggregatedActivity) ContainsID(serializationID string) bool {
	for _, id := range g.MemberIDs() {
		if id == serializationID {
			return true
		}
	}
	return false
}

// Append adds a member activity, keeping most-recent-first order and the
// minimization cap. Duplicate members are rejected.
func (g *AggregatedActivity) Append(a *Activity) error {
	if g.Dehydrated {
		return fmt.Errorf("%w: cannot append to a dehydrated aggregate", pkgerrors.ErrInvalidArgument)
	}
	id := a.SerializationID()
	if g.ContainsID(id) {
		return pkgerrors.ErrDuplicateActivity
	}

	total := g.ActivityCount() + 1

	// insert keeping descending serialization id order
	pos := len(g.Activities)
	for i, member := range g.Activities {
		if id > member.SerializationID() {
			pos = i
			break
		}
	}
	g.Activities = append(g.Activities, nil)
	copy(g.Activities[pos+1:], g.Activities[pos:])
	g.Activities[pos] = a

	if g.CreatedAt.IsZero() || a.Time.Before(g.CreatedAt) {
		g.CreatedAt = a.Time
	}
	if a.Time.After(g.UpdatedAt) {
		g.UpdatedAt = a.Time
	}

	if len(g.Activities) > MaxAggregatedLength {
		g.Activities = g.Activities[:MaxAggregatedLength]
		g.MinimizedCount = total
	} else if g.MinimizedCount > 0 {
		g.MinimizedCount = total
	}
	return nil
}

// Remove drops a member activity. Removing the last member is refused;
// callers delete the whole aggregate instead.
func (g *AggregatedActivity) Remove(serializationID string) error {
	if g.Dehydrated {
		return fmt.Errorf("%w: cannot remove from a dehydrated aggregate", pkgerrors.ErrInvalidArgument)
	}
	if !g.ContainsID(serializationID) {
		return pkgerrors.ErrActivityNotFound
	}
	if len(g.Activities) == 1 {
		return pkgerrors.ErrEmptyAggregate
	}
	total := g.ActivityCount() - 1
	kept := g.Activities[:0]
	for _, a := range g.Activities {
		if a.SerializationID() != serializationID {
			kept = append(kept, a)
		}
	}
	g.Activities = kept
	g.UpdatedAt = g.Activities[0].Time
	if g.MinimizedCount > 0 {
		g.MinimizedCount = total
	}
	return nil
}

// Dehydrate returns a dehydrated copy that stores member references only.
// MinimizedCount always records the total count so partially hydrated
// reads can tell something is missing.
func (g *AggregatedActivity) Dehydrate() *AggregatedActivity {
	out := g.Clone()
	out.ActivityIDs = g.MemberIDs()
	out.MinimizedCount = g.ActivityCount()
	out.Activities = nil
	out.Dehydrated = true
	return out
}

// Hydrate attaches the given activities (keyed by serialization id) in
// member order. Ids absent from the lookup are silently omitted; the
// hydrated member count may then be below ActivityCount.
func (g *AggregatedActivity) Hydrate(lookup map[string]*Activity) {
	if !g.Dehydrated {
		return
	}
	g.Activities = g.Activities[:0]
	for _, id := range g.ActivityIDs {
		if a, ok := lookup[id]; ok {
			g.Activities = append(g.Activities, a)
		}
	}
	g.ActivityIDs = nil
	g.Dehydrated = false
}

func (g *AggregatedActivity) IsSeen() bool {
	return g.SeenAt != nil && !g.SeenAt.Before(g.UpdatedAt)
}

func (g *AggregatedActivity) MarkSeen() {
	now := time.Now().UTC()
	g.SeenAt = &now
}

func (g *AggregatedActivity) IsRead() bool {
	return g.ReadAt != nil && !g.ReadAt.Before(g.UpdatedAt)
}

func (g *AggregatedActivity) MarkRead() {
	now := time.Now().UTC()
	g.ReadAt = &now
}

// Clone makes a deep copy. Member activities are immutable and shared.
func (g *AggregatedActivity) Clone() *AggregatedActivity {
	out := &AggregatedActivity{
		Group:          g.Group,
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
		MinimizedCount: g.MinimizedCount,
		Dehydrated:     g.Dehydrated,
	}
	if g.SeenAt != nil {
		t := *g.SeenAt
		out.SeenAt = &t
	}
	if g.ReadAt != nil {
		t := *g.ReadAt
		out.ReadAt = &t
	}
	out.Activities = append([]*Activity(nil), g.Activities...)
	out.ActivityIDs = append([]string(nil), g.ActivityIDs...)
	out.raw = append([]byte(nil), g.raw...)
	return out
}

// Equals reports whether two aggregates carry the same members and
// derived state. Used by merge to suppress no-op rewrites.
func (g *AggregatedActivity) Equals(other *AggregatedActivity) bool {
	if other == nil {
		return false
	}
	if g.Group != other.Group || g.MinimizedCount != other.MinimizedCount {
		return false
	}
	if !g.CreatedAt.Equal(other.CreatedAt) || !g.UpdatedAt.Equal(other.UpdatedAt) {
		return false
	}
	if !equalTimePtr(g.SeenAt, other.SeenAt) || !equalTimePtr(g.ReadAt, other.ReadAt) {
		return false
	}
	a, b := g.MemberIDs(), other.MemberIDs()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SetRaw records the persisted timeline bytes this aggregate was decoded
// from. Raw returns them, or nil for instances never loaded from storage.
func (g *AggregatedActivity) SetRaw(raw []byte) { g.raw = raw }

func (g *AggregatedActivity) Raw() []byte { return g.raw }

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
