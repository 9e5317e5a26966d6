package aggregate

import (
	"errors"
	"fmt"
	"sort"

	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
	"github.com/yungbote/feedstream-backend/internal/types"
)

// GroupFunc maps an activity onto its aggregation group key.
type GroupFunc func(a *types.Activity) string

// Change pairs the stored representation of a group with its merged
// successor. The old side is what must be removed from the timeline, the
// new side what replaces it.
type Change struct {
	Old *types.AggregatedActivity
	New *types.AggregatedActivity
}

// MergeResult is the diff produced by Merge. Deleted is only ever
// populated by explicit removals, never by merging fresh activities.
type MergeResult struct {
	Added   []*types.AggregatedActivity
	Changed []Change
	Deleted []*types.AggregatedActivity
}

// News returns the post-merge representations: added groups plus the new
// side of every change, ranked most recently updated first.
func (r MergeResult) News() []*types.AggregatedActivity {
	out := append([]*types.AggregatedActivity(nil), r.Added...)
	for _, c := range r.Changed {
		out = append(out, c.New)
	}
	Rank(out)
	return out
}

// Aggregator groups raw activities and merges fresh groups against
// already persisted ones.
type Aggregator interface {
	Group(a *types.Activity) string
	Aggregate(activities []*types.Activity) ([]*types.AggregatedActivity, error)
	Merge(existing, groups []*types.AggregatedActivity) (MergeResult, error)
}

type aggregator struct {
	group GroupFunc
}

// New returns an aggregator driven by the given grouping function.
func New(group GroupFunc) Aggregator {
	return &aggregator{group: group}
}

// NewRecentVerb groups by verb and calendar day, the default for
// aggregated feeds.
func NewRecentVerb() Aggregator {
	return New(func(a *types.Activity) string {
		return fmt.Sprintf("%d-%s", a.VerbID, a.Time.UTC().Format("2006-01-02"))
	})
}

// NewNotification groups by verb, object and calendar day, the default
// for notification feeds.
func NewNotification() Aggregator {
	return New(func(a *types.Activity) string {
		return fmt.Sprintf("%d-%d-%s", a.VerbID, a.ObjectID, a.Time.UTC().Format("2006-01-02"))
	})
}

func (ag *aggregator) Group(a *types.Activity) string {
	return ag.group(a)
}

func (ag *aggregator) Aggregate(activities []*types.Activity) ([]*types.AggregatedActivity, error) {
	byGroup := make(map[string]*types.AggregatedActivity)
	var order []string

	// oldest first, so minimization retains the most recent members
	sorted := append([]*types.Activity(nil), activities...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SerializationID() < sorted[j].SerializationID()
	})

	for _, a := range sorted {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		key := ag.group(a)
		if key == "" {
			return nil, fmt.Errorf("%w: grouping function returned an empty key", pkgerrors.ErrInvalidArgument)
		}
		g, ok := byGroup[key]
		if !ok {
			g = types.NewAggregatedActivity(key)
			byGroup[key] = g
			order = append(order, key)
		}
		if err := g.Append(a); err != nil && !errors.Is(err, pkgerrors.ErrDuplicateActivity) {
			return nil, err
		}
	}

	out := make([]*types.AggregatedActivity, 0, len(order))
	for _, key := range order {
		out = append(out, byGroup[key])
	}
	Rank(out)
	return out, nil
}

func (ag *aggregator) Merge(existing, groups []*types.AggregatedActivity) (MergeResult, error) {
	var res MergeResult

	current := make(map[string]*types.AggregatedActivity, len(existing))
	for _, g := range existing {
		if g.Group == "" {
			return res, fmt.Errorf("%w: stored aggregate without a group key", pkgerrors.ErrInvalidArgument)
		}
		current[g.Group] = g
	}

	for _, g := range groups {
		if g.Group == "" {
			return res, fmt.Errorf("%w: aggregate without a group key", pkgerrors.ErrInvalidArgument)
		}
		cur, ok := current[g.Group]
		if !ok {
			res.Added = append(res.Added, g)
			continue
		}
		next := cur.Clone()
		for _, a := range g.Activities {
			if err := next.Append(a); err != nil && !errors.Is(err, pkgerrors.ErrDuplicateActivity) {
				return MergeResult{}, err
			}
		}
		if !next.Equals(cur) {
			res.Changed = append(res.Changed, Change{Old: cur, New: next})
		}
	}

	Rank(res.Added)
	sort.SliceStable(res.Changed, func(i, j int) bool {
		a, b := res.Changed[i].New, res.Changed[j].New
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.Group < b.Group
	})
	return res, nil
}

// Rank sorts aggregates most recently updated first, ties broken by
// group key for determinism.
func Rank(groups []*types.AggregatedActivity) {
	sort.SliceStable(groups, func(i, j int) bool {
		if !groups[i].UpdatedAt.Equal(groups[j].UpdatedAt) {
			return groups[i].UpdatedAt.After(groups[j].UpdatedAt)
		}
		return groups[i].Group < groups[j].Group
	})
}
