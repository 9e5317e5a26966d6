package handlers

import (
	"time"

	"github.com/yungbote/feedstream-backend/internal/types"
)

type ActivityView struct {
	ID       string            `json:"id"`
	ActorID  int64             `json:"actor_id"`
	VerbID   int               `json:"verb_id"`
	ObjectID int64             `json:"object_id"`
	TargetID int64             `json:"target_id"`
	Time     time.Time         `json:"time"`
	Extra    map[string]string `json:"extra,omitempty"`
}

type AggregatedActivityView struct {
	Group         string         `json:"group"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Seen          bool           `json:"seen"`
	Read          bool           `json:"read"`
	ActivityCount int            `json:"activity_count"`
	Activities    []ActivityView `json:"activities"`
}

func activityView(a *types.Activity) ActivityView {
	return ActivityView{
		ID:       a.SerializationID(),
		ActorID:  a.ActorID,
		VerbID:   a.VerbID,
		ObjectID: a.ObjectID,
		TargetID: a.TargetID,
		Time:     a.Time,
		Extra:    a.ExtraContext,
	}
}

func aggregatedViews(groups []*types.AggregatedActivity) []AggregatedActivityView {
	out := make([]AggregatedActivityView, 0, len(groups))
	for _, g := range groups {
		view := AggregatedActivityView{
			Group:         g.Group,
			CreatedAt:     g.CreatedAt,
			UpdatedAt:     g.UpdatedAt,
			Seen:          g.IsSeen(),
			Read:          g.IsRead(),
			ActivityCount: g.ActivityCount(),
			Activities:    make([]ActivityView, 0, len(g.Activities)),
		}
		for _, a := range g.Activities {
			view.Activities = append(view.Activities, activityView(a))
		}
		out = append(out, view)
	}
	return out
}
