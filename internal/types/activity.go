package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
)

const (
	maxObjectID = int64(1e10)
	maxVerbID   = 1000
)

// Activity is a single immutable event: actor did verb on object
// (optionally aimed at target). Activities are write-once; feeds only
// ever reference them.
type Activity struct {
	ID           uuid.UUID         `json:"id"`
	ActorID      int64             `json:"actor_id"`
	VerbID       int               `json:"verb_id"`
	ObjectID     int64             `json:"object_id"`
	TargetID     int64             `json:"target_id"`
	Time         time.Time         `json:"time"`
	ExtraContext map[string]string `json:"extra_context,omitempty"`
}

func NewActivity(actorID int64, verbID int, objectID, targetID int64, at time.Time, extra map[string]string) (*Activity, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	a := &Activity{
		ID:           uuid.New(),
		ActorID:      actorID,
		VerbID:       verbID,
		ObjectID:     objectID,
		TargetID:     targetID,
		Time:         at,
		ExtraContext: extra,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Activity) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil activity", pkgerrors.ErrInvalidArgument)
	}
	if a.Time.IsZero() {
		return fmt.Errorf("%w: activity without a time cannot be serialized", pkgerrors.ErrInvalidArgument)
	}
	if a.ObjectID < 0 || a.ObjectID >= maxObjectID {
		return fmt.Errorf("%w: object id %d out of range", pkgerrors.ErrInvalidArgument, a.ObjectID)
	}
	if a.VerbID < 0 || a.VerbID >= maxVerbID {
		return fmt.Errorf("%w: verb id %d out of range", pkgerrors.ErrInvalidArgument, a.VerbID)
	}
	return nil
}

// SerializationID is a fixed-width sortable identifier derived from the
// activity time, object and verb. It stays stable for the lifetime of the
// activity and doubles as the dedup key inside aggregated activities and
// the content address in the activity store.
//
// Layout: 13 digit epoch millis, 10 digit object id, 3 digit verb id.
func (a *Activity) SerializationID() string {
	return fmt.Sprintf("%013d%010d%03d", a.Time.UnixMilli(), a.ObjectID, a.VerbID)
}

// Score is the ranking score donated to the timeline store. Millisecond
// recency only; the full serialization id does not fit float64 precision,
// so equal-millisecond entries tie on score and are ordered by member
// identity inside the store.
func (a *Activity) Score() float64 {
	return float64(a.Time.UnixMilli())
}
