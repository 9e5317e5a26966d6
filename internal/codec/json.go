package codec

import (
	"encoding/json"
	"fmt"
	"time"

	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
	"github.com/yungbote/feedstream-backend/internal/types"
)

const aggregatedVersion = 1

// JSONActivityCodec stores activities as plain JSON documents.
type JSONActivityCodec struct{}

func (JSONActivityCodec) Marshal(a *types.Activity) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil activity", pkgerrors.ErrInvalidArgument)
	}
	return json.Marshal(a)
}

func (JSONActivityCodec) Unmarshal(data []byte) (*types.Activity, error) {
	var a types.Activity
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode activity: %w", err)
	}
	return &a, nil
}

type aggregatedWire struct {
	Version        int        `json:"v"`
	GroupKey       string     `json:"group_key"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	SeenAt         *time.Time `json:"seen_at,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	ActivityIDs    []string   `json:"activity_ids"`
	MinimizedCount int        `json:"minimized_count"`
}

// JSONAggregatedCodec stores aggregated activities dehydrated: member
// references plus group metadata, never the member payloads.
type JSONAggregatedCodec struct{}

func (JSONAggregatedCodec) MarshalAggregated(g *types.AggregatedActivity) ([]byte, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil aggregated activity", pkgerrors.ErrInvalidArgument)
	}
	if g.Group == "" {
		return nil, fmt.Errorf("%w: aggregated activity without a group key", pkgerrors.ErrInvalidArgument)
	}
	dehydrated := g
	if !g.Dehydrated {
		dehydrated = g.Dehydrate()
	}
	wire := aggregatedWire{
		Version:        aggregatedVersion,
		GroupKey:       dehydrated.Group,
		CreatedAt:      dehydrated.CreatedAt.UTC(),
		UpdatedAt:      dehydrated.UpdatedAt.UTC(),
		SeenAt:         dehydrated.SeenAt,
		ReadAt:         dehydrated.ReadAt,
		ActivityIDs:    dehydrated.ActivityIDs,
		MinimizedCount: dehydrated.MinimizedCount,
	}
	return json.Marshal(wire)
}

func (JSONAggregatedCodec) UnmarshalAggregated(data []byte) (*types.AggregatedActivity, error) {
	var wire aggregatedWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode aggregated activity: %w", err)
	}
	if wire.Version != aggregatedVersion {
		return nil, fmt.Errorf("%w: unknown aggregated payload version %d", pkgerrors.ErrInvalidArgument, wire.Version)
	}
	g := &types.AggregatedActivity{
		Group:          wire.GroupKey,
		CreatedAt:      wire.CreatedAt,
		UpdatedAt:      wire.UpdatedAt,
		SeenAt:         wire.SeenAt,
		ReadAt:         wire.ReadAt,
		ActivityIDs:    wire.ActivityIDs,
		MinimizedCount: wire.MinimizedCount,
		Dehydrated:     true,
	}
	g.SetRaw(data)
	return g, nil
}
