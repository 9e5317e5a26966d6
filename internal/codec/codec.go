package codec

import (
	"github.com/yungbote/feedstream-backend/internal/types"
)

// ActivityCodec produces the byte encoding stored in the activity store.
type ActivityCodec interface {
	Marshal(a *types.Activity) ([]byte, error)
	Unmarshal(data []byte) (*types.Activity, error)
}

// TimelineCodec produces the ranked-entry value stored in the timeline
// store for aggregated feeds. Implementations decide whether members are
// stored dehydrated (references) or inline.
type TimelineCodec interface {
	MarshalAggregated(g *types.AggregatedActivity) ([]byte, error)
	UnmarshalAggregated(data []byte) (*types.AggregatedActivity, error)
}

// MemberID encodes a bare activity reference as a timeline member value,
// as used by sparse non-aggregated feeds.
func MemberID(serializationID string) []byte {
	return []byte(serializationID)
}

func DecodeMemberID(member []byte) string {
	return string(member)
}
