package types

import (
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
)

var testBase = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testActivity(t *testing.T, objectID int64, offset time.Duration) *Activity {
	t.Helper()
	a, err := NewActivity(1, 5, objectID, 0, testBase.Add(offset), nil)
	if err != nil {
		t.Fatalf("NewActivity: %v", err)
	}
	return a
}

func TestSerializationIDFixedWidthAndSortable(t *testing.T) {
	early := testActivity(t, 42, 0)
	late := testActivity(t, 7, time.Minute)

	if got := len(early.SerializationID()); got != 26 {
		t.Fatalf("serialization id length = %d, want 26", got)
	}
	if !(early.SerializationID() < late.SerializationID()) {
		t.Fatalf("later activity must sort after earlier one: %q vs %q",
			early.SerializationID(), late.SerializationID())
	}
}

func TestAppendKeepsMostRecentFirst(t *testing.T) {
	g := NewAggregatedActivity("g")
	for i := int64(0); i < 5; i++ {
		if err := g.Append(testActivity(t, i, time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	for i := 1; i < len(g.Activities); i++ {
		if g.Activities[i-1].SerializationID() < g.Activities[i].SerializationID() {
			t.Fatalf("members out of order at %d", i)
		}
	}
	if !g.UpdatedAt.Equal(testBase.Add(4 * time.Second)) {
		t.Fatalf("UpdatedAt = %v, want newest member time", g.UpdatedAt)
	}
	if !g.CreatedAt.Equal(testBase) {
		t.Fatalf("CreatedAt = %v, want oldest member time", g.CreatedAt)
	}
}

func TestAppendRejectsDuplicates(t *testing.T) {
	g := NewAggregatedActivity("g")
	a := testActivity(t, 1, 0)
	if err := g.Append(a); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := g.Append(a); !errors.Is(err, pkgerrors.ErrDuplicateActivity) {
		t.Fatalf("duplicate append: got %v, want ErrDuplicateActivity", err)
	}
	if got := g.ActivityCount(); got != 1 {
		t.Fatalf("count after duplicate = %d, want 1", got)
	}
}

func TestAppendMinimizesButKeepsTotalCount(t *testing.T) {
	g := NewAggregatedActivity("g")
	total := MaxAggregatedLength + 5
	for i := 0; i < total; i++ {
		if err := g.Append(testActivity(t, int64(i), time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if got := len(g.Activities); got != MaxAggregatedLength {
		t.Fatalf("stored members = %d, want %d", got, MaxAggregatedLength)
	}
	if got := g.ActivityCount(); got != total {
		t.Fatalf("ActivityCount = %d, want %d", got, total)
	}
	// the newest member always survives minimization
	newest := testBase.Add(time.Duration(total-1) * time.Second)
	if !g.Activities[0].Time.Equal(newest) {
		t.Fatalf("newest member dropped by minimization")
	}
}

func TestRemoveRefusesLastMember(t *testing.T) {
	g := NewAggregatedActivity("g")
	a := testActivity(t, 1, 0)
	b := testActivity(t, 2, time.Second)
	if err := g.Append(a); err != nil {
		t.Fatal(err)
	}
	if err := g.Append(b); err != nil {
		t.Fatal(err)
	}

	if err := g.Remove("no-such-member"); !errors.Is(err, pkgerrors.ErrActivityNotFound) {
		t.Fatalf("remove absent: got %v, want ErrActivityNotFound", err)
	}
	if err := g.Remove(b.SerializationID()); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !g.UpdatedAt.Equal(a.Time) {
		t.Fatalf("UpdatedAt not recomputed after removal")
	}
	if err := g.Remove(a.SerializationID()); !errors.Is(err, pkgerrors.ErrEmptyAggregate) {
		t.Fatalf("remove last member: got %v, want ErrEmptyAggregate", err)
	}
}

func TestDehydrateHydrateRoundTrip(t *testing.T) {
	g := NewAggregatedActivity("g")
	members := make(map[string]*Activity)
	for i := int64(0); i < 3; i++ {
		a := testActivity(t, i, time.Duration(i)*time.Second)
		members[a.SerializationID()] = a
		if err := g.Append(a); err != nil {
			t.Fatal(err)
		}
	}

	de := g.Dehydrate()
	if !de.Dehydrated || len(de.Activities) != 0 {
		t.Fatalf("dehydrated copy still carries members")
	}
	if de.MinimizedCount != 3 {
		t.Fatalf("dehydrated MinimizedCount = %d, want 3", de.MinimizedCount)
	}
	if len(g.Activities) != 3 {
		t.Fatalf("dehydrate mutated the source")
	}

	de.Hydrate(members)
	if de.Dehydrated {
		t.Fatal("still dehydrated after hydrate")
	}
	if !de.Equals(&AggregatedActivity{
		Group:          g.Group,
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
		Activities:     g.Activities,
		MinimizedCount: 3,
	}) {
		t.Fatal("hydrated copy does not match the source members")
	}
}

func TestHydrateToleratesMissingMembers(t *testing.T) {
	g := NewAggregatedActivity("g")
	a := testActivity(t, 1, 0)
	b := testActivity(t, 2, time.Second)
	if err := g.Append(a); err != nil {
		t.Fatal(err)
	}
	if err := g.Append(b); err != nil {
		t.Fatal(err)
	}

	de := g.Dehydrate()
	de.Hydrate(map[string]*Activity{a.SerializationID(): a})

	if len(de.Activities) != 1 {
		t.Fatalf("hydrated members = %d, want 1", len(de.Activities))
	}
	if got := de.ActivityCount(); got != 2 {
		t.Fatalf("ActivityCount after partial hydration = %d, want 2", got)
	}
}

func TestSeenAndReadTrackRecency(t *testing.T) {
	g := NewAggregatedActivity("g")
	if err := g.Append(testActivity(t, 1, 0)); err != nil {
		t.Fatal(err)
	}
	if g.IsSeen() || g.IsRead() {
		t.Fatal("fresh aggregate must be unseen and unread")
	}

	g.MarkSeen()
	g.MarkRead()
	if !g.IsSeen() || !g.IsRead() {
		t.Fatal("marking did not take")
	}

	// a newer member makes the aggregate unseen again
	if err := g.Append(testActivity(t, 2, 48*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if g.IsSeen() || g.IsRead() {
		t.Fatal("newer member must reset seen and read state")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := NewAggregatedActivity("g")
	a := testActivity(t, 1, 0)
	b := testActivity(t, 2, time.Second)
	if err := g.Append(a); err != nil {
		t.Fatal(err)
	}
	if err := g.Append(b); err != nil {
		t.Fatal(err)
	}
	g.SetRaw([]byte("stored"))

	c := g.Clone()
	if !c.Equals(g) {
		t.Fatal("clone not equal to source")
	}
	if err := c.Remove(b.SerializationID()); err != nil {
		t.Fatal(err)
	}
	if len(g.Activities) != 2 {
		t.Fatal("mutating the clone leaked into the source")
	}
	if string(c.Raw()) != "stored" {
		t.Fatal("clone lost the raw bytes")
	}
}
