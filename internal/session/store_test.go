package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore()

	ctx := s.CurrentContext()
	assert.Equal(t, NoFloorplan, ctx.Features)
	assert.Equal(t, NoText, ctx.Text)
	assert.False(t, ctx.Analyzed)
	assert.Empty(t, s.History())
}

func TestRecordFloorplan_ClearsHistory(t *testing.T) {
	s := NewStore()
	s.AppendChatTurn("q1", "a1")
	s.AppendChatTurn("q2", "a2")

	s.RecordFloorplan("Walls: 3, Rooms: 2", "Kitchen")

	ctx := s.CurrentContext()
	assert.Equal(t, "Walls: 3, Rooms: 2", ctx.Features)
	assert.Equal(t, "Kitchen", ctx.Text)
	assert.True(t, ctx.Analyzed)
	assert.Empty(t, s.History())
}

func TestCommitAnalysis(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewStore()
	s.now = func() time.Time { return fixed }
	s.AppendChatTurn("old", "turn")

	s.CommitAnalysis("Walls: 2, Rooms: 1", "Kitchen", "Open the kitchen wall.")

	want := []ChatEntry{{Question: RecommendationQuestion, Reply: "Open the kitchen wall."}}
	if diff := cmp.Diff(want, s.History()); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, fixed, s.CurrentContext().AnalyzedAt)
}

func TestAppendChatTurn_Order(t *testing.T) {
	s := NewStore()
	s.CommitAnalysis("Walls: 1, Rooms: 1", "Bath", "rec")
	s.AppendChatTurn("first", "one")
	s.AppendChatTurn("second", "two")

	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, RecommendationQuestion, h[0].Question)
	assert.Equal(t, "first", h[1].Question)
	assert.Equal(t, "two", h[2].Reply)
}

func TestHistory_ReturnsCopy(t *testing.T) {
	s := NewStore()
	s.AppendChatTurn("q", "a")

	h := s.History()
	h[0].Reply = "mutated"

	assert.Equal(t, "a", s.History()[0].Reply)
}

func TestReset(t *testing.T) {
	s := NewStore()
	s.CommitAnalysis("Walls: 1, Rooms: 0", "x", "y")
	s.Reset()

	assert.False(t, s.CurrentContext().Analyzed)
	assert.Equal(t, NoFloorplan, s.CurrentContext().Features)
	assert.Empty(t, s.History())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			s.CommitAnalysis(fmt.Sprintf("Walls: %d, Rooms: 0", i), "t", "rec")
		}(i)
		go func(i int) {
			defer wg.Done()
			s.AppendChatTurn(fmt.Sprintf("q%d", i), "a")
		}(i)
		go func() {
			defer wg.Done()
			_ = s.CurrentContext()
			_ = s.History()
		}()
	}
	wg.Wait()

	assert.True(t, s.CurrentContext().Analyzed)
	h := s.History()
	require.NotEmpty(t, h)
	assert.Equal(t, RecommendationQuestion, h[0].Question, "history always starts with the latest recommendation")
}
