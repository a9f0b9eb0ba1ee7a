package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallgrim/golem/internal/plan"
)

type spyNotifier struct {
	mu      sync.Mutex
	notices []string
}

func (s *spyNotifier) Say(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, text)
}

func TestFlushRendersDetectionsAndBacklog(t *testing.T) {
	spy := &spyNotifier{}
	r := NewReporter(spy, nil)

	r.AddDetection("scan the area", "two zombies to the north", LevelWarning)
	r.AddBacklog(plan.BacklogEntry{Category: "fight", Step: "fight the zombies", Module: "fight"})

	r.Flush()

	require.Len(t, spy.notices, 1)
	assert.Contains(t, spy.notices[0], "two zombies to the north")
	assert.Contains(t, spy.notices[0], "fight the zombies")
	assert.Contains(t, spy.notices[0], "module=fight")

	// Buffers are cleared.
	assert.Empty(t, r.Detections())
	assert.Empty(t, r.Backlog())
}

func TestFlushWithNothingBufferedSaysNothing(t *testing.T) {
	spy := &spyNotifier{}
	r := NewReporter(spy, nil)

	r.Flush()
	assert.Empty(t, spy.notices)
}

func TestAccessorsCopy(t *testing.T) {
	r := NewReporter(&spyNotifier{}, nil)
	r.AddBacklog(plan.BacklogEntry{Category: "generic", Step: "later"})

	got := r.Backlog()
	got[0].Step = "mutated"

	assert.Equal(t, "later", r.Backlog()[0].Step)
}
