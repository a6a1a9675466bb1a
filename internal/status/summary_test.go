package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	entries := []Entry{
		{Name: "a", Outcome: Pass(), Duration: time.Second},
		{Name: "b", Outcome: Skip("missing client"), Duration: time.Millisecond},
		{Name: "c", Outcome: Fail("bad layout"), Duration: 2 * time.Second},
		{Name: "d", Outcome: New(Crashed, "EOF"), Duration: time.Second},
	}

	s := Summarize(entries)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Count(OK))
	assert.Equal(t, 1, s.Count(Skipped))
	assert.Equal(t, 0, s.Count(GUIWrong))
	assert.Equal(t, 2, s.Failures())
	assert.True(t, s.Failed())
	assert.Equal(t, 4*time.Second+time.Millisecond, s.Duration)
}

func TestSummarySkippedIsNotFailure(t *testing.T) {
	s := Summarize([]Entry{
		{Name: "a", Outcome: Pass()},
		{Name: "b", Outcome: Skip("no display")},
	})
	assert.False(t, s.Failed())
}
