package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource serves a fixed sequence of page contents; once the sequence
// is exhausted the last entry repeats, like a reader stuck on its final page.
type scriptedSource struct {
	contents []string
	index    int
	turns    int
	snapErr  error
	turnErr  error
}

func (s *scriptedSource) Snapshot() (*Snapshot, error) {
	if s.snapErr != nil {
		return nil, s.snapErr
	}
	i := s.index
	if i >= len(s.contents) {
		i = len(s.contents) - 1
	}
	return &Snapshot{Frames: []FrameContent{{ID: "main", HTML: s.contents[i]}}}, nil
}

func (s *scriptedSource) TurnPage() error {
	if s.turnErr != nil {
		return s.turnErr
	}
	s.turns++
	s.index++
	return nil
}

// countingSource produces different content on every snapshot, like a book
// that never ends.
type countingSource struct {
	calls int
	turns int
}

func (s *countingSource) Snapshot() (*Snapshot, error) {
	s.calls++
	return &Snapshot{Frames: []FrameContent{{ID: "main", HTML: fmt.Sprintf("page %d", s.calls)}}}, nil
}

func (s *countingSource) TurnPage() error {
	s.turns++
	return nil
}

func TestLoopStopsAfterUnchangedThreshold(t *testing.T) {
	// fingerprints A, A, A with threshold 2: the loop must stop after the
	// second A, having turned the page exactly twice
	src := &scriptedSource{contents: []string{"chapter one"}}
	loop := &Loop{Source: src, MaxPages: 10, StopUnchanged: 2}

	res, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Stalled)
	assert.Equal(t, 3, res.PagesCaptured)
	assert.Equal(t, 2, res.PageTurns)
	assert.Equal(t, 2, src.turns)
}

func TestLoopAlwaysTurnsAtLeastOnce(t *testing.T) {
	// the first snapshot has no predecessor, so even threshold 1 cannot stop
	// the loop before one page turn happened
	src := &scriptedSource{contents: []string{"only page"}}
	loop := &Loop{Source: src, MaxPages: 10, StopUnchanged: 1}

	res, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Stalled)
	assert.Equal(t, 1, res.PageTurns)
	assert.Equal(t, 2, res.PagesCaptured)
}

func TestLoopRespectsMaxPages(t *testing.T) {
	src := &countingSource{}
	loop := &Loop{Source: src, MaxPages: 5, StopUnchanged: 3}

	res, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Stalled)
	assert.Equal(t, 5, res.PagesCaptured)
	assert.Equal(t, 4, res.PageTurns, "no page turn after the final capture")
}

func TestLoopCountersResetOnChange(t *testing.T) {
	// A, A, B, B, B with threshold 2: the single repeat of A must not count
	// toward the stop decision once B appears
	src := &scriptedSource{contents: []string{"a", "a", "b"}}
	loop := &Loop{Source: src, MaxPages: 20, StopUnchanged: 2}

	res, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Stalled)
	assert.Equal(t, 5, res.PagesCaptured)
	assert.Equal(t, 4, res.PageTurns)
}

func TestLoopWritesFrameHTML(t *testing.T) {
	dir := t.TempDir()
	src := &scriptedSource{contents: []string{"<html>one</html>"}}
	loop := &Loop{Source: src, HTMLDir: dir, MaxPages: 3, StopUnchanged: 1}

	_, err := loop.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "page_0001_main.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>one</html>", string(data))
}

func TestLoopSnapshotErrorAborts(t *testing.T) {
	src := &scriptedSource{contents: []string{"x"}, snapErr: errors.New("frame tree gone")}
	loop := &Loop{Source: src, MaxPages: 3, StopUnchanged: 1}

	_, err := loop.Run(context.Background())
	assert.Error(t, err)
}

func TestLoopTurnErrorAborts(t *testing.T) {
	src := &scriptedSource{contents: []string{"x"}, turnErr: errors.New("target closed")}
	loop := &Loop{Source: src, MaxPages: 3, StopUnchanged: 2}

	_, err := loop.Run(context.Background())
	assert.Error(t, err)
}

func TestLoopReportsEveryCapturedPage(t *testing.T) {
	src := &countingSource{}
	var seen []int
	loop := &Loop{
		Source:        src,
		MaxPages:      4,
		StopUnchanged: 3,
		OnPage:        func(i int) { seen = append(seen, i) },
	}

	_, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
}

func TestLoopReportsStallingPage(t *testing.T) {
	// the page captured on the stopping iteration still counts and must be
	// reported like any other
	src := &scriptedSource{contents: []string{"last page"}}
	var seen []int
	loop := &Loop{
		Source:        src,
		MaxPages:      10,
		StopUnchanged: 2,
		OnPage:        func(i int) { seen = append(seen, i) },
	}

	res, err := loop.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Stalled)
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, res.PagesCaptured, seen[len(seen)-1])
}
