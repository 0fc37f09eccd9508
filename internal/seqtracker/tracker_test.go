package seqtracker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
)

func TestFirstObservationInitializesWithoutEvent(t *testing.T) {
	var tr Tracker
	_, emitted := tr.Track(execevent.Primary, 1, 1, 0)
	require.False(t, emitted)
	require.Equal(t, uint32(0), tr.GapEpoch())
}

func TestInOrderAdvanceNoEvent(t *testing.T) {
	var tr Tracker
	tr.Track(execevent.Primary, 1, 1, 0)
	_, emitted := tr.Track(execevent.Primary, 1, 2, 1)
	require.False(t, emitted)
}

func TestGapOpensAndBumpsEpoch(t *testing.T) {
	var tr Tracker
	tr.Track(execevent.Primary, 1, 1, 0) // init expected=2
	ev, emitted := tr.Track(execevent.Primary, 1, 4, 10)
	require.True(t, emitted)
	require.Equal(t, Gap, ev.Kind)
	require.EqualValues(t, 2, ev.ExpectedSeq)
	require.EqualValues(t, 4, ev.SeenSeq)
	require.True(t, tr.GapOpen())
	require.EqualValues(t, 1, tr.GapEpoch())
}

func TestDuplicateClassification(t *testing.T) {
	var tr Tracker
	tr.Track(execevent.DropCopy, 1, 1, 0) // init, expected=2
	tr.Track(execevent.DropCopy, 1, 2, 1) // advance, expected=3
	ev, emitted := tr.Track(execevent.DropCopy, 1, 2, 2)
	require.True(t, emitted)
	require.Equal(t, Duplicate, ev.Kind)
	require.EqualValues(t, 3, ev.ExpectedSeq)
	require.EqualValues(t, 2, ev.SeenSeq)
}

func TestGapFillClosesGapOnAnyInRangeObservation(t *testing.T) {
	var tr Tracker
	tr.Track(execevent.Primary, 1, 1, 0) // expected=2
	tr.Track(execevent.Primary, 1, 4, 1) // gap [2,4), epoch=1
	require.True(t, tr.GapOpen())

	ev, emitted := tr.Track(execevent.Primary, 1, 2, 2) // fills gap
	require.True(t, emitted)
	require.Equal(t, GapFill, ev.Kind)
	require.True(t, ev.ClosedByFill)
	require.False(t, tr.GapOpen(), "any in-range observation must close the whole gap")
}

func TestOutOfOrderOutsideGapRange(t *testing.T) {
	var tr Tracker
	tr.Track(execevent.Primary, 1, 10, 0) // expected=11
	ev, emitted := tr.Track(execevent.Primary, 1, 5, 1)
	require.True(t, emitted)
	require.Equal(t, OutOfOrder, ev.Kind)
}

func TestEpochSkipsZeroOnWrap(t *testing.T) {
	var tr Tracker
	tr.Track(execevent.Primary, 1, 1, 0)
	tr.gapEpoch = 0xFFFFFFFF
	tr.Track(execevent.Primary, 1, 5, 1) // bumps from max -> wraps to 0 -> skip to 1
	require.EqualValues(t, 1, tr.GapEpoch())
}

func TestCloseAbandonedGapRespectsTimeout(t *testing.T) {
	var tr Tracker
	tr.Track(execevent.Primary, 1, 1, 0)
	tr.Track(execevent.Primary, 1, 4, 100)
	require.False(t, tr.CloseAbandonedGap(150, 1000), "not yet timed out")
	require.True(t, tr.GapOpen())
	require.True(t, tr.CloseAbandonedGap(1200, 1000), "timeout elapsed")
	require.False(t, tr.GapOpen())
}
