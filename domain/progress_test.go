package domain

import (
	"testing"

	"cursed-archive/errors"

	"github.com/stretchr/testify/require"
)

func TestProgressTracker_EmitsUntilCompletion(t *testing.T) {
	req := require.New(t)

	// Given a 2.5 MiB file received in 1 MiB chunks
	tracker := NewProgressTracker(FileIdentity{Name: "big.bin", Size: 2621440})
	req.Equal(NotStarted, tracker.State())

	var events []Progress
	for _, n := range []int{MB, MB, MB / 2} {
		p, emit, err := tracker.Advance(n)
		req.NoError(err)
		req.True(emit)
		events = append(events, p)
	}

	// Then two in-progress events are followed by exactly one complete event
	req.Len(events, 3)
	req.False(events[0].Complete)
	req.Equal(uint64(MB), events[0].BytesReceived)
	req.False(events[1].Complete)
	req.True(events[2].Complete)
	req.Equal(uint64(2621440), events[2].BytesReceived)
	req.Equal(events[2].TotalSize, events[2].BytesReceived)
	req.Equal(Complete, tracker.Finish())
}

func TestProgressTracker_EmptyFileCompletesImmediately(t *testing.T) {
	req := require.New(t)
	tracker := NewProgressTracker(FileIdentity{Name: "empty", Size: 0})

	p, emit, err := tracker.Advance(0)

	req.NoError(err)
	req.True(emit)
	req.True(p.Complete)
	req.Zero(p.BytesReceived)
	req.Equal(Complete, tracker.State())
}

func TestProgressTracker_UnderDeliveryAborts(t *testing.T) {
	req := require.New(t)
	tracker := NewProgressTracker(FileIdentity{Size: 3 * MB})

	p, emit, err := tracker.Advance(MB)
	req.NoError(err)
	req.True(emit)
	req.False(p.Complete)

	// When the stream ends here
	req.Equal(Aborted, tracker.Finish())
}

func TestProgressTracker_OverDelivery(t *testing.T) {
	t.Run("Chunk crossing the declared size completes", func(t *testing.T) {
		req := require.New(t)
		tracker := NewProgressTracker(FileIdentity{Size: 4})

		p, emit, err := tracker.Advance(3)
		req.NoError(err)
		req.True(emit)
		req.False(p.Complete)

		// When the next chunk goes past the declared size
		p, emit, err = tracker.Advance(3)

		// Then every byte is counted and the transfer completes once
		req.NoError(err)
		req.True(emit)
		req.True(p.Complete)
		req.Equal(uint64(6), p.BytesReceived)
		req.Equal(uint64(4), p.TotalSize)
		req.Zero(tracker.Remaining())
		req.Equal(Complete, tracker.Finish())
	})

	t.Run("Payload after completion emits nothing", func(t *testing.T) {
		req := require.New(t)
		tracker := NewProgressTracker(FileIdentity{Size: 10})
		_, _, err := tracker.Advance(10)
		req.NoError(err)

		_, emit, err := tracker.Advance(0)
		req.NoError(err)
		req.False(emit)

		_, emit, err = tracker.Advance(5)
		req.NoError(err)
		req.False(emit)
		req.Equal(uint64(15), tracker.BytesReceived())
		req.Equal(Complete, tracker.State())
	})
}

func TestProgressTracker_AbortedRejectsChunks(t *testing.T) {
	tracker := NewProgressTracker(FileIdentity{Size: 10})
	tracker.Abort()

	_, emit, err := tracker.Advance(1)
	require.ErrorIs(t, err, errors.ErrTransferAborted)
	require.False(t, emit)
}

func TestProgressTracker_BytesAreNonDecreasing(t *testing.T) {
	req := require.New(t)
	tracker := NewProgressTracker(FileIdentity{Size: 100})

	var last uint64
	for _, n := range []int{10, 0, 30, 0, 20} {
		p, emit, err := tracker.Advance(n)
		req.NoError(err)
		req.True(emit)
		req.GreaterOrEqual(p.BytesReceived, last)
		last = p.BytesReceived
	}
	req.Equal(uint64(60), tracker.BytesReceived())
}

func TestProgress_Percent(t *testing.T) {
	req := require.New(t)
	req.Equal(float64(100), Progress{}.Percent())
	req.Equal(float64(50), Progress{BytesReceived: 5, TotalSize: 10}.Percent())
}
