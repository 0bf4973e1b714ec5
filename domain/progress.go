package domain

import (
	"cursed-archive/errors"
)

// ProgressTracker is the receiver side state machine of one transfer:
// NotStarted -> InProgress -> {Complete | Aborted}.
// It decides which progress event, if any, follows each written chunk.
type ProgressTracker struct {
	identity FileIdentity
	received uint64
	state    TransferState
}

func NewProgressTracker(identity FileIdentity) *ProgressTracker {
	return &ProgressTracker{identity: identity, state: NotStarted}
}

func (t *ProgressTracker) State() TransferState {
	return t.state
}

func (t *ProgressTracker) BytesReceived() uint64 {
	return t.received
}

// Remaining is how many bytes are still expected before the declared size is reached.
func (t *ProgressTracker) Remaining() uint64 {
	if t.received >= t.identity.Size {
		return 0
	}
	return t.identity.Size - t.received
}

// Advance accounts for n more bytes written to the destination.
// The returned bool reports whether the event must be emitted: an event is
// produced for every chunk while the declared size is not reached, then exactly
// one complete event for the chunk that reaches or exceeds it. Bytes arriving
// after completion are still counted but produce no event.
func (t *ProgressTracker) Advance(n int) (Progress, bool, error) {
	switch t.state {
	case Aborted:
		return Progress{}, false, errors.ErrTransferAborted
	case Complete:
		t.received += uint64(n)
		return Progress{}, false, nil
	}

	t.received += uint64(n)
	if t.received >= t.identity.Size {
		t.state = Complete
		return t.progress(true), true, nil
	}
	t.state = InProgress
	return t.progress(false), true, nil
}

// Finish is called when the chunk stream ends. Anything short of the declared
// size ends as Aborted: no complete event will ever be emitted for it.
func (t *ProgressTracker) Finish() TransferState {
	if t.state != Complete {
		t.state = Aborted
	}
	return t.state
}

func (t *ProgressTracker) Abort() {
	if t.state != Complete {
		t.state = Aborted
	}
}

func (t *ProgressTracker) progress(complete bool) Progress {
	return Progress{
		Identity:      t.identity,
		BytesReceived: t.received,
		TotalSize:     t.identity.Size,
		Complete:      complete,
	}
}
