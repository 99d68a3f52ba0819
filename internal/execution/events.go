package execution

import "time"

type EventKind string

const (
	EventState     EventKind = "state"
	EventSubmitted EventKind = "submitted"
	EventConfirmed EventKind = "confirmed"
	EventError     EventKind = "error"
)

type State string

const (
	StateStart      State = "START"
	StateApproving  State = "APPROVING"
	StateSubmitting State = "SUBMITTING"
	StateConfirming State = "CONFIRMING"
	StateDone       State = "DONE"
	StatePending    State = "PENDING"
	StateFailed     State = "FAILED"
)

type Step string

const (
	StepApproval Step = "approval"
	StepMain     Step = "main"
)

// Event reports progress of one execution attempt. Events are informational
// and never change the returned result.
type Event struct {
	Kind    EventKind `json:"kind"`
	State   State     `json:"state,omitempty"`
	Step    Step      `json:"step,omitempty"`
	ChainID int64     `json:"chain_id"`
	TxHash  string    `json:"tx_hash,omitempty"`
	Err     error     `json:"-"`
	At      time.Time `json:"at"`
}

type Observer interface {
	OnEvent(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(ev Event) { f(ev) }

// ChannelObserver forwards events to a buffered channel and drops them when
// the channel is full.
type ChannelObserver struct {
	C chan Event
}

func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelObserver{C: make(chan Event, buffer)}
}

func (o *ChannelObserver) OnEvent(ev Event) {
	select {
	case o.C <- ev:
	default:
	}
}

type nopObserver struct{}

func (nopObserver) OnEvent(Event) {}
