package execution

import "testing"

func TestChannelObserverDropsWhenFull(t *testing.T) {
	obs := NewChannelObserver(1)
	obs.OnEvent(Event{Kind: EventState, State: StateStart})
	obs.OnEvent(Event{Kind: EventState, State: StateSubmitting})

	ev := <-obs.C
	if ev.State != StateStart {
		t.Fatalf("unexpected first event %+v", ev)
	}
	select {
	case extra := <-obs.C:
		t.Fatalf("expected second event to be dropped, got %+v", extra)
	default:
	}
}
