package events

import (
	"testing"
	"time"
)

type testEvent struct {
	BaseEvent
	Payload string
}

func newTestEvent(t EventType, payload string) *testEvent {
	return &testEvent{BaseEvent: NewBase(t), Payload: payload}
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventNavigationChanged)
	bus.Publish(newTestEvent(EventNavigationChanged, "/opt/kms"))

	select {
	case received := <-ch:
		ev, ok := received.(*testEvent)
		if !ok {
			t.Fatal("Expected testEvent")
		}
		if ev.Payload != "/opt/kms" {
			t.Errorf("Payload = %q, want /opt/kms", ev.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_MultipleTypesOneChannel(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventNavigationLoading, EventNavigationError)

	bus.Publish(newTestEvent(EventNavigationLoading, "a"))
	bus.Publish(newTestEvent(EventSelectionChanged, "ignored"))
	bus.Publish(newTestEvent(EventNavigationError, "b"))

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case ev := <-ch:
			got = append(got, ev.(*testEvent).Payload)
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for event %d", i)
		}
	}
	if got[0] != "a" || got[1] != "b" {
		t.Errorf("got %v, want [a b]", got)
	}

	select {
	case ev := <-ch:
		t.Errorf("unexpected extra event %v", ev.Type())
	default:
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.SubscribeAll()
	bus.Publish(newTestEvent(EventImportProgress, "x"))
	bus.PublishLog(WarnLevel, "careful")

	for _, want := range []EventType{EventImportProgress, EventLog} {
		select {
		case ev := <-ch:
			if ev.Type() != want {
				t.Errorf("Type = %v, want %v", ev.Type(), want)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("Timeout waiting for event")
		}
	}
}

func TestEventBus_NonBlocking(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	_ = bus.Subscribe(EventWalkProgress)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(newTestEvent(EventWalkProgress, "tick"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if bus.DroppedEventCount() != 9 {
		t.Errorf("DroppedEventCount = %d, want 9", bus.DroppedEventCount())
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventOpenFile, EventSelectionChanged)
	bus.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(newTestEvent(EventOpenFile, "x"))
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)
	ch1 := bus.Subscribe(EventNavigationChanged, EventNavigationError)
	ch2 := bus.SubscribeAll()

	bus.Close()
	bus.Close()

	if _, ok := <-ch1; ok {
		t.Error("ch1 should be closed")
	}
	if _, ok := <-ch2; ok {
		t.Error("ch2 should be closed")
	}

	late := bus.Subscribe(EventLog)
	if _, ok := <-late; ok {
		t.Error("subscription on closed bus should be closed")
	}

	bus.Publish(newTestEvent(EventLog, "after close"))
}

func TestNilBusPublish(t *testing.T) {
	var bus *EventBus
	bus.Publish(newTestEvent(EventLog, "nil bus"))
}
