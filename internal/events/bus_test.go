package events

import (
	"testing"
	"time"
)

func TestPublishDeliversToMissionSubscriber(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe("mission-1", nil)

	bus.Publish(Event{Type: MissionStarted, MissionID: "mission-1"})

	select {
	case evt := <-sub.Ch:
		if evt.MissionID != "mission-1" {
			t.Errorf("expected mission-1, got %s", evt.MissionID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDeliversToGlobalSubscriber(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(GlobalTarget, nil)

	bus.Publish(Event{Type: MissionStarted, MissionID: "mission-1"})

	select {
	case evt := <-sub.Ch:
		if evt.Type != MissionStarted {
			t.Errorf("expected MissionStarted, got %s", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishSkipsSubscriberOfOtherMission(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe("mission-2", nil)

	bus.Publish(Event{Type: MissionStarted, MissionID: "mission-1"})

	select {
	case evt := <-sub.Ch:
		t.Fatalf("expected no event, got %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishRespectsTypeFilter(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe("mission-1", []Type{TaskCompleted})

	bus.Publish(Event{Type: MissionStarted, MissionID: "mission-1"})
	bus.Publish(Event{Type: TaskCompleted, MissionID: "mission-1"})

	select {
	case evt := <-sub.Ch:
		if evt.Type != TaskCompleted {
			t.Errorf("expected only TaskCompleted to pass the filter, got %s", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for filtered event")
	}

	select {
	case evt := <-sub.Ch:
		t.Fatalf("expected no second event, got %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe("mission-1", nil)

	bus.Unsubscribe(sub)

	_, ok := <-sub.Ch
	if ok {
		t.Error("expected channel to be closed after Unsubscribe")
	}
}

func TestCleanupMissionRemovesAllItsSubscribers(t *testing.T) {
	bus := NewBus(nil)
	sub1 := bus.Subscribe("mission-1", nil)
	sub2 := bus.Subscribe("mission-1", nil)
	global := bus.Subscribe(GlobalTarget, nil)

	bus.CleanupMission("mission-1")

	if _, ok := <-sub1.Ch; ok {
		t.Error("expected sub1 channel closed")
	}
	if _, ok := <-sub2.Ch; ok {
		t.Error("expected sub2 channel closed")
	}

	bus.Publish(Event{Type: MissionStarted, MissionID: GlobalTarget})
	select {
	case <-global.Ch:
	case <-time.After(time.Second):
		t.Fatal("expected global subscriber to survive mission cleanup")
	}
}

func TestPublishDisconnectsSlowSubscriberAfterBackpressureRetries(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe("mission-1", nil)

	// Fill the subscriber's buffer without ever draining it.
	for i := 0; i < subscriberBufferSize; i++ {
		bus.Publish(Event{Type: MissionStarted, MissionID: "mission-1"})
	}
	if bus.DroppedCount() != 0 {
		t.Fatalf("expected no drops yet, got %d", bus.DroppedCount())
	}

	// One more publish exhausts the backpressure retries (on a background
	// goroutine, not the caller) and eventually disconnects the subscriber.
	bus.Publish(Event{Type: MissionStarted, MissionID: "mission-1"})

	deadline := time.After(time.Second)
	for bus.DroppedCount() != 1 {
		select {
		case <-deadline:
			t.Fatalf("expected 1 dropped event eventually, got %d", bus.DroppedCount())
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, ok := <-sub.Ch; ok {
		// Channel still has buffered events to drain; drain until closed.
		for ok {
			_, ok = <-sub.Ch
		}
	}
}

func TestPublishReturnsImmediatelyWhenSubscriberBufferIsFull(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe("mission-1", nil)

	for i := 0; i < subscriberBufferSize; i++ {
		bus.Publish(Event{Type: MissionStarted, MissionID: "mission-1"})
	}

	start := time.Now()
	bus.Publish(Event{Type: MissionStarted, MissionID: "mission-1"})
	if elapsed := time.Since(start); elapsed > 5*time.Millisecond {
		t.Errorf("expected Publish to return without waiting on backpressure retries, took %v", elapsed)
	}
}

func TestMatchesEmptyFilterAcceptsEverything(t *testing.T) {
	if !matches(MissionStarted, nil) {
		t.Error("expected empty filter to match any type")
	}
}

func TestMatchesRejectsUnlistedType(t *testing.T) {
	if matches(MissionStarted, []Type{TaskCompleted}) {
		t.Error("expected filter to reject a type not in the list")
	}
}
