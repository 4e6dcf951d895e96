package bus

import (
	"testing"
	"time"
)

func TestBus_BroadcastsToAllSubscribers(t *testing.T) {
	b := New(10)
	out1 := b.Subscribe("tick", "a")
	out2 := b.Subscribe("tick", "b")

	b.Publish("tick", "hello")

	select {
	case v := <-out1:
		if v != "hello" {
			t.Errorf("out1: expected %q, got %v", "hello", v)
		}
	case <-time.After(time.Second):
		t.Fatal("out1: timed out waiting for publish")
	}

	select {
	case v := <-out2:
		if v != "hello" {
			t.Errorf("out2: expected %q, got %v", "hello", v)
		}
	case <-time.After(time.Second):
		t.Fatal("out2: timed out waiting for publish")
	}
}

func TestBus_DropOldestOnFullQueue(t *testing.T) {
	b := New(2)
	out := b.Subscribe("tick", "slow")

	b.Publish("tick", 1)
	b.Publish("tick", 2)
	b.Publish("tick", 3) // queue full at 2: evicts 1, admits 3

	first := <-out
	second := <-out
	if first != 2 || second != 3 {
		t.Fatalf("expected [2 3] after drop-oldest, got [%v %v]", first, second)
	}
	select {
	case v := <-out:
		t.Fatalf("expected no further values, got %v", v)
	default:
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	b := New(1)
	_ = b.Subscribe("tick", "never-reads")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish("tick", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked against a non-draining subscriber")
	}
}

func TestBus_UnsubscribeAllClosesQueues(t *testing.T) {
	b := New(10)
	out := b.Subscribe("signal", "x")
	b.UnsubscribeAll("signal")

	if _, ok := <-out; ok {
		t.Fatal("expected queue to be closed after UnsubscribeAll")
	}
}

func TestBus_SubscribersIsolatedPerTopic(t *testing.T) {
	b := New(10)
	tick := b.Subscribe("tick", "a")
	candle := b.Subscribe("candle", "a")

	b.Publish("tick", "t")

	select {
	case v := <-tick:
		if v != "t" {
			t.Errorf("unexpected value on tick: %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on tick topic")
	}

	select {
	case v := <-candle:
		t.Fatalf("candle topic should not have received tick publish, got %v", v)
	default:
	}
}
