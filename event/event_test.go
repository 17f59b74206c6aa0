// Copyright 2025 OpenFiscal Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/openfiscal/chainvoice/event"
	"go.uber.org/goleak"
)

func TestEventBusSingleSubscriber(t *testing.T) {
	var testEvtData int = 999
	var testEvtType event.EventType = "test.event"
	eb := event.NewEventBus(nil)
	_, subCh := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, testEvtData))
	select {
	case evt, ok := <-subCh:
		if !ok {
			t.Fatalf("event channel closed unexpectedly")
		}
		switch v := evt.Data.(type) {
		case int:
			if v != testEvtData {
				t.Fatalf("did not get expected event")
			}
		default:
			t.Fatalf("event data was not of expected type, expected int, got %T", evt.Data)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	var testEvtData int = 999
	var testEvtType event.EventType = "test.event"
	eb := event.NewEventBus(nil)
	_, sub1Ch := eb.Subscribe(testEvtType)
	_, sub2Ch := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, testEvtData))
	for _, subCh := range []<-chan event.Event{sub1Ch, sub2Ch} {
		select {
		case evt, ok := <-subCh:
			if !ok {
				t.Fatalf("event channel closed unexpectedly")
			}
			if evt.Data.(int) != testEvtData {
				t.Fatalf("did not get expected event")
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("timeout waiting for event")
		}
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	var testEvtType event.EventType = "test.event"
	eb := event.NewEventBus(nil)
	subId, subCh := eb.Subscribe(testEvtType)
	eb.Unsubscribe(testEvtType, subId)
	// The subscriber channel must be closed
	select {
	case _, ok := <-subCh:
		if ok {
			t.Fatalf("received unexpected event")
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for channel close")
	}
	// Publishing to a type with no subscribers must not panic
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 1))
}

func TestEventBusSubscribeFunc(t *testing.T) {
	defer goleak.VerifyNone(t)
	var testEvtType event.EventType = "test.event"
	var received atomic.Int64
	eb := event.NewEventBus(nil)
	subId := eb.SubscribeFunc(testEvtType, func(evt event.Event) {
		received.Add(1)
	})
	for range 3 {
		eb.Publish(testEvtType, event.NewEvent(testEvtType, nil))
	}
	deadline := time.Now().Add(2 * time.Second)
	for received.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for handler, got %d events", received.Load())
		}
		time.Sleep(10 * time.Millisecond)
	}
	// Unsubscribing closes the channel and ends the handler goroutine
	eb.Unsubscribe(testEvtType, subId)
}

func TestEventBusFullQueueDropsEvent(t *testing.T) {
	var testEvtType event.EventType = "test.event"
	eb := event.NewEventBus(nil)
	_, subCh := eb.Subscribe(testEvtType)
	// Publish must never block, even with nobody draining
	for i := range event.EventQueueSize + 5 {
		eb.Publish(testEvtType, event.NewEvent(testEvtType, i))
	}
	// Only the queue-sized prefix was delivered
	for i := range event.EventQueueSize {
		select {
		case evt := <-subCh:
			if evt.Data.(int) != i {
				t.Fatalf("expected event %d, got %v", i, evt.Data)
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("timeout draining queue")
		}
	}
	select {
	case evt := <-subCh:
		t.Fatalf("received event past queue capacity: %v", evt.Data)
	default:
	}
}
