package service

import (
	"sync"

	"github.com/mydia/mydia/internal/domain"
)

// Event is one progress or status change on a transcode job.
type Event struct {
	Type     string  `json:"type"` // "progress", "status"
	Status   string  `json:"status,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Elapsed  float64 `json:"elapsed_seconds,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// EventBus fans job events out to subscribers, keyed by job key.
type EventBus struct {
	subscribers map[domain.JobKey][]chan Event
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[domain.JobKey][]chan Event),
	}
}

func (eb *EventBus) Subscribe(key domain.JobKey) chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, 16)
	eb.subscribers[key] = append(eb.subscribers[key], ch)
	return ch
}

func (eb *EventBus) Unsubscribe(key domain.JobKey, ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[key]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[key] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(eb.subscribers[key]) == 0 {
		delete(eb.subscribers, key)
	}
}

func (eb *EventBus) Publish(key domain.JobKey, event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[key] {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is slow
		}
	}
}
