package service

import (
	"context"
	"sync"

	"github.com/Skotchmaster/pharmacy/internal/mykafka"
)

type published struct {
	Topic string
	Key   string
	Event mykafka.Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (f *fakePublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	ev, _ := event.(mykafka.Event)
	f.events = append(f.events, published{Topic: topic, Key: key, Event: ev})
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Event.Type
	}
	return out
}

type fakeMetrics struct {
	mu      sync.Mutex
	auth    map[string]int
	purged  int64
	mutated map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{auth: map[string]int{}, mutated: map[string]int{}}
}

func (m *fakeMetrics) AuthEvent(op, outcome string) {
	m.mu.Lock()
	m.auth[op+"/"+outcome]++
	m.mu.Unlock()
}

func (m *fakeMetrics) TokensPurged(n int64) {
	m.mu.Lock()
	m.purged += n
	m.mu.Unlock()
}

func (m *fakeMetrics) InventoryMutation(entity, action string) {
	m.mu.Lock()
	m.mutated[entity+"/"+action]++
	m.mu.Unlock()
}
