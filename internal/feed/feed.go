// Package feed fans out kitchen queue changes to WatchQueue subscribers.
//
// Events carry no queue data; a subscriber that receives one recomputes its
// snapshot. Publish never blocks: a subscriber whose buffer is full misses the
// event, which is harmless because the next event triggers a fresh snapshot.
package feed

import (
	"sync"
)

const bufferSize = 16

// Event notes that a cafeteria's queue changed.
type Event struct {
	CafeteriaID string
	OrderID     string
	Reason      string
}

// Feed is a per-cafeteria broadcaster. The zero value is not usable; call New.
type Feed struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Event
}

// New creates an empty Feed.
func New() *Feed {
	return &Feed{subs: make(map[string]map[int]chan Event)}
}

// Subscribe registers for events of cafeteriaID. The returned cancel func
// unregisters and closes the channel; it is safe to call more than once.
func (f *Feed) Subscribe(cafeteriaID string) (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan Event, bufferSize)
	if f.subs[cafeteriaID] == nil {
		f.subs[cafeteriaID] = make(map[int]chan Event)
	}
	f.subs[cafeteriaID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs[cafeteriaID], id)
			if len(f.subs[cafeteriaID]) == 0 {
				delete(f.subs, cafeteriaID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber of ev.CafeteriaID without blocking.
// It returns the number of subscribers that received it.
func (f *Feed) Publish(ev Event) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	delivered := 0
	for _, ch := range f.subs[ev.CafeteriaID] {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions for cafeteriaID.
func (f *Feed) Subscribers(cafeteriaID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[cafeteriaID])
}
