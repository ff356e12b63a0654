package engine

import "sync"

type eventListener struct {
	id uint64
	fn func(Event)
}

type tickListener struct {
	id uint64
	fn func([]Event, uint64)
}

// bus fans events out to subscribers. Listener slices are copied under the
// lock and invoked without it, so a listener may unsubscribe itself.
type bus struct {
	mu     sync.Mutex
	nextID uint64
	events []eventListener
	ticks  []tickListener
}

// OnEvent registers fn for every emitted event. The returned func removes
// exactly this registration; calling it twice is harmless.
func (e *Engine) OnEvent(fn func(Event)) (unsubscribe func()) {
	b := &e.bus
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.events = append(b.events, eventListener{id: id, fn: fn})
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, l := range b.events {
			if l.id == id {
				b.events = append(b.events[:i:i], b.events[i+1:]...)
				return
			}
		}
	}
}

// OnTick registers fn for the per-tick batch notification.
func (e *Engine) OnTick(fn func(events []Event, tick uint64)) (unsubscribe func()) {
	b := &e.bus
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.ticks = append(b.ticks, tickListener{id: id, fn: fn})
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, l := range b.ticks {
			if l.id == id {
				b.ticks = append(b.ticks[:i:i], b.ticks[i+1:]...)
				return
			}
		}
	}
}

func (b *bus) listenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events) + len(b.ticks)
}

func (b *bus) publish(evs []Event, tick uint64) {
	b.mu.Lock()
	events := append([]eventListener(nil), b.events...)
	ticks := append([]tickListener(nil), b.ticks...)
	b.mu.Unlock()

	for _, ev := range evs {
		for _, l := range events {
			l.fn(ev)
		}
	}
	for _, l := range ticks {
		l.fn(evs, tick)
	}
}
