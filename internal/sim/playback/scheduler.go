package playback

import (
	"sort"
	"sync"
	"time"
)

// Cancel stops a schedule. It is safe to call more than once.
type Cancel func()

// Scheduler runs fn every interval until cancelled.
type Scheduler interface {
	Every(interval time.Duration, fn func()) Cancel
}

// RealScheduler drives schedules from time.Ticker, one goroutine each.
type RealScheduler struct{}

func (RealScheduler) Every(interval time.Duration, fn func()) Cancel {
	t := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// ManualScheduler is a virtual clock for tests: schedules fire only from Advance.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	seq      int
	interval time.Duration
	next     time.Duration
	fn       func()
}

func NewManualScheduler() *ManualScheduler { return &ManualScheduler{} }

func (s *ManualScheduler) Every(interval time.Duration, fn func()) Cancel {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTimer{seq: s.seq, interval: interval, next: s.now + interval, fn: fn}
	s.timers = append(s.timers, t)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, x := range s.timers {
			if x == t {
				s.timers = append(s.timers[:i:i], s.timers[i+1:]...)
				return
			}
		}
	}
}

// Advance moves virtual time forward by d, firing due callbacks in time order.
// Callbacks run without the scheduler lock and may cancel or add schedules.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	for {
		t := s.dueLocked(target)
		if t == nil {
			break
		}
		s.now = t.next
		t.next += t.interval
		s.mu.Unlock()
		t.fn()
		s.mu.Lock()
	}
	s.now = target
	s.mu.Unlock()
}

// Pending returns the number of live schedules.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ManualScheduler) dueLocked(target time.Duration) *manualTimer {
	due := make([]*manualTimer, 0, len(s.timers))
	for _, t := range s.timers {
		if t.next <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].next != due[j].next {
			return due[i].next < due[j].next
		}
		return due[i].seq < due[j].seq
	})
	return due[0]
}
