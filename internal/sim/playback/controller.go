// Package playback paces an engine in wall-clock time.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/openspawn/openspawn-sub002/internal/logging"
	"github.com/openspawn/openspawn-sub002/internal/sim/engine"
)

var ErrInvalidSpeed = errors.New("playback: speed must be a positive finite number")

// Tick period bounds for very high and very low speeds.
const (
	minInterval = time.Millisecond
	maxInterval = 24 * time.Hour
)

// Engine is the part of *engine.Engine the controller drives.
type Engine interface {
	Tick() []engine.Event
	JumpToTick(target uint64) error
	Reset()
	CurrentTick() uint64
}

type State struct {
	Playing bool    `json:"playing"`
	Speed   float64 `json:"speed"`
	Tick    uint64  `json:"tick"`
}

// Controller starts, stops and paces ticks. At speed s one tick runs every
// 1s/s. All methods are safe for concurrent use.
type Controller struct {
	eng   Engine
	sched Scheduler
	log   *slog.Logger

	mu      sync.Mutex
	idle    *sync.Cond
	playing bool
	speed   float64
	cancel  Cancel

	// gen identifies the current schedule; a late fire of a replaced or
	// cancelled schedule sees a different gen and does nothing.
	gen      uint64
	inflight int
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithSpeed sets the initial speed. Invalid values are ignored.
func WithSpeed(speed float64) Option {
	return func(c *Controller) {
		if validSpeed(speed) {
			c.speed = speed
		}
	}
}

func NewController(eng Engine, sched Scheduler, opts ...Option) *Controller {
	if sched == nil {
		sched = RealScheduler{}
	}
	c := &Controller{eng: eng, sched: sched, speed: 1, log: logging.Discard()}
	c.idle = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Play starts ticking. Calling it while already playing does nothing.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	c.startLocked()
	c.log.Info("playback started", "speed", c.speed)
}

// Pause stops future ticks. A tick already running finishes; Pause does not
// wait for it, so listeners may call it.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.stopLocked()
	c.log.Info("playback paused", "tick", c.eng.CurrentTick())
}

// SetSpeed changes the tick rate. While playing, the old schedule is replaced
// before SetSpeed returns.
func (c *Controller) SetSpeed(speed float64) error {
	if !validSpeed(speed) {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, speed)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = speed
	if c.playing {
		c.stopLocked()
		c.startLocked()
	}
	c.log.Info("playback speed", "speed", speed)
	return nil
}

func (c *Controller) JumpToTick(target uint64) error {
	return c.eng.JumpToTick(target)
}

// Reset stops playback and restores the engine to its starting scenario.
func (c *Controller) Reset() {
	c.Pause()
	c.eng.Reset()
}

func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Controller) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

func (c *Controller) State() State {
	c.mu.Lock()
	playing, speed := c.playing, c.speed
	c.mu.Unlock()
	return State{Playing: playing, Speed: speed, Tick: c.eng.CurrentTick()}
}

// Stop pauses and waits until no scheduled tick is running. After Stop
// returns the engine is not touched again until the next Play. It must not be
// called from an engine listener.
func (c *Controller) Stop() {
	c.Pause()
	c.mu.Lock()
	for c.inflight > 0 {
		c.idle.Wait()
	}
	c.mu.Unlock()
}

// Run plays until ctx is done, then stops.
func (c *Controller) Run(ctx context.Context) {
	c.Play()
	<-ctx.Done()
	c.Stop()
}

// Interval is the tick period for speed, clamped to [1ms, 24h].
func Interval(speed float64) time.Duration {
	f := float64(time.Second) / speed
	if f >= float64(maxInterval) {
		return maxInterval
	}
	d := time.Duration(f)
	if d < minInterval {
		return minInterval
	}
	return d
}

func (c *Controller) startLocked() {
	c.gen++
	gen := c.gen
	c.cancel = c.sched.Every(Interval(c.speed), func() { c.fire(gen) })
	c.playing = true
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if !c.playing || c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.inflight++
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inflight--
		if c.inflight == 0 {
			c.idle.Broadcast()
		}
		c.mu.Unlock()
	}()
	c.eng.Tick()
}

func (c *Controller) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.playing = false
}

func validSpeed(s float64) bool {
	return s > 0 && !math.IsInf(s, 0) && !math.IsNaN(s)
}
