package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/huepad/huepad/internal/hue"
)

// LightSetter is the part of the Hue client the dispatcher needs.
type LightSetter interface {
	SetLight(ctx context.Context, lightID string, upd hue.LightUpdate) error
}

const (
	// DefaultInterval follows the Hue API guideline of roughly one light
	// command per 100ms.
	DefaultInterval = 100 * time.Millisecond

	// DefaultBlinkFade is the fade-to-dark time of the blink effect.
	DefaultBlinkFade = 200 * time.Millisecond

	blinkFullBri = uint8(254)
)

// Dispatcher drains the queue on a fixed cadence and fans the drained
// commands out to the bridge. It is best-effort and stateless across
// cycles: a failed command is logged and never retried, the next identical
// state write resends it naturally.
type Dispatcher struct {
	setter    LightSetter
	queue     *Queue
	limiter   *rate.Limiter
	interval  time.Duration
	blinkFade time.Duration
}

// New creates a dispatcher draining queue into setter every interval.
func New(setter LightSetter, queue *Queue, interval, blinkFade time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if blinkFade <= 0 {
		blinkFade = DefaultBlinkFade
	}
	return &Dispatcher{
		setter:    setter,
		queue:     queue,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		interval:  interval,
		blinkFade: blinkFade,
	}
}

// Run loops until ctx is cancelled. The limiter paces cycles at a constant
// period, so a slow cycle shortens the following idle wait instead of
// stretching the gap. An in-flight cycle always completes before Run
// returns; there is no mid-cycle abort.
func (d *Dispatcher) Run(ctx context.Context) error {
	log.Info().Dur("interval", d.interval).Msg("Light dispatcher started")

	for {
		if err := d.limiter.Wait(ctx); err != nil {
			log.Info().Msg("Light dispatcher stopping")
			return nil
		}
		d.runCycle()
	}
}

// runCycle sends one command per drained light, all at once, and joins
// before returning. Firing the whole batch together is what keeps a blink
// synchronized across lights.
func (d *Dispatcher) runCycle() {
	batch := d.queue.Drain()
	if len(batch) == 0 {
		return
	}

	var wg sync.WaitGroup
	for lightID, state := range batch {
		wg.Add(1)
		go func(lightID string, state hue.LightState) {
			defer wg.Done()
			d.send(lightID, state)
		}(lightID, state)
	}
	wg.Wait()
}

// send issues the wire commands for one light. Errors are logged and
// isolated to this light and cycle.
func (d *Dispatcher) send(lightID string, state hue.LightState) {
	if state.Blink {
		d.blink(lightID, state)
		return
	}

	upd := hue.LightUpdate{Bri: state.Bri, Hue: state.Hue, Sat: state.Sat, Ct: state.Ct}
	if err := d.put(lightID, upd); err != nil {
		log.Error().Err(err).Str("light", lightID).Msg("Light update failed")
	}
}

// blink expands the blink sentinel into three sequential wire commands:
// the stored color at full brightness with no transition, a fade to dark,
// and a saturation reset. This is the only place one logical command
// becomes several.
func (d *Dispatcher) blink(lightID string, state hue.LightState) {
	var (
		dark    = uint8(0)
		grey    = uint8(0)
		full    = blinkFullBri
		instant = time.Duration(0)
	)

	steps := []hue.LightUpdate{
		{Bri: &full, Hue: state.Hue, Sat: state.Sat, Ct: state.Ct, Transition: &instant},
		{Bri: &dark, Transition: &d.blinkFade},
		{Sat: &grey, Transition: &instant},
	}
	for i, upd := range steps {
		if err := d.put(lightID, upd); err != nil {
			log.Error().Err(err).Str("light", lightID).Int("step", i).Msg("Blink step failed")
			return
		}
	}
}

// put issues a single bridge command. Each command uses a context detached
// from the run context, so shutdown never cuts a cycle short; the timeout
// still bounds a stuck bridge call to one cycle interval.
func (d *Dispatcher) put(lightID string, upd hue.LightUpdate) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.interval)
	defer cancel()
	return d.setter.SetLight(ctx, lightID, upd)
}
