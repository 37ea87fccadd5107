package controller

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/huepad/huepad/internal/dispatch"
	"github.com/huepad/huepad/internal/hue"
	"github.com/huepad/huepad/internal/midi"
	"github.com/huepad/huepad/internal/preset"
)

// Knob assignments on the LPD8.
const (
	knobBrightness = 5
	knobHue        = 6
	knobColorTemp  = 7
)

// Physical pad note → logical slot, one table per controller program. The
// two programs ship with different physical key orderings for the same
// eight slots; keeping the quirk as data lets another controller layout
// drop in without touching the handlers.
var (
	padLayoutA = map[uint8]int{36: 1, 37: 2, 38: 3, 39: 4, 40: 5, 41: 6, 42: 7, 43: 8}
	padLayoutB = map[uint8]int{35: 1, 36: 2, 42: 3, 39: 4, 37: 5, 38: 6, 46: 7, 44: 8}
)

// LiveStateReader is the part of the Hue client the controller needs to
// capture live light state on pad release.
type LiveStateReader interface {
	Light(ctx context.Context, lightID string) (*hue.LightInfo, error)
}

// Controller implements the behavioral rules for each decoded controller
// event. It owns the preset store and the pending-save flag; everything it
// wants on the lights goes through the dispatch queue.
type Controller struct {
	store    *preset.Store
	queue    *dispatch.Queue
	bridge   LiveStateReader
	lightIDs []string

	// pendingSave is set once a knob adjusted the selected lights and the
	// adjustment has not been committed to a pad preset yet.
	pendingSave bool
}

// New creates a controller over the given store, queue and bridge.
// lightIDs is the fixed set of selectable lights, in selection order.
func New(store *preset.Store, queue *dispatch.Queue, bridge LiveStateReader, lightIDs []string) *Controller {
	return &Controller{
		store:    store,
		queue:    queue,
		bridge:   bridge,
		lightIDs: lightIDs,
	}
}

// Run consumes raw controller events until ctx is cancelled. Events are
// processed one at a time; the loop never blocks on network I/O except for
// the live-state read on a pad release.
func (c *Controller) Run(ctx context.Context, events <-chan midi.RawEvent) error {
	log.Info().Msg("Controller started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Controller stopping")
			return nil
		case raw := <-events:
			c.Handle(ctx, raw)
		}
	}
}

// Handle decodes and applies a single raw controller event.
func (c *Controller) Handle(ctx context.Context, raw midi.RawEvent) {
	ev := midi.Decode(raw)
	log.Debug().
		Uint8("status", raw.Status).
		Uint8("data1", raw.Data1).
		Uint8("data2", raw.Data2).
		Stringer("kind", ev.Kind).
		Msg("Controller event")

	switch ev.Kind {
	case midi.KnobTurn:
		c.HandleKnob(ev.Knob, ev.Intensity)
	case midi.PadHit:
		c.HandlePadHit(ev.Program, ev.Pad)
	case midi.PadRelease:
		c.HandlePadRelease(ctx, ev.Program, ev.Pad)
	case midi.ModeSelect:
		c.HandleModeSelect(int(ev.Slot))
	}
}

// HandleKnob maps a knob position onto a light-state fragment and queues
// it for every selected light. Queued fragments are last-write-wins per
// light, so a fast sweep collapses to the final position.
func (c *Controller) HandleKnob(knob, intensity uint8) {
	var state hue.LightState

	switch knob {
	case knobBrightness:
		bri := uint8(int(intensity) * 2) // 0-254
		state.Bri = &bri
	case knobHue:
		h := uint16(int(intensity) * 516) // 0-65532
		sat := uint8(254)
		state.Hue = &h
		state.Sat = &sat
	case knobColorTemp:
		ct := uint16(math.Round(float64(intensity)*2.7322)) + 153 // 153-500 mireds
		state.Ct = &ct
	default:
		return
	}

	for _, lightID := range c.store.Selected() {
		c.queue.Put(lightID, state)
	}
	c.pendingSave = true
}

// HandlePadHit applies the preset behind a pad. Program 1 recalls the
// stored state verbatim and discards any uncommitted knob adjustment.
// Program 2 queues the preset as a momentary blink and leaves the
// pending-save flag alone: a blink is an effect, not a state the user is
// composing.
func (c *Controller) HandlePadHit(program int, pad uint8) {
	switch program {
	case 1:
		slot, ok := padLayoutA[pad]
		if !ok {
			return
		}
		for lightID, state := range c.store.Preset(slot) {
			c.queue.Put(lightID, state)
		}
		c.pendingSave = false
	case 2:
		slot, ok := padLayoutB[pad]
		if !ok {
			return
		}
		for lightID, state := range c.store.Preset(slot) {
			state.Blink = true
			c.queue.Put(lightID, state)
		}
	}
}

// HandlePadRelease commits live light state into a pad preset. It only
// fires on program 1 while a knob adjustment is pending: the release that
// ends a hold-and-tweak gesture is the save trigger. State is read back
// from the bridge because the queue may already have been drained.
func (c *Controller) HandlePadRelease(ctx context.Context, program int, pad uint8) {
	if program != 1 || !c.pendingSave {
		return
	}
	slot, ok := padLayoutA[pad]
	if !ok {
		return
	}

	for _, lightID := range c.store.Selected() {
		info, err := c.bridge.Light(ctx, lightID)
		if err != nil {
			log.Error().Err(err).Str("light", lightID).Msg("Failed to read live light state")
			continue
		}

		live := info.State
		bri := live.Bri
		saved := hue.LightState{Bri: &bri}
		if live.ColorMode == hue.ColorModeHS {
			h, sat := live.Hue, live.Sat
			saved.Hue = &h
			saved.Sat = &sat
		} else {
			ct := live.Ct
			saved.Ct = &ct
		}
		c.store.SetEntry(slot, lightID, saved)
	}

	log.Info().Int("slot", slot).Msg("Saving preset")
	if err := c.store.Save(); err != nil {
		log.Error().Err(err).Msg("Failed to save presets")
	}
	c.pendingSave = false
}

// HandleModeSelect switches which lights the knobs drive. Slot 0 selects
// every configured light, slots 1..n select a single one; anything else is
// a no-op. The selection is part of the durable store.
func (c *Controller) HandleModeSelect(slot int) {
	switch {
	case slot == 0:
		c.store.Select(c.lightIDs...)
	case slot >= 1 && slot <= len(c.lightIDs):
		c.store.Select(c.lightIDs[slot-1])
	default:
		return
	}

	log.Info().Strs("lights", c.store.Selected()).Msg("Switched selected lights")
	if err := c.store.Save(); err != nil {
		log.Error().Err(err).Msg("Failed to save presets")
	}
}
