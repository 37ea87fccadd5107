package midi

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register rtmidi driver
)

// Device wraps a MIDI input port and delivers raw controller messages on a
// channel. The channel is buffered; if the consumer falls behind, newer
// events are dropped with a warning rather than blocking the driver
// callback.
type Device struct {
	in     drivers.In
	stop   func()
	events chan RawEvent
}

const eventBuffer = 64

// OpenDevice opens the first MIDI input port whose name contains portName.
// Not finding one is an error: the daemon cannot run without a control
// surface.
func OpenDevice(portName string) (*Device, error) {
	var in drivers.In
	for _, p := range midi.GetInPorts() {
		log.Debug().Str("port", p.String()).Msg("MIDI input port")
		if strings.Contains(p.String(), portName) {
			in = p
			break
		}
	}
	if in == nil {
		return nil, fmt.Errorf("MIDI input port matching %q not found", portName)
	}

	d := &Device{in: in, events: make(chan RawEvent, eventBuffer)}
	stop, err := midi.ListenTo(in, d.onMessage)
	if err != nil {
		return nil, fmt.Errorf("listen on MIDI port %q: %w", in.String(), err)
	}
	d.stop = stop

	log.Info().Str("port", in.String()).Msg("Connected to MIDI device")
	return d, nil
}

func (d *Device) onMessage(msg midi.Message, timestampms int32) {
	raw := msg.Bytes()
	if len(raw) == 0 {
		return
	}
	ev := RawEvent{Status: raw[0]}
	if len(raw) > 1 {
		ev.Data1 = raw[1]
	}
	if len(raw) > 2 {
		ev.Data2 = raw[2]
	}

	select {
	case d.events <- ev:
	default:
		log.Warn().Uint8("status", ev.Status).Msg("Event buffer full, dropping MIDI event")
	}
}

// Events returns the stream of raw controller messages.
func (d *Device) Events() <-chan RawEvent {
	return d.events
}

// Close stops listening and releases the MIDI driver.
func (d *Device) Close() {
	if d.stop != nil {
		d.stop()
	}
	midi.CloseDriver()
}
