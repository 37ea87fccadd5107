package midi

// Akai LPD8 wire protocol. Each message arrives as [status, data1, data2]:
//
//	                Status    Data1       Data2
//	                -------   ---------   ---------
//	Knobs (CC)      176-179   knob 1-8    position 0-127
//	PAD hit         144-147   note        velocity 0-127
//	PAD release     128-131   note        velocity
//	PROG CHNG hit   192-195   program 0-7
//
// The status byte encodes the controller program in its low bits.

// RawEvent is one raw message from the controller, as delivered by the
// MIDI transport.
type RawEvent struct {
	Status uint8
	Data1  uint8
	Data2  uint8
}

// Kind classifies a decoded controller event.
type Kind int

const (
	Unknown Kind = iota
	KnobTurn
	PadHit
	PadRelease
	ModeSelect
)

func (k Kind) String() string {
	switch k {
	case KnobTurn:
		return "knob_turn"
	case PadHit:
		return "pad_hit"
	case PadRelease:
		return "pad_release"
	case ModeSelect:
		return "mode_select"
	default:
		return "unknown"
	}
}

// Event is a decoded controller event. Only the fields relevant to its
// Kind are populated.
type Event struct {
	Kind      Kind
	Program   int   // PadHit/PadRelease: controller program, 1-based
	Pad       uint8 // PadHit/PadRelease: physical note number
	Knob      uint8 // KnobTurn
	Intensity uint8 // KnobTurn
	Slot      uint8 // ModeSelect
}

// Decode classifies a raw controller message. It is total: byte patterns
// outside the known status ranges come back as Unknown rather than erroring.
func Decode(raw RawEvent) Event {
	switch {
	case raw.Status >= 176 && raw.Status <= 179:
		return Event{Kind: KnobTurn, Knob: raw.Data1, Intensity: raw.Data2}
	case raw.Status >= 144 && raw.Status <= 147:
		return Event{Kind: PadHit, Program: int(raw.Status) - 143, Pad: raw.Data1}
	case raw.Status >= 128 && raw.Status <= 131:
		return Event{Kind: PadRelease, Program: int(raw.Status) - 127, Pad: raw.Data1}
	case raw.Status >= 192 && raw.Status <= 195:
		return Event{Kind: ModeSelect, Slot: raw.Data1}
	default:
		return Event{Kind: Unknown}
	}
}
