package hue

import "time"

// ColorModeHS is reported by the bridge when a light is driven by
// hue/saturation. The other mode is "ct" (color temperature); the bridge
// keeps exactly one active per light and discards values of the other.
const ColorModeHS = "hs"

// LightState is the desired state for a single light, as stored in pad
// presets and in the dispatch queue. Pointer fields are optional: only set
// fields are sent to the bridge. Blink marks a transient blink effect and
// is never persisted.
type LightState struct {
	Bri   *uint8  `json:"bri,omitempty"` // 0-254
	Hue   *uint16 `json:"hue,omitempty"` // 0-65535
	Sat   *uint8  `json:"sat,omitempty"` // 0-254
	Ct    *uint16 `json:"ct,omitempty"`  // mireds
	Blink bool    `json:"-"`
}

// LightUpdate is one outbound /lights/{id}/state command. Nil fields are
// omitted from the request body. A nil Transition leaves the bridge's
// default fade (400ms); an explicit zero requests an instant change.
type LightUpdate struct {
	On         *bool
	Bri        *uint8
	Hue        *uint16
	Sat        *uint8
	Ct         *uint16
	Transition *time.Duration
}

// payload renders the update as a v1 API request body. The bridge measures
// transitions in 100ms steps.
func (u LightUpdate) payload() map[string]any {
	p := make(map[string]any)
	if u.On != nil {
		p["on"] = *u.On
	}
	if u.Bri != nil {
		p["bri"] = *u.Bri
	}
	if u.Hue != nil {
		p["hue"] = *u.Hue
	}
	if u.Sat != nil {
		p["sat"] = *u.Sat
	}
	if u.Ct != nil {
		p["ct"] = *u.Ct
	}
	if u.Transition != nil {
		p["transitiontime"] = uint16(*u.Transition / (100 * time.Millisecond))
	}
	return p
}

// LightInfo is the live state of a light as reported by the bridge (v1 API).
type LightInfo struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	State struct {
		On        bool   `json:"on"`
		Bri       uint8  `json:"bri"`
		Hue       uint16 `json:"hue"`
		Sat       uint8  `json:"sat"`
		Ct        uint16 `json:"ct"`
		ColorMode string `json:"colormode"`
		Reachable bool   `json:"reachable"`
	} `json:"state"`
}

// Group represents a Hue group (v1 API).
type Group struct {
	Name   string   `json:"name"`
	Lights []string `json:"lights"`
	Type   string   `json:"type"`
}
