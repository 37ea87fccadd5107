package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/huepad/huepad/internal/hue"
)

// SlotCount is fixed by the eight-pad controller layout.
const SlotCount = 8

// Preset holds the stored light state for every known light in one pad slot.
type Preset map[string]hue.LightState

// Store is the durable pad-preset database: one preset per slot plus the
// currently selected light group, persisted as a single JSON file. It is
// owned by the controller loop and is not safe for concurrent use.
type Store struct {
	path     string
	presets  map[int]Preset
	selected []string
}

// Open loads the preset file at path. A missing or unreadable file is not
// an error: the store starts empty and the defaults are filled in, so a
// broken file can never block the interaction loop. Every slot ends up
// holding an entry for every configured light.
func Open(path string, lightIDs []string) *Store {
	s := &Store{path: path, presets: make(map[int]Preset)}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("No preset file, starting with defaults")
	} else if err := s.unmarshal(data); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to parse preset file, starting with defaults")
		s.presets = make(map[int]Preset)
		s.selected = nil
	} else {
		log.Info().Str("path", path).Msg("Loaded presets")
	}

	s.fillDefaults(lightIDs)
	return s
}

// unmarshal parses the file format: a "selectedLights" array plus one key
// per slot, "1" through "8".
func (s *Store) unmarshal(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for key, val := range raw {
		if key == "selectedLights" {
			if err := json.Unmarshal(val, &s.selected); err != nil {
				return fmt.Errorf("selectedLights: %w", err)
			}
			continue
		}

		slot, err := strconv.Atoi(key)
		if err != nil || slot < 1 || slot > SlotCount {
			log.Warn().Str("key", key).Msg("Ignoring unknown preset key")
			continue
		}

		var p Preset
		if err := json.Unmarshal(val, &p); err != nil {
			return fmt.Errorf("slot %d: %w", slot, err)
		}
		s.presets[slot] = p
	}

	return nil
}

// fillDefaults guarantees the store invariant: every slot has an entry for
// every configured light, and something is always selected.
func (s *Store) fillDefaults(lightIDs []string) {
	if len(s.selected) == 0 {
		s.selected = append([]string(nil), lightIDs...)
	}

	for slot := 1; slot <= SlotCount; slot++ {
		p := s.presets[slot]
		if p == nil {
			p = make(Preset, len(lightIDs))
			s.presets[slot] = p
		}
		for _, id := range lightIDs {
			if _, ok := p[id]; !ok {
				bri, ct := uint8(254), uint16(0)
				p[id] = hue.LightState{Bri: &bri, Ct: &ct}
			}
		}
	}
}

// Save writes the whole store back to disk, creating the directory if
// needed.
func (s *Store) Save() error {
	out := make(map[string]any, SlotCount+1)
	out["selectedLights"] = s.selected
	for slot, p := range s.presets {
		out[strconv.Itoa(slot)] = p
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preset directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write preset file: %w", err)
	}

	return nil
}

// Preset returns the preset for a slot (1..SlotCount).
func (s *Store) Preset(slot int) Preset {
	return s.presets[slot]
}

// SetEntry replaces the stored state for one light in one slot.
func (s *Store) SetEntry(slot int, lightID string, state hue.LightState) {
	if s.presets[slot] == nil {
		s.presets[slot] = make(Preset)
	}
	s.presets[slot][lightID] = state
}

// Selected returns the currently selected light IDs.
func (s *Store) Selected() []string {
	return s.selected
}

// Select replaces the selected light group.
func (s *Store) Select(lightIDs ...string) {
	s.selected = append([]string(nil), lightIDs...)
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}
