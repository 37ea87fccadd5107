package controller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/huepad/huepad/internal/dispatch"
	"github.com/huepad/huepad/internal/hue"
	"github.com/huepad/huepad/internal/midi"
	"github.com/huepad/huepad/internal/preset"
)

func uint8Ptr(v uint8) *uint8 {
	return &v
}

func uint16Ptr(v uint16) *uint16 {
	return &v
}

type fakeBridge struct {
	lights map[string]*hue.LightInfo
	err    error
}

func (f *fakeBridge) Light(ctx context.Context, lightID string) (*hue.LightInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.lights[lightID]
	if !ok {
		return nil, errors.New("light not found")
	}
	return info, nil
}

func liveState(bri uint8, colorMode string, h uint16, sat uint8, ct uint16) *hue.LightInfo {
	info := &hue.LightInfo{Name: "fake"}
	info.State.On = true
	info.State.Bri = bri
	info.State.ColorMode = colorMode
	info.State.Hue = h
	info.State.Sat = sat
	info.State.Ct = ct
	return info
}

type fixture struct {
	ctrl   *Controller
	store  *preset.Store
	queue  *dispatch.Queue
	bridge *fakeBridge
	path   string
}

func newFixture(t *testing.T, lightIDs ...string) *fixture {
	t.Helper()
	if len(lightIDs) == 0 {
		lightIDs = []string{"1", "2"}
	}
	path := filepath.Join(t.TempDir(), "default.json")
	store := preset.Open(path, lightIDs)
	queue := dispatch.NewQueue()
	bridge := &fakeBridge{lights: map[string]*hue.LightInfo{}}
	return &fixture{
		ctrl:   New(store, queue, bridge, lightIDs),
		store:  store,
		queue:  queue,
		bridge: bridge,
		path:   path,
	}
}

func (f *fixture) saved() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func TestKnobBrightness(t *testing.T) {
	f := newFixture(t)
	f.store.Select("1")

	f.ctrl.HandleKnob(5, 100)

	batch := f.queue.Drain()
	if len(batch) != 1 {
		t.Fatalf("expected update for the selected light only, got %v", batch)
	}
	want := hue.LightState{Bri: uint8Ptr(200)}
	if !reflect.DeepEqual(batch["1"], want) {
		t.Errorf("queued %+v, want %+v", batch["1"], want)
	}
	if !f.ctrl.pendingSave {
		t.Error("knob turn must arm the pending save flag")
	}
}

func TestKnobMappingRanges(t *testing.T) {
	tests := []struct {
		name      string
		knob      uint8
		intensity uint8
		expected  hue.LightState
	}{
		{"brightness/min", 5, 0, hue.LightState{Bri: uint8Ptr(0)}},
		{"brightness/max", 5, 127, hue.LightState{Bri: uint8Ptr(254)}},
		{"hue/min", 6, 0, hue.LightState{Hue: uint16Ptr(0), Sat: uint8Ptr(254)}},
		{"hue/max", 6, 127, hue.LightState{Hue: uint16Ptr(65532), Sat: uint8Ptr(254)}},
		{"ct/min", 7, 0, hue.LightState{Ct: uint16Ptr(153)}},
		{"ct/max", 7, 127, hue.LightState{Ct: uint16Ptr(500)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.store.Select("1")

			f.ctrl.HandleKnob(tt.knob, tt.intensity)

			batch := f.queue.Drain()
			if !reflect.DeepEqual(batch["1"], tt.expected) {
				t.Errorf("queued %+v, want %+v", batch["1"], tt.expected)
			}
		})
	}
}

func TestKnobUnassignedIsNoop(t *testing.T) {
	f := newFixture(t)

	f.ctrl.HandleKnob(1, 100)
	f.ctrl.HandleKnob(8, 100)

	if f.queue.Len() != 0 {
		t.Error("unassigned knobs must not queue updates")
	}
	if f.ctrl.pendingSave {
		t.Error("unassigned knobs must not arm the pending save flag")
	}
}

func TestKnobTargetsAllSelectedLights(t *testing.T) {
	f := newFixture(t)
	// Default selection is every configured light.
	f.ctrl.HandleKnob(5, 64)

	batch := f.queue.Drain()
	if len(batch) != 2 {
		t.Fatalf("expected updates for both lights, got %v", batch)
	}
	for _, id := range []string{"1", "2"} {
		if batch[id].Bri == nil || *batch[id].Bri != 128 {
			t.Errorf("light %s queued %+v, want bri 128", id, batch[id])
		}
	}
}

func TestPadHitLayoutA(t *testing.T) {
	f := newFixture(t, "1")

	// Give each slot a distinctive brightness so the mapping is visible.
	for slot := 1; slot <= preset.SlotCount; slot++ {
		f.store.SetEntry(slot, "1", hue.LightState{Bri: uint8Ptr(uint8(slot * 10))})
	}

	pads := []uint8{36, 37, 38, 39, 40, 41, 42, 43}
	for i, pad := range pads {
		f.ctrl.HandlePadHit(1, pad)
		batch := f.queue.Drain()
		wantBri := uint8((i + 1) * 10)
		if got := batch["1"]; got.Bri == nil || *got.Bri != wantBri {
			t.Errorf("pad %d: queued %+v, want bri %d (slot %d)", pad, got, wantBri, i+1)
		}
		if got := batch["1"]; got.Blink {
			t.Errorf("pad %d: program 1 must not blink", pad)
		}
	}
}

func TestPadHitLayoutB(t *testing.T) {
	f := newFixture(t, "1")

	for slot := 1; slot <= preset.SlotCount; slot++ {
		f.store.SetEntry(slot, "1", hue.LightState{Bri: uint8Ptr(uint8(slot * 10))})
	}

	pads := []uint8{35, 36, 42, 39, 37, 38, 46, 44}
	for i, pad := range pads {
		f.ctrl.HandlePadHit(2, pad)
		batch := f.queue.Drain()
		got := batch["1"]
		wantBri := uint8((i + 1) * 10)
		if got.Bri == nil || *got.Bri != wantBri {
			t.Errorf("pad %d: queued %+v, want bri %d (slot %d)", pad, got, wantBri, i+1)
		}
		if !got.Blink {
			t.Errorf("pad %d: program 2 must queue a blink", pad)
		}
	}
}

func TestPadHitBlinkKeepsPresetAndFlag(t *testing.T) {
	f := newFixture(t, "1")
	f.store.SetEntry(1, "1", hue.LightState{Bri: uint8Ptr(200), Hue: uint16Ptr(300), Sat: uint8Ptr(254)})

	f.ctrl.HandleKnob(5, 50) // arm pending save
	f.queue.Drain()

	f.ctrl.HandlePadHit(2, 35)

	batch := f.queue.Drain()
	got := batch["1"]
	if !got.Blink || got.Hue == nil || *got.Hue != 300 {
		t.Errorf("blink must carry the preset color, got %+v", got)
	}
	if !f.ctrl.pendingSave {
		t.Error("blink hit must leave the pending save flag untouched")
	}
	// The stored preset itself must not be marked as blinking.
	if f.store.Preset(1)["1"].Blink {
		t.Error("blink leaked into the stored preset")
	}
}

func TestPadHitUnknownNoteIsNoop(t *testing.T) {
	f := newFixture(t)

	f.ctrl.HandlePadHit(1, 99)
	f.ctrl.HandlePadHit(2, 99)
	f.ctrl.HandlePadHit(3, 36)

	if f.queue.Len() != 0 {
		t.Error("unknown pads or programs must not queue updates")
	}
}

func TestPadReleaseCommitsLiveState(t *testing.T) {
	f := newFixture(t)
	f.bridge.lights["1"] = liveState(180, hue.ColorModeHS, 12345, 250, 0)
	f.bridge.lights["2"] = liveState(90, "ct", 0, 0, 400)

	f.ctrl.HandleKnob(6, 30)
	f.ctrl.HandlePadRelease(context.Background(), 1, 37)

	wantHS := hue.LightState{Bri: uint8Ptr(180), Hue: uint16Ptr(12345), Sat: uint8Ptr(250)}
	if got := f.store.Preset(2)["1"]; !reflect.DeepEqual(got, wantHS) {
		t.Errorf("slot 2 light 1 = %+v, want live hue/sat state %+v", got, wantHS)
	}
	wantCT := hue.LightState{Bri: uint8Ptr(90), Ct: uint16Ptr(400)}
	if got := f.store.Preset(2)["2"]; !reflect.DeepEqual(got, wantCT) {
		t.Errorf("slot 2 light 2 = %+v, want live ct state %+v", got, wantCT)
	}

	if !f.saved() {
		t.Error("release with pending save must persist the store")
	}
	if f.ctrl.pendingSave {
		t.Error("release must clear the pending save flag")
	}
}

func TestPadReleaseWithoutPendingIsNoop(t *testing.T) {
	f := newFixture(t, "1")
	f.bridge.lights["1"] = liveState(180, hue.ColorModeHS, 12345, 250, 0)

	// Two plain hits in a row, no knob turn in between.
	f.ctrl.HandlePadHit(1, 36)
	f.ctrl.HandlePadHit(1, 36)
	before := f.store.Preset(1)["1"]

	f.ctrl.HandlePadRelease(context.Background(), 1, 36)

	if got := f.store.Preset(1)["1"]; !reflect.DeepEqual(got, before) {
		t.Errorf("release without pending save overwrote the preset: %+v", got)
	}
	if f.saved() {
		t.Error("release without pending save must not write the file")
	}
}

func TestPadHitClearsPendingSave(t *testing.T) {
	f := newFixture(t, "1")

	f.ctrl.HandleKnob(5, 50)
	f.ctrl.HandlePadHit(1, 36) // plain recall discards the adjustment

	f.ctrl.HandlePadRelease(context.Background(), 1, 36)
	if f.saved() {
		t.Error("pad hit should have disarmed the release save")
	}
}

func TestPadReleaseOtherProgramIsNoop(t *testing.T) {
	f := newFixture(t, "1")
	f.bridge.lights["1"] = liveState(180, hue.ColorModeHS, 12345, 250, 0)

	f.ctrl.HandleKnob(5, 50)
	f.ctrl.HandlePadRelease(context.Background(), 2, 35)

	if f.saved() {
		t.Error("program 2 release must not save")
	}
	if !f.ctrl.pendingSave {
		t.Error("program 2 release must not clear the pending save flag")
	}
}

func TestPadReleaseSurvivesBridgeError(t *testing.T) {
	f := newFixture(t, "1")
	f.bridge.err = errors.New("bridge unreachable")

	f.ctrl.HandleKnob(5, 50)
	f.ctrl.HandlePadRelease(context.Background(), 1, 36)

	// The read failed, but the interaction loop must keep going and the
	// flag must still reset.
	if f.ctrl.pendingSave {
		t.Error("release must clear the pending save flag even when reads fail")
	}
}

func TestModeSelect(t *testing.T) {
	f := newFixture(t)
	f.store.Select("1")

	f.ctrl.HandleModeSelect(0)
	if got := f.store.Selected(); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("slot 0 should select all lights, got %v", got)
	}
	if !f.saved() {
		t.Error("selection change must persist the store")
	}

	f.ctrl.HandleModeSelect(2)
	if got := f.store.Selected(); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("slot 2 should select the second light, got %v", got)
	}
}

func TestModeSelectOutOfRangeIsNoop(t *testing.T) {
	f := newFixture(t)
	f.store.Select("1")

	f.ctrl.HandleModeSelect(3)
	f.ctrl.HandleModeSelect(7)

	if got := f.store.Selected(); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("out-of-range slots must not change the selection, got %v", got)
	}
	if f.saved() {
		t.Error("no-op selection must not write the file")
	}
}

func TestHandleDecodesRawEvents(t *testing.T) {
	f := newFixture(t)
	f.store.Select("1")
	ctx := context.Background()

	f.ctrl.Handle(ctx, midi.RawEvent{Status: 176, Data1: 5, Data2: 100})
	batch := f.queue.Drain()
	if batch["1"].Bri == nil || *batch["1"].Bri != 200 {
		t.Errorf("raw knob event not applied: %+v", batch["1"])
	}

	f.ctrl.Handle(ctx, midi.RawEvent{Status: 250, Data1: 0, Data2: 0})
	if f.queue.Len() != 0 {
		t.Error("unknown raw event must be ignored")
	}
}

type recordingSetter struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSetter) SetLight(ctx context.Context, lightID string, upd hue.LightUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, lightID)
	return nil
}

// A fast knob sweep followed by one dispatch cycle must reach the bridge
// as a single command carrying the final position.
func TestKnobSweepCoalescesAcrossDispatch(t *testing.T) {
	f := newFixture(t, "1")
	setter := &recordingSetter{}
	d := dispatch.New(setter, f.queue, 5*time.Millisecond, 10*time.Millisecond)

	for intensity := uint8(0); intensity <= 100; intensity++ {
		f.ctrl.HandleKnob(5, intensity)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for {
		setter.mu.Lock()
		n := len(setter.sent)
		setter.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("dispatcher never sent the coalesced update")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	setter.mu.Lock()
	defer setter.mu.Unlock()
	if len(setter.sent) != 1 || setter.sent[0] != "1" {
		t.Errorf("sweep of 101 knob events should dispatch once, sent %v", setter.sent)
	}
}
