package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/huepad/huepad/internal/config"
	"github.com/huepad/huepad/internal/controller"
	"github.com/huepad/huepad/internal/dispatch"
	"github.com/huepad/huepad/internal/hue"
	"github.com/huepad/huepad/internal/midi"
	"github.com/huepad/huepad/internal/preset"
)

// Services is a container for all application components. It manages
// initialization order and dependencies.
type Services struct {
	cfg *config.Config

	Bridge     *hue.Client
	Presets    *preset.Store
	Queue      *dispatch.Queue
	Dispatcher *dispatch.Dispatcher
	Device     *midi.Device
	Controller *controller.Controller

	wg sync.WaitGroup
}

// NewServices creates all components with proper dependency injection.
// Nothing talks to the network or the device yet; that happens in Start.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	s.Bridge = hue.NewClient(cfg.Hue.Bridge, cfg.Hue.Username, cfg.Hue.Timeout.Duration())
	s.Queue = dispatch.NewQueue()
	s.Dispatcher = dispatch.New(s.Bridge, s.Queue, cfg.Dispatch.Interval.Duration(), cfg.Dispatch.BlinkFade.Duration())
	s.Presets = preset.Open(cfg.Presets.Path, cfg.Lights)
	s.Controller = controller.New(s.Presets, s.Queue, s.Bridge, cfg.Lights)

	return s, nil
}

// Start connects to the bridge, opens the MIDI device and launches the
// dispatcher and controller loops. A missing control surface is fatal:
// the daemon is useless without one.
func (s *Services) Start(ctx context.Context) error {
	if err := s.Bridge.Connect(ctx); err != nil {
		return err
	}

	device, err := midi.OpenDevice(s.cfg.MIDI.Port)
	if err != nil {
		return err
	}
	s.Device = device

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.Dispatcher.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Dispatcher error")
		}
	}()
	go func() {
		defer s.wg.Done()
		if err := s.Controller.Run(ctx, device.Events()); err != nil {
			log.Error().Err(err).Msg("Controller error")
		}
	}()

	return nil
}

// Stop waits for the input loop and the dispatcher's current cycle to
// finish, then releases the device and the bridge client.
func (s *Services) Stop() error {
	s.wg.Wait()

	if s.Device != nil {
		s.Device.Close()
	}
	if s.Bridge != nil {
		s.Bridge.Close()
	}

	return nil
}
