// Package device simulates the DropCheck reader: discovery, pairing and the
// guided finger-prick test that produces a new set of lab values.
package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dropcheck/internal/health"
	"github.com/rs/zerolog"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrNoCartridge    = errors.New("no test cartridge detected")
)

const (
	DefaultScanDelay     = 2 * time.Second
	DefaultPairDelay     = 1500 * time.Millisecond
	DefaultAnalysisDelay = 3 * time.Second
)

// Device is a reader found during a scan.
type Device struct {
	Name   string `json:"name"`
	Signal string `json:"signal"`
}

// Pairing is the state of a connected reader.
type Pairing struct {
	Device            Device `json:"device"`
	Status            string `json:"status"`
	CartridgeDetected bool   `json:"cartridge_detected"`
}

var knownDevices = []Device{
	{Name: "DropCheck-A7B2", Signal: "strong"},
	{Name: "DropCheck-F3C9", Signal: "medium"},
}

// Config sets the simulated delays. Negative values are treated as zero.
type Config struct {
	ScanDelay     time.Duration
	PairDelay     time.Duration
	AnalysisDelay time.Duration
	Sampler       Sampler
}

// DefaultConfig returns the delays the real reader roughly takes.
func DefaultConfig() Config {
	return Config{
		ScanDelay:     DefaultScanDelay,
		PairDelay:     DefaultPairDelay,
		AnalysisDelay: DefaultAnalysisDelay,
	}
}

type Simulator struct {
	cfg     Config
	sampler Sampler
}

func NewSimulator(cfg Config) *Simulator {
	s := cfg.Sampler
	if s == nil {
		s = NewRandomSampler()
	}
	return &Simulator{cfg: cfg, sampler: s}
}

// Scan waits for the scan delay and returns the readers in range.
func (s *Simulator) Scan(ctx context.Context) ([]Device, error) {
	if err := wait(ctx, s.cfg.ScanDelay); err != nil {
		return nil, err
	}
	devices := make([]Device, len(knownDevices))
	copy(devices, knownDevices)
	zerolog.Ctx(ctx).Debug().Int("found", len(devices)).Msg("Device scan complete")
	return devices, nil
}

// Pair connects to the named reader.
func (s *Simulator) Pair(ctx context.Context, name string) (Pairing, error) {
	dev, ok := lookup(name)
	if !ok {
		return Pairing{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
	}
	if err := wait(ctx, s.cfg.PairDelay); err != nil {
		return Pairing{}, err
	}
	zerolog.Ctx(ctx).Info().Str("device", dev.Name).Msg("Device paired")
	return Pairing{Device: dev, Status: "Connected", CartridgeDetected: true}, nil
}

// RunTest walks through the guided steps, calling progress once per step,
// then waits for the analysis and returns the sampled values. A progress
// error aborts the test.
func (s *Simulator) RunTest(ctx context.Context, p Pairing, progress func(StepEvent) error) (health.LabValues, error) {
	if _, ok := lookup(p.Device.Name); !ok {
		return health.LabValues{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, p.Device.Name)
	}
	if !p.CartridgeDetected {
		return health.LabValues{}, ErrNoCartridge
	}

	steps := Steps()
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return health.LabValues{}, err
		}
		if progress == nil {
			continue
		}
		ev := StepEvent{
			Index:    i + 1,
			Total:    len(steps),
			Step:     step,
			Progress: (i + 1) * 100 / len(steps),
		}
		if err := progress(ev); err != nil {
			return health.LabValues{}, err
		}
	}

	if err := wait(ctx, s.cfg.AnalysisDelay); err != nil {
		return health.LabValues{}, err
	}

	labs := s.sampler.Sample()
	zerolog.Ctx(ctx).Info().
		Str("device", p.Device.Name).
		Float64("hemoglobin", labs.Hemoglobin).
		Float64("glucose", labs.Glucose).
		Float64("crp", labs.CRP).
		Msg("Device test complete")
	return labs, nil
}

func lookup(name string) (Device, bool) {
	for _, d := range knownDevices {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
