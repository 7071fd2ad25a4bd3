package volume

import (
	"errors"
	"testing"

	"mastervol/internal/domain"
)

func TestMemoryLineControlsOnlyWhileOpen(t *testing.T) {
	line := NewMemoryLine("Master", domain.DirectionTarget, NewFloatControl(domain.ControlVolume, "Volume", 0.3))

	if got := line.Controls(); got != nil {
		t.Fatalf("closed line should expose no controls, got %d", len(got))
	}
	if err := line.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := len(line.Controls()); got != 1 {
		t.Fatalf("expected 1 control, got %d", got)
	}
	if err := line.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if line.Opens() != 1 || line.Closes() != 1 {
		t.Fatalf("expected one open and one close, got %d/%d", line.Opens(), line.Closes())
	}
}

func TestMemoryMixerUnavailableLine(t *testing.T) {
	ok := NewMemoryLine("Speaker", domain.DirectionTarget)
	bad := NewMemoryLine("Master busy", domain.DirectionTarget)
	bad.SetUnavailable(true)
	mic := NewMemoryLine("Mic", domain.DirectionSource)
	mixer := NewMemoryMixer("m", "test").AddLine(ok).AddLine(bad).AddLine(mic)

	targets, err := mixer.TargetLines()
	if err != nil {
		t.Fatalf("TargetLines: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 target lines, got %d", len(targets))
	}
	sources, _ := mixer.SourceLines()
	if len(sources) != 1 || sources[0].Description != "Mic" {
		t.Fatalf("unexpected source lines %v", sources)
	}

	if _, err := mixer.Line(targets[0]); err != nil {
		t.Fatalf("expected first line available: %v", err)
	}
	if _, err := mixer.Line(targets[1]); !errors.Is(err, domain.ErrLineUnavailable) {
		t.Fatalf("expected ErrLineUnavailable, got %v", err)
	}
}

func TestMemoryFloatControlRejectsOutOfRange(t *testing.T) {
	c := NewFloatControl(domain.ControlVolume, "Volume", 0.4)
	if err := c.SetValue(1.2); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if v, _ := c.Value(); v != 0.4 {
		t.Fatalf("value changed to %v", v)
	}
}

func TestNewSimulatedSystemFromDefaultTopology(t *testing.T) {
	sys, err := NewSimulatedSystem(domain.DefaultSimulatedTopology())
	if err != nil {
		t.Fatalf("NewSimulatedSystem: %v", err)
	}
	mixers, err := sys.Mixers()
	if err != nil || len(mixers) != 1 {
		t.Fatalf("expected one mixer, got %d (err=%v)", len(mixers), err)
	}
	targets, _ := mixers[0].TargetLines()
	line, err := mixers[0].Line(targets[0])
	if err != nil {
		t.Fatalf("Line: %v", err)
	}
	line.Open()
	defer line.Close()

	controls := line.Controls()
	group, ok := controls[0].(domain.CompoundControl)
	if !ok {
		t.Fatalf("expected compound control, got %T", controls[0])
	}
	if _, ok := group.Members()[0].(domain.FloatControl); !ok {
		t.Fatalf("expected float volume member, got %T", group.Members()[0])
	}
	if _, ok := group.Members()[1].(domain.BooleanControl); !ok {
		t.Fatalf("expected boolean mute member, got %T", group.Members()[1])
	}
}

func TestNewSimulatedSystemRejectsBadDirection(t *testing.T) {
	topo := domain.SimulatedTopology{Mixers: []domain.SimulatedMixer{{
		Name:  "m",
		Lines: []domain.SimulatedLine{{Description: "x", Direction: "up"}},
	}}}
	if _, err := NewSimulatedSystem(topo); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewBackendSelection(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Backend = domain.BackendSimulated
	sys, err := New(cfg)
	if err != nil {
		t.Fatalf("New(simulated): %v", err)
	}
	defer sys.Close()
	if _, ok := sys.(*MemorySystem); !ok {
		t.Fatalf("expected *MemorySystem, got %T", sys)
	}

	cfg.Backend = "alsa"
	if _, err := New(cfg); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
