package usecase_test

import (
	"errors"
	"strings"
	"testing"

	"mastervol/internal/adapter/secondary/volume"
	"mastervol/internal/domain"
	"mastervol/internal/usecase"
)

type fixture struct {
	system *volume.MemorySystem
	master *volume.MemoryLine
	knob   *volume.MemoryFloatControl
	uc     usecase.MasterVolumeUseCase
}

// newFixture builds two mixers: the first has only a speaker line, the second
// a master line whose volume control sits inside a compound group.
func newFixture(t *testing.T, value float32) *fixture {
	t.Helper()
	knob := volume.NewFloatControl(domain.ControlVolume, "Volume", value)
	master := volume.NewMemoryLine("Port MASTER / Master Volume", domain.DirectionTarget,
		volume.NewBooleanControl(domain.ControlMute, "Mute", false),
		volume.NewCompoundControl(domain.ControlGroup, "Master Controls", knob),
	)
	speaker := volume.NewMemoryLine("Port SPEAKER", domain.DirectionTarget,
		volume.NewFloatControl(domain.ControlVolume, "Volume", 0.9))
	mic := volume.NewMemoryLine("Port MIC (Master input)", domain.DirectionSource,
		volume.NewFloatControl(domain.ControlVolume, "Volume", 0.1))

	system := volume.NewMemorySystem(
		volume.NewMemoryMixer("Card 0", "speakers only").AddLine(speaker),
		volume.NewMemoryMixer("Card 1", "with master").AddLine(mic).AddLine(master),
	)
	uc, err := usecase.NewMasterVolumeUseCase(system, "")
	if err != nil {
		t.Fatalf("NewMasterVolumeUseCase: %v", err)
	}
	return &fixture{system: system, master: master, knob: knob, uc: uc}
}

func TestNewMasterVolumeUseCaseRequiresSystem(t *testing.T) {
	if _, err := usecase.NewMasterVolumeUseCase(nil, ""); err == nil {
		t.Fatal("expected error for nil system")
	}
}

func TestFindMasterLineSkipsSourceLines(t *testing.T) {
	f := newFixture(t, 0.5)
	master, found, err := f.uc.FindMasterLine()
	if err != nil || !found {
		t.Fatalf("FindMasterLine: found=%t err=%v", found, err)
	}
	if master.Line.Info().Description != "Port MASTER / Master Volume" {
		t.Fatalf("picked %q", master.Line.Info())
	}
	if master.Mixer.Name() != "Card 1" {
		t.Fatalf("expected mixer Card 1, got %q", master.Mixer.Name())
	}
}

func TestFindMasterLineFirstMatchWinsAndIsStable(t *testing.T) {
	first := volume.NewMemoryLine("Master A", domain.DirectionTarget)
	second := volume.NewMemoryLine("Master B", domain.DirectionTarget)
	system := volume.NewMemorySystem(volume.NewMemoryMixer("m", "").AddLine(first).AddLine(second))
	uc, _ := usecase.NewMasterVolumeUseCase(system, "")

	for i := 0; i < 3; i++ {
		master, found, err := uc.FindMasterLine()
		if err != nil || !found {
			t.Fatalf("pass %d: found=%t err=%v", i, found, err)
		}
		if master.Line.Info().Description != "Master A" {
			t.Fatalf("pass %d: expected first match, got %q", i, master.Line.Info())
		}
	}
}

func TestFindMasterLineSkipsUnavailableLines(t *testing.T) {
	busy := volume.NewMemoryLine("Master (busy)", domain.DirectionTarget)
	busy.SetUnavailable(true)
	free := volume.NewMemoryLine("Master (free)", domain.DirectionTarget)
	system := volume.NewMemorySystem(volume.NewMemoryMixer("m", "").AddLine(busy).AddLine(free))
	uc, _ := usecase.NewMasterVolumeUseCase(system, "")

	master, found, err := uc.FindMasterLine()
	if err != nil || !found {
		t.Fatalf("FindMasterLine: found=%t err=%v", found, err)
	}
	if master.Line.Info().Description != "Master (free)" {
		t.Fatalf("expected unavailable line to be skipped, got %q", master.Line.Info())
	}
}

func TestFindMasterLineEnumerationFailure(t *testing.T) {
	f := newFixture(t, 0.5)
	f.system.FailMixers(errors.New("audio server gone"))
	if _, _, err := f.uc.FindMasterLine(); err == nil {
		t.Fatal("expected enumeration error")
	}
}

func TestGetVolumeReadsNestedControl(t *testing.T) {
	f := newFixture(t, 0.42)
	v, err := f.uc.GetVolume()
	if err != nil {
		t.Fatalf("GetVolume: %v", err)
	}
	if v != 0.42 {
		t.Fatalf("expected 0.42, got %v", v)
	}
	if got := f.uc.Service().PercentOf(v); got != 42 {
		t.Fatalf("expected 42%%, got %d", got)
	}
}

func TestSetThenGetRoundTrip(t *testing.T) {
	f := newFixture(t, 0)
	svc := f.uc.Service()
	for p := 0; p <= 100; p += 7 {
		if err := f.uc.SetVolume(svc.FromPercent(p)); err != nil {
			t.Fatalf("SetVolume(%d%%): %v", p, err)
		}
		v, err := f.uc.GetVolume()
		if err != nil {
			t.Fatalf("GetVolume: %v", err)
		}
		if got := svc.PercentOf(v); got != p {
			t.Fatalf("set %d%% read back %d%%", p, got)
		}
	}
}

func TestSetVolumeOutOfRangeLeavesValue(t *testing.T) {
	f := newFixture(t, 0.3)
	for _, v := range []float32{-0.1, 1.5, 100} {
		if err := f.uc.SetVolume(v); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("SetVolume(%v): expected ErrInvalidArgument, got %v", v, err)
		}
	}
	if got, _ := f.knob.Value(); got != 0.3 {
		t.Fatalf("value changed to %v", got)
	}
	if f.master.Opens() != 0 {
		t.Fatalf("invalid argument must not touch the topology, saw %d opens", f.master.Opens())
	}
}

func TestScopedOpenRestoresClosedLine(t *testing.T) {
	f := newFixture(t, 0.5)

	if _, err := f.uc.GetVolume(); err != nil {
		t.Fatalf("GetVolume: %v", err)
	}
	if err := f.uc.SetVolume(0.6); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if f.master.IsOpen() {
		t.Fatal("line must be closed again after get/set")
	}
	if f.master.Opens() != 2 || f.master.Closes() != 2 {
		t.Fatalf("expected balanced open/close, got %d/%d", f.master.Opens(), f.master.Closes())
	}
}

func TestScopedOpenNeverClosesForeignOpenLine(t *testing.T) {
	f := newFixture(t, 0.5)
	f.master.SetOpen(true)

	if _, err := f.uc.GetVolume(); err != nil {
		t.Fatalf("GetVolume: %v", err)
	}
	if err := f.uc.SetVolume(0.2); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if !f.master.IsOpen() {
		t.Fatal("line opened by someone else must stay open")
	}
	if f.master.Closes() != 0 {
		t.Fatalf("expected no close calls, got %d", f.master.Closes())
	}
}

func TestScopedCloseOnControlNotFound(t *testing.T) {
	bare := volume.NewMemoryLine("Master", domain.DirectionTarget,
		volume.NewBooleanControl(domain.ControlMute, "Mute", false))
	system := volume.NewMemorySystem(volume.NewMemoryMixer("m", "").AddLine(bare))
	uc, _ := usecase.NewMasterVolumeUseCase(system, "")

	v, err := uc.GetVolume()
	if err != nil || v != 0 {
		t.Fatalf("GetVolume without control = %v, %v; want 0, nil", v, err)
	}
	if err := uc.SetVolume(0.5); !errors.Is(err, domain.ErrControlNotFound) {
		t.Fatalf("expected ErrControlNotFound, got %v", err)
	}
	if bare.IsOpen() || bare.Opens() != bare.Closes() {
		t.Fatalf("unbalanced open/close: open=%t %d/%d", bare.IsOpen(), bare.Opens(), bare.Closes())
	}
}

func TestNoMasterLineAsymmetry(t *testing.T) {
	speaker := volume.NewMemoryLine("Port SPEAKER", domain.DirectionTarget,
		volume.NewFloatControl(domain.ControlVolume, "Volume", 0.8))
	system := volume.NewMemorySystem(volume.NewMemoryMixer("m", "").AddLine(speaker))
	uc, _ := usecase.NewMasterVolumeUseCase(system, "")

	v, err := uc.GetVolume()
	if err != nil || v != 0 {
		t.Fatalf("GetVolume = %v, %v; want degraded 0", v, err)
	}
	if err := uc.SetVolume(0.5); !errors.Is(err, domain.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestMasterLineOpenFailureIsLineUnavailable(t *testing.T) {
	f := newFixture(t, 0.5)
	f.master.FailOpen(errors.New("device busy"))

	if _, err := f.uc.GetVolume(); !errors.Is(err, domain.ErrLineUnavailable) {
		t.Fatalf("GetVolume: expected ErrLineUnavailable, got %v", err)
	}
	if err := f.uc.SetVolume(0.1); !errors.Is(err, domain.ErrLineUnavailable) {
		t.Fatalf("SetVolume: expected ErrLineUnavailable, got %v", err)
	}
	if got, _ := f.knob.Value(); got != 0.5 {
		t.Fatalf("value changed to %v", got)
	}
}

func TestCustomMasterMatch(t *testing.T) {
	speaker := volume.NewMemoryLine("Built-in Speakers", domain.DirectionTarget,
		volume.NewFloatControl(domain.ControlVolume, "Volume", 0.25))
	system := volume.NewMemorySystem(volume.NewMemoryMixer("m", "").AddLine(speaker))
	uc, _ := usecase.NewMasterVolumeUseCase(system, "Speakers")

	v, err := uc.GetVolume()
	if err != nil || v != 0.25 {
		t.Fatalf("GetVolume = %v, %v; want 0.25", v, err)
	}
}

func TestDescribeTopology(t *testing.T) {
	f := newFixture(t, 0.5)
	f.master.SetOpen(true)
	before, _ := f.knob.Value()

	out, err := f.uc.DescribeTopology()
	if err != nil {
		t.Fatalf("DescribeTopology: %v", err)
	}
	for _, want := range []string{
		"Mixer: Card 0 (speakers only) [closed]\n",
		"  OUT: Port SPEAKER\n",
		"    Control: Volume = 0.9 (Volume)\n",
		"Mixer: Card 1 (with master) [closed]\n",
		"  OUT: Port MASTER / Master Volume\n",
		"    Control: Mute = false (Mute)\n",
		"    Control: Master Controls (Group)\n",
		"      Sub-Control: Volume = 0.5 (Volume)\n",
		"  IN: Port MIC (Master input)\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Index(out, "OUT: Port MASTER") > strings.Index(out, "IN: Port MIC") {
		t.Errorf("output lines must precede input lines:\n%s", out)
	}

	if after, _ := f.knob.Value(); after != before {
		t.Fatalf("describe mutated the control: %v -> %v", before, after)
	}
	if !f.master.IsOpen() {
		t.Fatal("describe closed a line it did not open")
	}
	mixers, _ := f.system.Mixers()
	for _, m := range mixers {
		targets, _ := m.TargetLines()
		for _, info := range targets {
			line, _ := m.Line(info)
			if info.Description != "Port MASTER / Master Volume" && line.IsOpen() {
				t.Fatalf("describe leaked an open line %q", info)
			}
		}
	}
}
