package volume

import (
	"errors"
	"strconv"
	"testing"

	"github.com/fhs/gompd/v2/mpd"

	"mastervol/internal/domain"
)

type fakeMPD struct {
	status  mpd.Attrs
	outputs []mpd.Attrs
	setvol  []int
	enabled map[int]bool
}

func (f *fakeMPD) Status() (mpd.Attrs, error)        { return f.status, nil }
func (f *fakeMPD) ListOutputs() ([]mpd.Attrs, error) { return f.outputs, nil }
func (f *fakeMPD) Close() error                      { return nil }

func (f *fakeMPD) SetVolume(v int) error {
	f.setvol = append(f.setvol, v)
	f.status["volume"] = strconv.Itoa(v)
	return nil
}

func (f *fakeMPD) EnableOutput(id int) error  { f.enabled[id] = true; return nil }
func (f *fakeMPD) DisableOutput(id int) error { f.enabled[id] = false; return nil }

func TestParseMPDVolume(t *testing.T) {
	tests := []struct {
		raw     string
		want    float32
		wantErr error
	}{
		{"75", 0.75, nil},
		{"0", 0, nil},
		{"-1", 0, domain.ErrControlNotFound},
	}
	for _, tt := range tests {
		got, err := parseMPDVolume(mpd.Attrs{"volume": tt.raw})
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("parseMPDVolume(%q) err = %v, want %v", tt.raw, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parseMPDVolume(%q) = %v, %v; want %v", tt.raw, got, err, tt.want)
		}
	}
	if _, err := parseMPDVolume(mpd.Attrs{}); !errors.Is(err, domain.ErrControlNotFound) {
		t.Fatalf("expected ErrControlNotFound for missing attribute, got %v", err)
	}
}

func TestMPDMixerLineVolume(t *testing.T) {
	conn := &fakeMPD{
		status:  mpd.Attrs{"volume": "40"},
		outputs: []mpd.Attrs{{"outputid": "0", "outputname": "ALSA", "plugin": "alsa", "outputenabled": "1"}},
		enabled: map[int]bool{},
	}
	sys := newMPDSystem(conn, "localhost:6600")
	mixers, _ := sys.Mixers()
	targets, err := mixers[0].TargetLines()
	if err != nil {
		t.Fatalf("TargetLines: %v", err)
	}
	if len(targets) != 2 || targets[0].Description != "Master (MPD mixer)" {
		t.Fatalf("unexpected targets %v", targets)
	}

	line, _ := mixers[0].Line(targets[0])
	if err := line.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	control, ok := domain.FindControl(domain.ControlVolume, line.Controls()...)
	if !ok {
		t.Fatal("expected volume control")
	}
	fc := control.(domain.FloatControl)
	if err := fc.SetValue(0.55); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if len(conn.setvol) != 1 || conn.setvol[0] != 55 {
		t.Fatalf("expected setvol 55, got %v", conn.setvol)
	}
	if v, _ := fc.Value(); v != 0.55 {
		t.Fatalf("expected 0.55 after set, got %v", v)
	}
	line.Close()

	out, _ := mixers[0].Line(targets[1])
	out.Open()
	sw, ok := domain.FindControl(domain.ControlSwitch, out.Controls()...)
	if !ok {
		t.Fatal("expected output switch")
	}
	if on, _ := sw.(domain.BooleanControl).State(); !on {
		t.Fatal("expected output enabled")
	}
	sw.(domain.BooleanControl).SetState(false)
	if conn.enabled[0] {
		t.Fatal("expected output 0 disabled")
	}
}

func TestMPDWithoutMixerHasNoVolumeControl(t *testing.T) {
	conn := &fakeMPD{status: mpd.Attrs{"volume": "-1"}, enabled: map[int]bool{}}
	sys := newMPDSystem(conn, "localhost:6600")
	mixers, _ := sys.Mixers()
	targets, _ := mixers[0].TargetLines()
	line, _ := mixers[0].Line(targets[0])
	line.Open()
	defer line.Close()

	if _, ok := domain.FindControl(domain.ControlVolume, line.Controls()...); ok {
		t.Fatal("expected no volume control when mpd has no mixer")
	}
}
