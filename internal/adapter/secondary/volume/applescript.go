package volume

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"mastervol/internal/domain"
)

// ScriptRunner executes one AppleScript snippet and returns its trimmed output.
type ScriptRunner func(script string) (string, error)

// RunOSAScript runs the native `osascript` command.
func RunOSAScript(script string) (string, error) {
	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("osascript failed: %w, output: %s", err, string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// AppleScriptSystem implements domain.AudioSystem on macOS through osascript.
// It exposes one mixer with a "Master Output" target line and an "Input" source line.
// This is a secondary adapter.
type AppleScriptSystem struct {
	mixer *appleScriptMixer
}

// NewAppleScriptSystem creates the macOS topology. A nil run uses RunOSAScript.
func NewAppleScriptSystem(run ScriptRunner) *AppleScriptSystem {
	if run == nil {
		run = RunOSAScript
	}
	m := &appleScriptMixer{run: run}
	m.output = &appleScriptLine{
		info: domain.LineInfo{ID: "output", Description: "Master Output", Direction: domain.DirectionTarget},
		controls: []domain.Control{
			&appleScriptVolume{run: run, name: "Output Volume", setting: "output"},
			&appleScriptMute{run: run},
		},
	}
	m.input = &appleScriptLine{
		info: domain.LineInfo{ID: "input", Description: "Input", Direction: domain.DirectionSource},
		controls: []domain.Control{
			&appleScriptVolume{run: run, name: "Input Volume", setting: "input"},
		},
	}
	return &AppleScriptSystem{mixer: m}
}

func (s *AppleScriptSystem) Mixers() ([]domain.Mixer, error) {
	return []domain.Mixer{s.mixer}, nil
}

func (s *AppleScriptSystem) Close() error {
	return nil
}

type appleScriptMixer struct {
	run    ScriptRunner
	output *appleScriptLine
	input  *appleScriptLine
}

func (m *appleScriptMixer) Name() string        { return "Core Audio" }
func (m *appleScriptMixer) Description() string { return "macOS system audio via osascript" }
func (m *appleScriptMixer) IsOpen() bool        { return true }

func (m *appleScriptMixer) TargetLines() ([]domain.LineInfo, error) {
	return []domain.LineInfo{m.output.info}, nil
}

func (m *appleScriptMixer) SourceLines() ([]domain.LineInfo, error) {
	return []domain.LineInfo{m.input.info}, nil
}

func (m *appleScriptMixer) Line(info domain.LineInfo) (domain.Line, error) {
	switch info.ID {
	case m.output.info.ID:
		return m.output, nil
	case m.input.info.ID:
		return m.input, nil
	default:
		return nil, fmt.Errorf("%w: unknown line %q", domain.ErrLineUnavailable, info.ID)
	}
}

// appleScriptLine has no device handle; open only gates control visibility.
type appleScriptLine struct {
	info     domain.LineInfo
	controls []domain.Control
	open     bool
}

func (l *appleScriptLine) Info() domain.LineInfo { return l.info }
func (l *appleScriptLine) IsOpen() bool          { return l.open }
func (l *appleScriptLine) Open() error           { l.open = true; return nil }
func (l *appleScriptLine) Close() error          { l.open = false; return nil }

func (l *appleScriptLine) Controls() []domain.Control {
	if !l.open {
		return nil
	}
	return l.controls
}

type appleScriptVolume struct {
	run     ScriptRunner
	name    string
	setting string // "output" or "input"
}

func (c *appleScriptVolume) Type() domain.ControlType { return domain.ControlVolume }
func (c *appleScriptVolume) Name() string             { return c.name }

func (c *appleScriptVolume) Value() (float32, error) {
	out, err := c.run(fmt.Sprintf("%s volume of (get volume settings)", c.setting))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parse %s volume %q: %w", c.setting, out, err)
	}
	return float32(n) / 100, nil
}

func (c *appleScriptVolume) SetValue(v float32) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: volume must be between 0 and 1, got %v", domain.ErrInvalidArgument, v)
	}
	percent := int(v*100 + 0.5)
	_, err := c.run(fmt.Sprintf("set volume %s volume %d", c.setting, percent))
	return err
}

type appleScriptMute struct {
	run ScriptRunner
}

func (c *appleScriptMute) Type() domain.ControlType { return domain.ControlMute }
func (c *appleScriptMute) Name() string             { return "Output Muted" }

func (c *appleScriptMute) State() (bool, error) {
	out, err := c.run("output muted of (get volume settings)")
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(out)
}

func (c *appleScriptMute) SetState(on bool) error {
	_, err := c.run(fmt.Sprintf("set volume output muted %t", on))
	return err
}
