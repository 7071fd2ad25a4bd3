package volume

import (
	"fmt"

	"mastervol/internal/domain"
)

// MemorySystem implements domain.AudioSystem entirely in memory.
// It is the simulated backend and the fixture used by tests. Not safe for
// concurrent use; the use case serializes access.
type MemorySystem struct {
	mixers []*MemoryMixer
	err    error
}

// NewMemorySystem creates an in-memory audio system with the given mixers.
func NewMemorySystem(mixers ...*MemoryMixer) *MemorySystem {
	return &MemorySystem{mixers: mixers}
}

// FailMixers makes Mixers return err (nil restores normal behavior).
func (s *MemorySystem) FailMixers(err error) {
	s.err = err
}

func (s *MemorySystem) Mixers() ([]domain.Mixer, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Mixer, len(s.mixers))
	for i, m := range s.mixers {
		out[i] = m
	}
	return out, nil
}

func (s *MemorySystem) Close() error {
	return nil
}

// MemoryMixer is an in-memory mixer.
type MemoryMixer struct {
	name        string
	description string
	open        bool
	lines       []*MemoryLine
}

func NewMemoryMixer(name, description string) *MemoryMixer {
	return &MemoryMixer{name: name, description: description}
}

// AddLine attaches line to the mixer and assigns it a stable ID.
func (m *MemoryMixer) AddLine(line *MemoryLine) *MemoryMixer {
	line.info.ID = fmt.Sprintf("%s/%s/%d", m.name, line.info.Direction, len(m.lines))
	m.lines = append(m.lines, line)
	return m
}

func (m *MemoryMixer) SetOpen(open bool) { m.open = open }

func (m *MemoryMixer) Name() string        { return m.name }
func (m *MemoryMixer) Description() string { return m.description }
func (m *MemoryMixer) IsOpen() bool        { return m.open }

func (m *MemoryMixer) TargetLines() ([]domain.LineInfo, error) {
	return m.infos(domain.DirectionTarget), nil
}

func (m *MemoryMixer) SourceLines() ([]domain.LineInfo, error) {
	return m.infos(domain.DirectionSource), nil
}

func (m *MemoryMixer) infos(dir domain.Direction) []domain.LineInfo {
	var out []domain.LineInfo
	for _, l := range m.lines {
		if l.info.Direction == dir {
			out = append(out, l.info)
		}
	}
	return out
}

func (m *MemoryMixer) Line(info domain.LineInfo) (domain.Line, error) {
	for _, l := range m.lines {
		if l.info.ID != info.ID {
			continue
		}
		if l.unavailable {
			return nil, fmt.Errorf("%w: %s", domain.ErrLineUnavailable, info)
		}
		return l, nil
	}
	return nil, fmt.Errorf("%w: no line %q on mixer %q", domain.ErrLineUnavailable, info.ID, m.name)
}

// MemoryLine is an in-memory line. Its controls are only visible while open.
type MemoryLine struct {
	info        domain.LineInfo
	controls    []domain.Control
	open        bool
	unavailable bool
	openErr     error

	opens  int
	closes int
}

func NewMemoryLine(description string, dir domain.Direction, controls ...domain.Control) *MemoryLine {
	return &MemoryLine{
		info:     domain.LineInfo{Description: description, Direction: dir},
		controls: controls,
	}
}

// SetUnavailable makes the owning mixer refuse to hand the line out.
func (l *MemoryLine) SetUnavailable(unavailable bool) { l.unavailable = unavailable }

// FailOpen makes Open return err (nil restores normal behavior).
func (l *MemoryLine) FailOpen(err error) { l.openErr = err }

// SetOpen forces the open state without counting an Open/Close call.
func (l *MemoryLine) SetOpen(open bool) { l.open = open }

// Opens and Closes report how many times Open and Close succeeded.
func (l *MemoryLine) Opens() int  { return l.opens }
func (l *MemoryLine) Closes() int { return l.closes }

func (l *MemoryLine) Info() domain.LineInfo { return l.info }
func (l *MemoryLine) IsOpen() bool          { return l.open }

func (l *MemoryLine) Open() error {
	if l.openErr != nil {
		return l.openErr
	}
	if l.open {
		return nil
	}
	l.open = true
	l.opens++
	return nil
}

func (l *MemoryLine) Close() error {
	if !l.open {
		return nil
	}
	l.open = false
	l.closes++
	return nil
}

func (l *MemoryLine) Controls() []domain.Control {
	if !l.open {
		return nil
	}
	return l.controls
}

// MemoryFloatControl is a leaf holding a scalar in [0, 1].
type MemoryFloatControl struct {
	typ   domain.ControlType
	name  string
	value float32
}

func NewFloatControl(typ domain.ControlType, name string, value float32) *MemoryFloatControl {
	return &MemoryFloatControl{typ: typ, name: name, value: value}
}

func (c *MemoryFloatControl) Type() domain.ControlType { return c.typ }
func (c *MemoryFloatControl) Name() string             { return c.name }
func (c *MemoryFloatControl) Value() (float32, error)  { return c.value, nil }

func (c *MemoryFloatControl) SetValue(v float32) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %v outside [0, 1]", domain.ErrInvalidArgument, v)
	}
	c.value = v
	return nil
}

// MemoryBooleanControl is a leaf holding an on/off state.
type MemoryBooleanControl struct {
	typ   domain.ControlType
	name  string
	state bool
}

func NewBooleanControl(typ domain.ControlType, name string, state bool) *MemoryBooleanControl {
	return &MemoryBooleanControl{typ: typ, name: name, state: state}
}

func (c *MemoryBooleanControl) Type() domain.ControlType { return c.typ }
func (c *MemoryBooleanControl) Name() string             { return c.name }
func (c *MemoryBooleanControl) State() (bool, error)     { return c.state, nil }
func (c *MemoryBooleanControl) SetState(on bool) error   { c.state = on; return nil }

// MemoryCompoundControl groups child controls in declaration order.
type MemoryCompoundControl struct {
	typ     domain.ControlType
	name    string
	members []domain.Control
}

func NewCompoundControl(typ domain.ControlType, name string, members ...domain.Control) *MemoryCompoundControl {
	return &MemoryCompoundControl{typ: typ, name: name, members: members}
}

func (c *MemoryCompoundControl) Type() domain.ControlType  { return c.typ }
func (c *MemoryCompoundControl) Name() string              { return c.name }
func (c *MemoryCompoundControl) Members() []domain.Control { return c.members }
