package domain

// ConfigRepository is a secondary port that defines how to persist configuration.
// This interface is defined in the domain layer and implemented by adapters.
type ConfigRepository interface {
	Load() (Config, error)
	Save(config Config) error
}

// AudioSystem is a secondary port exposing the host's audio topology.
// Implementations enumerate fresh state on every call.
type AudioSystem interface {
	Mixers() ([]Mixer, error)
	Close() error
}

// Mixer is an audio device endpoint owning target (output) and source (input) lines.
type Mixer interface {
	Name() string
	Description() string
	IsOpen() bool
	TargetLines() ([]LineInfo, error)
	SourceLines() ([]LineInfo, error)
	// Line obtains the line described by info. It fails with ErrLineUnavailable
	// when the device refuses to hand the line out.
	Line(info LineInfo) (Line, error)
}

// Line is a signal path that must be opened before its controls are visible.
type Line interface {
	Info() LineInfo
	IsOpen() bool
	Open() error
	Close() error
	// Controls lists the top level controls in declaration order. A closed line has none.
	Controls() []Control
}

// Control is a typed knob on a line.
type Control interface {
	Type() ControlType
	Name() string
}

// FloatControl is a leaf control holding a normalized scalar.
type FloatControl interface {
	Control
	Value() (float32, error)
	SetValue(v float32) error
}

// BooleanControl is a leaf control holding an on/off state.
type BooleanControl interface {
	Control
	State() (bool, error)
	SetState(on bool) error
}

// CompoundControl owns an ordered sequence of child controls.
type CompoundControl interface {
	Control
	Members() []Control
}
