package domain

// Direction tells whether a line carries signal out of (target) or into (source) the host.
type Direction int

const (
	DirectionTarget Direction = iota
	DirectionSource
)

func (d Direction) String() string {
	switch d {
	case DirectionTarget:
		return "target"
	case DirectionSource:
		return "source"
	default:
		return "unknown"
	}
}

// ParseDirection converts a config string into a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "target":
		return DirectionTarget, true
	case "source":
		return DirectionSource, true
	default:
		return DirectionTarget, false
	}
}

// LineInfo is the metadata a mixer publishes for one of its lines.
type LineInfo struct {
	ID          string
	Description string
	Direction   Direction
}

func (i LineInfo) String() string {
	return i.Description
}

// ControlType tags a control with what it adjusts.
type ControlType string

const (
	ControlVolume  ControlType = "Volume"
	ControlMute    ControlType = "Mute"
	ControlBalance ControlType = "Balance"
	ControlSwitch  ControlType = "Switch"
	ControlGroup   ControlType = "Group"
)

// MasterLine is the resolved master output: the line plus the mixer that owns it.
type MasterLine struct {
	Mixer Mixer
	Line  Line
}
