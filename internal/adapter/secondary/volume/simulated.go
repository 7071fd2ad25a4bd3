package volume

import (
	"fmt"

	"mastervol/internal/domain"
)

// NewSimulatedSystem builds an in-memory audio system from a configured topology.
func NewSimulatedSystem(topo domain.SimulatedTopology) (*MemorySystem, error) {
	mixers := make([]*MemoryMixer, 0, len(topo.Mixers))
	for _, sm := range topo.Mixers {
		mixer := NewMemoryMixer(sm.Name, sm.Description)
		for _, sl := range sm.Lines {
			dir, ok := domain.ParseDirection(sl.Direction)
			if !ok {
				return nil, fmt.Errorf("%w: line %q: unknown direction %q", domain.ErrInvalidConfig, sl.Description, sl.Direction)
			}
			line := NewMemoryLine(sl.Description, dir, simulatedControls(sl.Controls)...)
			line.SetUnavailable(sl.Unavailable)
			mixer.AddLine(line)
		}
		mixers = append(mixers, mixer)
	}
	return NewMemorySystem(mixers...), nil
}

func simulatedControls(in []domain.SimulatedControl) []domain.Control {
	out := make([]domain.Control, 0, len(in))
	for _, sc := range in {
		typ := domain.ControlType(sc.Type)
		switch {
		case len(sc.Members) > 0:
			out = append(out, NewCompoundControl(typ, sc.Name, simulatedControls(sc.Members)...))
		case typ == domain.ControlMute || typ == domain.ControlSwitch:
			out = append(out, NewBooleanControl(typ, sc.Name, sc.State))
		default:
			out = append(out, NewFloatControl(typ, sc.Name, sc.Value))
		}
	}
	return out
}
