package volume

import (
	"fmt"

	"mastervol/internal/domain"
)

// New opens the audio topology adapter selected by cfg.Backend.
// Callers own the returned system and must Close it.
func New(cfg domain.Config) (domain.AudioSystem, error) {
	var (
		system domain.AudioSystem
		err    error
	)
	switch cfg.Backend {
	case domain.BackendSimulated:
		system, err = NewSimulatedSystem(cfg.Simulated)
	case domain.BackendPulse:
		system, err = NewPulseSystem(cfg.Pulse)
	case domain.BackendMPD:
		system, err = NewMPDSystem(cfg.MPD)
	case domain.BackendOSAScript:
		system = NewAppleScriptSystem(nil)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", domain.ErrInvalidConfig, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return system, nil
}
