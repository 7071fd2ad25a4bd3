package domain

import (
	"fmt"
	"runtime"
	"strings"
)

// Backend names the audio topology adapter the service drives.
type Backend string

const (
	BackendSimulated Backend = "simulated"
	BackendPulse     Backend = "pulse"
	BackendMPD       Backend = "mpd"
	BackendOSAScript Backend = "osascript"
)

// ErrorPolicy decides what the protocol server does when a request fails.
type ErrorPolicy string

const (
	// PolicyTerminate closes the connection and the listener and stops serving.
	PolicyTerminate ErrorPolicy = "terminate"
	// PolicyReply answers with an ERR line and keeps the connection.
	PolicyReply ErrorPolicy = "reply"
)

// DefaultMasterMatch is the substring a line description must contain to be
// treated as the master output.
const DefaultMasterMatch = "Master"

// Config represents the service configuration entity.
// This is a pure domain model with no dependencies on external concerns.
type Config struct {
	Addr        string
	WebAddr     string
	Backend     Backend
	MasterMatch string
	OnError     ErrorPolicy
	LogFile     string

	Pulse     PulseConfig
	MPD       MPDConfig
	Simulated SimulatedTopology
}

// PulseConfig selects the PulseAudio server. Empty uses PULSE_SERVER or the default socket.
type PulseConfig struct {
	Server string
}

// MPDConfig describes how to reach a Music Player Daemon.
type MPDConfig struct {
	Network  string
	Addr     string
	Password string
}

// SimulatedTopology is an in-memory mixer tree for hosts without a usable audio stack.
type SimulatedTopology struct {
	Mixers []SimulatedMixer
}

type SimulatedMixer struct {
	Name        string
	Description string
	Lines       []SimulatedLine
}

type SimulatedLine struct {
	Description string
	Direction   string // "target" or "source"
	Unavailable bool
	Controls    []SimulatedControl
}

// SimulatedControl is a leaf when Members is empty and a compound otherwise.
type SimulatedControl struct {
	Type    string
	Name    string
	Value   float32
	State   bool
	Members []SimulatedControl
}

// DefaultBackend picks the adapter matching the host platform.
func DefaultBackend() Backend {
	switch runtime.GOOS {
	case "darwin":
		return BackendOSAScript
	case "linux":
		return BackendPulse
	default:
		return BackendSimulated
	}
}

// DefaultSimulatedTopology returns a single mixer with a master target line at 50%.
func DefaultSimulatedTopology() SimulatedTopology {
	return SimulatedTopology{
		Mixers: []SimulatedMixer{
			{
				Name:        "Simulated Audio Engine",
				Description: "in-memory mixer",
				Lines: []SimulatedLine{
					{
						Description: "Master target port",
						Direction:   "target",
						Controls: []SimulatedControl{
							{
								Type: string(ControlGroup),
								Name: "Master Controls",
								Members: []SimulatedControl{
									{Type: string(ControlVolume), Name: "Volume", Value: 0.5},
									{Type: string(ControlMute), Name: "Mute"},
								},
							},
						},
					},
					{
						Description: "Microphone source port",
						Direction:   "source",
						Controls: []SimulatedControl{
							{Type: string(ControlVolume), Name: "Volume", Value: 0.8},
						},
					},
				},
			},
		},
	}
}

// DefaultConfig returns the default configuration values.
func DefaultConfig() Config {
	return Config{
		Addr:        ":6789",
		WebAddr:     "127.0.0.1:7070",
		Backend:     DefaultBackend(),
		MasterMatch: DefaultMasterMatch,
		OnError:     PolicyTerminate,
		MPD: MPDConfig{
			Network: "tcp",
			Addr:    "localhost:6600",
		},
		Simulated: DefaultSimulatedTopology(),
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalidConfig)
	}
	switch c.Backend {
	case BackendSimulated, BackendPulse, BackendMPD, BackendOSAScript:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.MasterMatch == "" {
		return fmt.Errorf("%w: master_match must not be empty", ErrInvalidConfig)
	}
	switch c.OnError {
	case PolicyTerminate, PolicyReply:
	default:
		return fmt.Errorf("%w: on_error must be terminate or reply, got %q", ErrInvalidConfig, c.OnError)
	}
	for i, m := range c.Simulated.Mixers {
		for j, l := range m.Lines {
			if l.Direction != "target" && l.Direction != "source" {
				return fmt.Errorf("%w: simulated.mixers[%d].lines[%d]: direction must be target or source", ErrInvalidConfig, i, j)
			}
			if err := validateSimulatedControls(l.Controls); err != nil {
				return fmt.Errorf("%w: simulated.mixers[%d].lines[%d]: %v", ErrInvalidConfig, i, j, err)
			}
		}
	}
	return nil
}

func validateSimulatedControls(controls []SimulatedControl) error {
	for _, c := range controls {
		if c.Type == "" {
			return fmt.Errorf("control %q has no type", c.Name)
		}
		if len(c.Members) > 0 {
			if err := validateSimulatedControls(c.Members); err != nil {
				return err
			}
			continue
		}
		if c.Value < 0 || c.Value > 1 {
			return fmt.Errorf("control %q value %v outside [0, 1]", c.Name, c.Value)
		}
	}
	return nil
}
