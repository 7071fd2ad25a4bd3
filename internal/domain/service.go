package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// VolumeService provides pure domain logic for locating and converting the master volume.
// This service has no side effects and no dependencies on external concerns.
type VolumeService struct {
	masterMatch string
}

// NewVolumeService creates a service that treats lines whose description
// contains masterMatch as the master output. An empty match uses DefaultMasterMatch.
func NewVolumeService(masterMatch string) *VolumeService {
	if masterMatch == "" {
		masterMatch = DefaultMasterMatch
	}
	return &VolumeService{masterMatch: masterMatch}
}

// MasterMatch returns the substring used by IsMasterLine.
func (s *VolumeService) MasterMatch() string {
	return s.masterMatch
}

// IsMasterLine reports whether info names the master output. The match is a
// case-sensitive substring test on the description; first match wins upstream.
func (s *VolumeService) IsMasterLine(info LineInfo) bool {
	return strings.Contains(info.Description, s.masterMatch)
}

// ValidateVolume checks that v lies in the closed interval [0, 1].
func (s *VolumeService) ValidateVolume(v float32) error {
	if math.IsNaN(float64(v)) || v < 0 || v > 1 {
		return fmt.Errorf("%w: volume can only be set to a value from 0 to 1, got %v", ErrInvalidArgument, v)
	}
	return nil
}

// PercentOf converts a normalized volume to a rounded integer percentage.
// Halves round up, so 0.425 becomes 43.
func (s *VolumeService) PercentOf(v float32) int {
	return int(math.Floor(float64(v*100) + 0.5))
}

// FromPercent converts a wire percentage to a normalized volume without range checks.
func (s *VolumeService) FromPercent(p int) float32 {
	return float32(p) / 100
}

// FormatScalar renders a volume the way it travels on the wire: shortest
// float32 decimal that always carries a fractional part ("0.5", "1.0").
func (s *VolumeService) FormatScalar(v float32) string {
	out := strconv.FormatFloat(float64(v), 'f', -1, 32)
	if !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

// FindControl walks controls depth-first in declaration order and returns the
// first leaf whose type is typ. Compound controls are never returned; their
// members are searched in place.
func FindControl(typ ControlType, controls ...Control) (Control, bool) {
	for _, c := range controls {
		if compound, ok := c.(CompoundControl); ok {
			if found, ok := FindControl(typ, compound.Members()...); ok {
				return found, true
			}
			continue
		}
		if c.Type() == typ {
			return c, true
		}
	}
	return nil, false
}

// DescribeControl renders a control for diagnostics: leaves include their value.
func DescribeControl(c Control) string {
	switch ctl := c.(type) {
	case FloatControl:
		v, err := ctl.Value()
		if err != nil {
			return fmt.Sprintf("%s = ? (%s)", ctl.Name(), ctl.Type())
		}
		return fmt.Sprintf("%s = %s (%s)", ctl.Name(), strconv.FormatFloat(float64(v), 'f', -1, 32), ctl.Type())
	case BooleanControl:
		on, err := ctl.State()
		if err != nil {
			return fmt.Sprintf("%s = ? (%s)", ctl.Name(), ctl.Type())
		}
		return fmt.Sprintf("%s = %t (%s)", ctl.Name(), on, ctl.Type())
	default:
		return fmt.Sprintf("%s (%s)", c.Name(), c.Type())
	}
}
