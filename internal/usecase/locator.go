package usecase

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"mastervol/internal/domain"
	"mastervol/internal/logging"
)

// MasterVolumeUseCase is the primary port for master volume operations.
type MasterVolumeUseCase interface {
	// FindMasterLine returns the first target line whose description matches
	// the master heuristic. found is false when no line matches.
	FindMasterLine() (line domain.MasterLine, found bool, err error)
	// GetVolume returns the master volume, or 0 when there is no master line
	// or the master line has no volume control.
	GetVolume() (float32, error)
	// SetVolume writes v into the master volume control.
	SetVolume(v float32) error
	// DescribeTopology renders every mixer, line and control for diagnostics.
	DescribeTopology() (string, error)
	// Service exposes the pure conversion helpers used by adapters.
	Service() *domain.VolumeService
}

// masterVolumeInteractor implements MasterVolumeUseCase.
// It depends only on domain layer and secondary ports.
type masterVolumeInteractor struct {
	system  domain.AudioSystem
	service *domain.VolumeService

	// mu serializes master volume operations so a line's open/close
	// balance holds when several primary adapters share the interactor.
	mu sync.Mutex
}

// NewMasterVolumeUseCase creates a new master volume use case.
// Dependencies are injected (secondary ports).
func NewMasterVolumeUseCase(system domain.AudioSystem, masterMatch string) (MasterVolumeUseCase, error) {
	if system == nil {
		return nil, errors.New("audio system is required")
	}
	return &masterVolumeInteractor{
		system:  system,
		service: domain.NewVolumeService(masterMatch),
	}, nil
}

func (m *masterVolumeInteractor) Service() *domain.VolumeService {
	return m.service
}

func (m *masterVolumeInteractor) FindMasterLine() (domain.MasterLine, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findMasterLine()
}

func (m *masterVolumeInteractor) findMasterLine() (domain.MasterLine, bool, error) {
	mixers, err := m.system.Mixers()
	if err != nil {
		return domain.MasterLine{}, false, fmt.Errorf("enumerate mixers: %w", err)
	}
	for _, mixer := range mixers {
		for _, line := range m.availableLines(mixer, domain.DirectionTarget) {
			if m.service.IsMasterLine(line.Info()) {
				logging.Debugf("master line %q on mixer %q", line.Info(), mixer.Name())
				return domain.MasterLine{Mixer: mixer, Line: line}, true, nil
			}
		}
	}
	return domain.MasterLine{}, false, nil
}

// availableLines obtains every line of the given direction, skipping the ones
// the mixer refuses to hand out.
func (m *masterVolumeInteractor) availableLines(mixer domain.Mixer, dir domain.Direction) []domain.Line {
	var (
		infos []domain.LineInfo
		err   error
	)
	if dir == domain.DirectionTarget {
		infos, err = mixer.TargetLines()
	} else {
		infos, err = mixer.SourceLines()
	}
	if err != nil {
		logging.Warnf("skip mixer %q: list %s lines: %v", mixer.Name(), dir, err)
		return nil
	}

	lines := make([]domain.Line, 0, len(infos))
	for _, info := range infos {
		line, err := mixer.Line(info)
		if err != nil {
			logging.Warnf("skip line %q on mixer %q: %v", info, mixer.Name(), err)
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func (m *masterVolumeInteractor) GetVolume() (volume float32, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	master, found, err := m.findMasterLine()
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	release, err := acquire(master.Line)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := release(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	control, ok := volumeControl(master.Line)
	if !ok {
		return 0, nil
	}
	v, err := control.Value()
	if err != nil {
		return 0, fmt.Errorf("read %q on %q: %w", control.Name(), master.Line.Info(), err)
	}
	return v, nil
}

func (m *masterVolumeInteractor) SetVolume(v float32) (err error) {
	if err := m.service.ValidateVolume(v); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	master, found, err := m.findMasterLine()
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: no target line contains %q", domain.ErrDeviceNotFound, m.service.MasterMatch())
	}

	release, err := acquire(master.Line)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := release(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	control, ok := volumeControl(master.Line)
	if !ok {
		return fmt.Errorf("%w in master port: %s", domain.ErrControlNotFound, master.Line.Info())
	}
	if err := control.SetValue(v); err != nil {
		return fmt.Errorf("write %q on %q: %w", control.Name(), master.Line.Info(), err)
	}
	return nil
}

func (m *masterVolumeInteractor) DescribeTopology() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mixers, err := m.system.Mixers()
	if err != nil {
		return "", fmt.Errorf("enumerate mixers: %w", err)
	}

	var sb strings.Builder
	for _, mixer := range mixers {
		state := "closed"
		if mixer.IsOpen() {
			state = "open"
		}
		fmt.Fprintf(&sb, "Mixer: %s (%s) [%s]\n", mixer.Name(), mixer.Description(), state)
		for _, line := range m.availableLines(mixer, domain.DirectionTarget) {
			describeLine(&sb, "OUT", line)
		}
		for _, line := range m.availableLines(mixer, domain.DirectionSource) {
			describeLine(&sb, "IN", line)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func describeLine(sb *strings.Builder, label string, line domain.Line) {
	fmt.Fprintf(sb, "  %s: %s\n", label, line.Info())
	release, err := acquire(line)
	if err != nil {
		logging.Debugf("describe %q without controls: %v", line.Info(), err)
		return
	}
	for _, control := range line.Controls() {
		fmt.Fprintf(sb, "    Control: %s\n", domain.DescribeControl(control))
		if compound, ok := control.(domain.CompoundControl); ok {
			for _, sub := range compound.Members() {
				fmt.Fprintf(sb, "      Sub-Control: %s\n", domain.DescribeControl(sub))
			}
		}
	}
	if err := release(); err != nil {
		logging.Warnf("close %q: %v", line.Info(), err)
	}
}

// acquire opens line if it is closed. The returned release closes it again
// only when this call was the one that opened it.
func acquire(line domain.Line) (release func() error, err error) {
	if line.IsOpen() {
		return func() error { return nil }, nil
	}
	if err := line.Open(); err != nil {
		if errors.Is(err, domain.ErrLineUnavailable) {
			return nil, fmt.Errorf("open %q: %w", line.Info(), err)
		}
		return nil, fmt.Errorf("open %q: %w: %v", line.Info(), domain.ErrLineUnavailable, err)
	}
	return func() error {
		if err := line.Close(); err != nil {
			return fmt.Errorf("close %q: %w", line.Info(), err)
		}
		return nil
	}, nil
}

func volumeControl(line domain.Line) (domain.FloatControl, bool) {
	control, ok := domain.FindControl(domain.ControlVolume, line.Controls()...)
	if !ok {
		return nil, false
	}
	fc, ok := control.(domain.FloatControl)
	return fc, ok
}
