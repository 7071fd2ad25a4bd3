package volume

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fhs/gompd/v2/mpd"

	"mastervol/internal/domain"
)

const mpdMixerLineID = "mixer"

// mpdConn is the subset of *mpd.Client the backend uses.
type mpdConn interface {
	Status() (mpd.Attrs, error)
	SetVolume(volume int) error
	ListOutputs() ([]mpd.Attrs, error)
	EnableOutput(id int) error
	DisableOutput(id int) error
	Close() error
}

// MPDSystem implements domain.AudioSystem for a Music Player Daemon.
// The daemon is the mixer; its volume is the "Master (MPD mixer)" target line
// and each audio output is a further target line with an Enabled switch.
type MPDSystem struct {
	conn mpdConn
	addr string
}

// NewMPDSystem dials the daemon described by cfg.
func NewMPDSystem(cfg domain.MPDConfig) (*MPDSystem, error) {
	network := cfg.Network
	if network == "" {
		network = "tcp"
	}
	var (
		client *mpd.Client
		err    error
	)
	if cfg.Password != "" {
		client, err = mpd.DialAuthenticated(network, cfg.Addr, cfg.Password)
	} else {
		client, err = mpd.Dial(network, cfg.Addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect mpd %s %s: %w", network, cfg.Addr, err)
	}
	return newMPDSystem(client, cfg.Addr), nil
}

func newMPDSystem(conn mpdConn, addr string) *MPDSystem {
	return &MPDSystem{conn: conn, addr: addr}
}

func (s *MPDSystem) Mixers() ([]domain.Mixer, error) {
	return []domain.Mixer{&mpdMixer{sys: s}}, nil
}

func (s *MPDSystem) Close() error {
	return s.conn.Close()
}

type mpdMixer struct {
	sys *MPDSystem
}

func (m *mpdMixer) Name() string        { return "MPD" }
func (m *mpdMixer) Description() string { return "Music Player Daemon at " + m.sys.addr }
func (m *mpdMixer) IsOpen() bool        { return true }

func (m *mpdMixer) TargetLines() ([]domain.LineInfo, error) {
	outputs, err := m.sys.conn.ListOutputs()
	if err != nil {
		return nil, fmt.Errorf("list mpd outputs: %w", err)
	}
	infos := []domain.LineInfo{{
		ID:          mpdMixerLineID,
		Description: "Master (MPD mixer)",
		Direction:   domain.DirectionTarget,
	}}
	for _, out := range outputs {
		infos = append(infos, domain.LineInfo{
			ID:          "output:" + out["outputid"],
			Description: fmt.Sprintf("Output %s (%s)", out["outputname"], out["plugin"]),
			Direction:   domain.DirectionTarget,
		})
	}
	return infos, nil
}

func (m *mpdMixer) SourceLines() ([]domain.LineInfo, error) {
	return nil, nil
}

func (m *mpdMixer) Line(info domain.LineInfo) (domain.Line, error) {
	if info.ID == mpdMixerLineID {
		return &mpdLine{sys: m.sys, info: info}, nil
	}
	raw, ok := strings.CutPrefix(info.ID, "output:")
	if !ok {
		return nil, fmt.Errorf("%w: malformed mpd line id %q", domain.ErrLineUnavailable, info.ID)
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed mpd output id %q", domain.ErrLineUnavailable, raw)
	}
	return &mpdLine{sys: m.sys, info: info, output: &id}, nil
}

// mpdLine is either the daemon mixer (output == nil) or one audio output.
type mpdLine struct {
	sys    *MPDSystem
	info   domain.LineInfo
	output *int

	open     bool
	controls []domain.Control
}

func (l *mpdLine) Info() domain.LineInfo { return l.info }
func (l *mpdLine) IsOpen() bool          { return l.open }

func (l *mpdLine) Open() error {
	if l.output != nil {
		l.controls = []domain.Control{&mpdOutputSwitch{sys: l.sys, id: *l.output}}
		l.open = true
		return nil
	}
	status, err := l.sys.conn.Status()
	if err != nil {
		return fmt.Errorf("%w: mpd status: %v", domain.ErrLineUnavailable, err)
	}
	l.controls = nil
	// MPD reports -1 when no mixer is configured; the line then has no volume control.
	if vol, err := parseMPDVolume(status); err == nil {
		l.controls = []domain.Control{&mpdVolume{sys: l.sys, cached: vol}}
	}
	l.open = true
	return nil
}

func (l *mpdLine) Close() error {
	l.open = false
	l.controls = nil
	return nil
}

func (l *mpdLine) Controls() []domain.Control {
	if !l.open {
		return nil
	}
	return l.controls
}

type mpdVolume struct {
	sys    *MPDSystem
	cached float32
}

func (c *mpdVolume) Type() domain.ControlType { return domain.ControlVolume }
func (c *mpdVolume) Name() string             { return "Volume" }

func (c *mpdVolume) Value() (float32, error) {
	status, err := c.sys.conn.Status()
	if err != nil {
		return c.cached, fmt.Errorf("mpd status: %w", err)
	}
	v, err := parseMPDVolume(status)
	if err != nil {
		return 0, err
	}
	c.cached = v
	return v, nil
}

func (c *mpdVolume) SetValue(v float32) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: volume must be between 0 and 1, got %v", domain.ErrInvalidArgument, v)
	}
	if err := c.sys.conn.SetVolume(int(math.Round(float64(v) * 100))); err != nil {
		return fmt.Errorf("mpd setvol: %w", err)
	}
	c.cached = v
	return nil
}

type mpdOutputSwitch struct {
	sys *MPDSystem
	id  int
}

func (c *mpdOutputSwitch) Type() domain.ControlType { return domain.ControlSwitch }
func (c *mpdOutputSwitch) Name() string             { return "Enabled" }

func (c *mpdOutputSwitch) State() (bool, error) {
	outputs, err := c.sys.conn.ListOutputs()
	if err != nil {
		return false, fmt.Errorf("list mpd outputs: %w", err)
	}
	want := strconv.Itoa(c.id)
	for _, out := range outputs {
		if out["outputid"] == want {
			return out["outputenabled"] == "1", nil
		}
	}
	return false, fmt.Errorf("mpd output %d disappeared", c.id)
}

func (c *mpdOutputSwitch) SetState(on bool) error {
	if on {
		return c.sys.conn.EnableOutput(c.id)
	}
	return c.sys.conn.DisableOutput(c.id)
}

// parseMPDVolume reads the status "volume" attribute (0-100, or -1 without a mixer).
func parseMPDVolume(status mpd.Attrs) (float32, error) {
	raw, ok := status["volume"]
	if !ok {
		return 0, fmt.Errorf("%w: mpd status has no volume", domain.ErrControlNotFound)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse mpd volume %q: %w", raw, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: mpd has no mixer", domain.ErrControlNotFound)
	}
	return float32(n) / 100, nil
}
