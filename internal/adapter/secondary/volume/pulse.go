package volume

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jfreymuth/pulse/proto"

	"mastervol/internal/domain"
)

// pulseVolumeNorm is the PulseAudio volume that means 100%.
const pulseVolumeNorm = 65536

// PulseSystem implements domain.AudioSystem against a PulseAudio (or
// pipewire-pulse) server. The server is the only mixer; sinks are its target
// lines and sources its source lines.
type PulseSystem struct {
	client pulseRequester
	conn   io.Closer
}

// pulseRequester is the subset of *proto.Client the backend uses.
type pulseRequester interface {
	Request(req proto.RequestArgs, rpl proto.Reply) error
}

// NewPulseSystem connects and authenticates to the server named in cfg.
func NewPulseSystem(cfg domain.PulseConfig) (*PulseSystem, error) {
	client, conn, err := proto.Connect(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("connect pulseaudio: %w", err)
	}
	err = client.Request(&proto.SetClientName{Props: proto.PropList{
		"application.name":       proto.PropListString("mastervol"),
		"application.process.id": proto.PropListString(strconv.Itoa(os.Getpid())),
	}}, &proto.SetClientNameReply{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("pulseaudio client name: %w", err)
	}
	return newPulseSystem(client, conn), nil
}

func newPulseSystem(client pulseRequester, conn io.Closer) *PulseSystem {
	return &PulseSystem{client: client, conn: conn}
}

func (s *PulseSystem) Mixers() ([]domain.Mixer, error) {
	var info proto.GetServerInfoReply
	if err := s.client.Request(&proto.GetServerInfo{}, &info); err != nil {
		return nil, fmt.Errorf("pulseaudio server info: %w", err)
	}
	return []domain.Mixer{&pulseMixer{sys: s, info: info}}, nil
}

func (s *PulseSystem) Close() error {
	return s.conn.Close()
}

type pulseMixer struct {
	sys  *PulseSystem
	info proto.GetServerInfoReply
}

func (m *pulseMixer) Name() string {
	return fmt.Sprintf("%s@%s", m.info.PackageName, m.info.Hostname)
}

func (m *pulseMixer) Description() string {
	return fmt.Sprintf("version %s, default sink %s", m.info.PackageVersion, m.info.DefaultSinkName)
}

func (m *pulseMixer) IsOpen() bool { return true }

func (m *pulseMixer) TargetLines() ([]domain.LineInfo, error) {
	var reply proto.GetSinkInfoListReply
	if err := m.sys.client.Request(&proto.GetSinkInfoList{}, &reply); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}
	infos := make([]domain.LineInfo, 0, len(reply))
	for _, sink := range reply {
		infos = append(infos, domain.LineInfo{
			ID:          pulseLineID("sink", sink.SinkIndex),
			Description: fmt.Sprintf("%s (%s)", sink.Device, sink.SinkName),
			Direction:   domain.DirectionTarget,
		})
	}
	return infos, nil
}

func (m *pulseMixer) SourceLines() ([]domain.LineInfo, error) {
	var reply proto.GetSourceInfoListReply
	if err := m.sys.client.Request(&proto.GetSourceInfoList{}, &reply); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	infos := make([]domain.LineInfo, 0, len(reply))
	for _, source := range reply {
		infos = append(infos, domain.LineInfo{
			ID:          pulseLineID("source", source.SourceIndex),
			Description: fmt.Sprintf("%s (%s)", source.Device, source.SourceName),
			Direction:   domain.DirectionSource,
		})
	}
	return infos, nil
}

func (m *pulseMixer) Line(info domain.LineInfo) (domain.Line, error) {
	kind, index, err := parsePulseLineID(info.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLineUnavailable, err)
	}
	return &pulseLine{sys: m.sys, kind: kind, index: index, info: info}, nil
}

func pulseLineID(kind string, index uint32) string {
	return kind + ":" + strconv.FormatUint(uint64(index), 10)
}

func parsePulseLineID(id string) (kind string, index uint32, err error) {
	kind, raw, ok := strings.Cut(id, ":")
	if !ok || (kind != "sink" && kind != "source") {
		return "", 0, fmt.Errorf("malformed pulseaudio line id %q", id)
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("malformed pulseaudio line id %q: %w", id, err)
	}
	return kind, uint32(n), nil
}

// pulseDevice is the part of a sink or source reply the controls need.
type pulseDevice struct {
	volumes proto.ChannelVolumes
	mute    bool
}

// pulseLine snapshots its device on Open; a nil snapshot means closed.
type pulseLine struct {
	sys   *PulseSystem
	kind  string
	index uint32
	info  domain.LineInfo
	snap  *pulseDevice
}

func (l *pulseLine) Info() domain.LineInfo { return l.info }
func (l *pulseLine) IsOpen() bool          { return l.snap != nil }

func (l *pulseLine) Open() error {
	dev, err := l.fetch()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLineUnavailable, err)
	}
	l.snap = &dev
	return nil
}

func (l *pulseLine) Close() error {
	l.snap = nil
	return nil
}

func (l *pulseLine) Controls() []domain.Control {
	if l.snap == nil {
		return nil
	}
	return []domain.Control{&pulseVolume{line: l}, &pulseMute{line: l}}
}

func (l *pulseLine) fetch() (pulseDevice, error) {
	if l.kind == "sink" {
		var reply proto.GetSinkInfoReply
		if err := l.sys.client.Request(&proto.GetSinkInfo{SinkIndex: l.index}, &reply); err != nil {
			return pulseDevice{}, fmt.Errorf("sink %d: %w", l.index, err)
		}
		return pulseDevice{volumes: reply.ChannelVolumes, mute: reply.Mute}, nil
	}
	var reply proto.GetSourceInfoReply
	if err := l.sys.client.Request(&proto.GetSourceInfo{SourceIndex: l.index}, &reply); err != nil {
		return pulseDevice{}, fmt.Errorf("source %d: %w", l.index, err)
	}
	return pulseDevice{volumes: reply.ChannelVolumes, mute: reply.Mute}, nil
}

type pulseVolume struct {
	line *pulseLine
}

func (c *pulseVolume) Type() domain.ControlType { return domain.ControlVolume }
func (c *pulseVolume) Name() string             { return "Volume" }

func (c *pulseVolume) Value() (float32, error) {
	if c.line.snap == nil {
		return 0, fmt.Errorf("%w: %s is closed", domain.ErrLineUnavailable, c.line.info)
	}
	return meanPulseVolume(c.line.snap.volumes), nil
}

func (c *pulseVolume) SetValue(v float32) error {
	if c.line.snap == nil {
		return fmt.Errorf("%w: %s is closed", domain.ErrLineUnavailable, c.line.info)
	}
	cvol := pulseChannelVolumes(v, len(c.line.snap.volumes))
	var err error
	if c.line.kind == "sink" {
		err = c.line.sys.client.Request(&proto.SetSinkVolume{SinkIndex: c.line.index, ChannelVolumes: cvol}, nil)
	} else {
		err = c.line.sys.client.Request(&proto.SetSourceVolume{SourceIndex: c.line.index, ChannelVolumes: cvol}, nil)
	}
	if err != nil {
		return fmt.Errorf("set %s %d volume: %w", c.line.kind, c.line.index, err)
	}
	c.line.snap.volumes = cvol
	return nil
}

type pulseMute struct {
	line *pulseLine
}

func (c *pulseMute) Type() domain.ControlType { return domain.ControlMute }
func (c *pulseMute) Name() string             { return "Mute" }

func (c *pulseMute) State() (bool, error) {
	if c.line.snap == nil {
		return false, fmt.Errorf("%w: %s is closed", domain.ErrLineUnavailable, c.line.info)
	}
	return c.line.snap.mute, nil
}

func (c *pulseMute) SetState(on bool) error {
	if c.line.snap == nil {
		return fmt.Errorf("%w: %s is closed", domain.ErrLineUnavailable, c.line.info)
	}
	var err error
	if c.line.kind == "sink" {
		err = c.line.sys.client.Request(&proto.SetSinkMute{SinkIndex: c.line.index, Mute: on}, nil)
	} else {
		err = c.line.sys.client.Request(&proto.SetSourceMute{SourceIndex: c.line.index, Mute: on}, nil)
	}
	if err != nil {
		return fmt.Errorf("set %s %d mute: %w", c.line.kind, c.line.index, err)
	}
	c.line.snap.mute = on
	return nil
}

// meanPulseVolume averages the channels and normalizes so 1.0 is 100%.
// Software-boosted sinks can report more than 1.0.
func meanPulseVolume(cv proto.ChannelVolumes) float32 {
	if len(cv) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range cv {
		sum += uint64(v)
	}
	return float32(float64(sum) / float64(len(cv)) / pulseVolumeNorm)
}

// pulseChannelVolumes spreads v over every channel.
func pulseChannelVolumes(v float32, channels int) proto.ChannelVolumes {
	if channels < 1 {
		channels = 1
	}
	raw := uint32(float64(v)*pulseVolumeNorm + 0.5)
	cv := make(proto.ChannelVolumes, channels)
	for i := range cv {
		cv[i] = raw
	}
	return cv
}
