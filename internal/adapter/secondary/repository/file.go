package repository

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"mastervol/internal/domain"
)

// FileRepository implements domain.ConfigRepository using TOML files.
// This is a secondary adapter.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

var _ domain.ConfigRepository = (*FileRepository)(nil)

// NewFileRepository creates a new file-based config repository.
func NewFileRepository(path string) (*FileRepository, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	return &FileRepository{path: path}, nil
}

// Path returns the file the repository reads and writes.
func (f *FileRepository) Path() string {
	return f.path
}

// fileConfig represents the TOML structure on disk.
type fileConfig struct {
	Addr        string        `toml:"addr"`
	WebAddr     string        `toml:"web_addr"`
	Backend     string        `toml:"backend"`
	MasterMatch string        `toml:"master_match"`
	OnError     string        `toml:"on_error"`
	LogFile     string        `toml:"log_file,omitempty"`
	Pulse       filePulse     `toml:"pulse"`
	MPD         fileMPD       `toml:"mpd"`
	Simulated   fileSimulated `toml:"simulated"`
}

type filePulse struct {
	Server string `toml:"server"`
}

type fileMPD struct {
	Network  string `toml:"network"`
	Addr     string `toml:"addr"`
	Password string `toml:"password,omitempty"`
}

type fileSimulated struct {
	Mixers []fileMixer `toml:"mixers"`
}

type fileMixer struct {
	Name        string     `toml:"name"`
	Description string     `toml:"description"`
	Lines       []fileLine `toml:"lines"`
}

type fileLine struct {
	Description string        `toml:"description"`
	Direction   string        `toml:"direction"`
	Unavailable bool          `toml:"unavailable,omitempty"`
	Controls    []fileControl `toml:"controls"`
}

type fileControl struct {
	Type    string        `toml:"type"`
	Name    string        `toml:"name"`
	Value   float32       `toml:"value,omitempty"`
	State   bool          `toml:"state,omitempty"`
	Members []fileControl `toml:"members,omitempty"`
}

// Load reads the configuration from disk. A missing file or a missing key
// keeps the default value. The result is validated.
func (f *FileRepository) Load() (domain.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cfg := domain.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(f.path, &raw)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return domain.Config{}, fmt.Errorf("load config %s: %w", f.path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return domain.Config{}, fmt.Errorf("%w: unknown keys in %s: %s", domain.ErrInvalidConfig, f.path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("web_addr") {
		cfg.WebAddr = strings.TrimSpace(raw.WebAddr)
	}
	if meta.IsDefined("backend") {
		cfg.Backend = domain.Backend(strings.TrimSpace(raw.Backend))
	}
	if meta.IsDefined("master_match") {
		// not trimmed: surrounding spaces are part of the match
		cfg.MasterMatch = raw.MasterMatch
	}
	if meta.IsDefined("on_error") {
		cfg.OnError = domain.ErrorPolicy(strings.TrimSpace(raw.OnError))
	}
	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}
	if meta.IsDefined("pulse", "server") {
		cfg.Pulse.Server = strings.TrimSpace(raw.Pulse.Server)
	}
	if meta.IsDefined("mpd", "network") {
		cfg.MPD.Network = strings.TrimSpace(raw.MPD.Network)
	}
	if meta.IsDefined("mpd", "addr") {
		cfg.MPD.Addr = strings.TrimSpace(raw.MPD.Addr)
	}
	if meta.IsDefined("mpd", "password") {
		cfg.MPD.Password = raw.MPD.Password
	}
	if meta.IsDefined("simulated", "mixers") {
		cfg.Simulated = toDomainTopology(raw.Simulated)
	}

	if err := cfg.Validate(); err != nil {
		return domain.Config{}, fmt.Errorf("%s: %w", f.path, err)
	}
	return cfg, nil
}

// Save persists the configuration to disk.
func (f *FileRepository) Save(cfg domain.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	raw := fileConfig{
		Addr:        cfg.Addr,
		WebAddr:     cfg.WebAddr,
		Backend:     string(cfg.Backend),
		MasterMatch: cfg.MasterMatch,
		OnError:     string(cfg.OnError),
		LogFile:     cfg.LogFile,
		Pulse:       filePulse{Server: cfg.Pulse.Server},
		MPD:         fileMPD{Network: cfg.MPD.Network, Addr: cfg.MPD.Addr, Password: cfg.MPD.Password},
		Simulated:   fromDomainTopology(cfg.Simulated),
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(raw); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	// Atomic write
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename tmp: %w", err)
	}

	return nil
}

func toDomainTopology(raw fileSimulated) domain.SimulatedTopology {
	topo := domain.SimulatedTopology{Mixers: make([]domain.SimulatedMixer, 0, len(raw.Mixers))}
	for _, m := range raw.Mixers {
		mixer := domain.SimulatedMixer{Name: m.Name, Description: m.Description}
		for _, l := range m.Lines {
			mixer.Lines = append(mixer.Lines, domain.SimulatedLine{
				Description: l.Description,
				Direction:   l.Direction,
				Unavailable: l.Unavailable,
				Controls:    toDomainControls(l.Controls),
			})
		}
		topo.Mixers = append(topo.Mixers, mixer)
	}
	return topo
}

func toDomainControls(raw []fileControl) []domain.SimulatedControl {
	if len(raw) == 0 {
		return nil
	}
	out := make([]domain.SimulatedControl, len(raw))
	for i, c := range raw {
		out[i] = domain.SimulatedControl{
			Type:    c.Type,
			Name:    c.Name,
			Value:   c.Value,
			State:   c.State,
			Members: toDomainControls(c.Members),
		}
	}
	return out
}

func fromDomainTopology(topo domain.SimulatedTopology) fileSimulated {
	raw := fileSimulated{Mixers: make([]fileMixer, 0, len(topo.Mixers))}
	for _, m := range topo.Mixers {
		mixer := fileMixer{Name: m.Name, Description: m.Description}
		for _, l := range m.Lines {
			mixer.Lines = append(mixer.Lines, fileLine{
				Description: l.Description,
				Direction:   l.Direction,
				Unavailable: l.Unavailable,
				Controls:    fromDomainControls(l.Controls),
			})
		}
		raw.Mixers = append(raw.Mixers, mixer)
	}
	return raw
}

func fromDomainControls(controls []domain.SimulatedControl) []fileControl {
	if len(controls) == 0 {
		return nil
	}
	out := make([]fileControl, len(controls))
	for i, c := range controls {
		out[i] = fileControl{
			Type:    c.Type,
			Name:    c.Name,
			Value:   c.Value,
			State:   c.State,
			Members: fromDomainControls(c.Members),
		}
	}
	return out
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".config", "mastervol", "config.toml")
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, "mastervol-config.toml")
}
