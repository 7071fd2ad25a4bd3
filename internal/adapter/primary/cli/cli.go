package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mastervol/internal/adapter/primary/protocol"
	"mastervol/internal/adapter/primary/web"
	"mastervol/internal/adapter/secondary/repository"
	"mastervol/internal/adapter/secondary/volume"
	"mastervol/internal/domain"
	"mastervol/internal/logging"
	"mastervol/internal/usecase"
)

var (
	cfgPath   string
	verbosity int
)

// NewRootCmd creates the root CLI command.
// This is the primary adapter that translates CLI inputs to use case calls.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mastervol",
		Short:        "Query and set the master output volume",
		Long:         "Locates the master output line of the audio system and serves its volume over a line protocol, HTTP and the CLI",
		SilenceUsage: true,
	}

	defaultCfg := repository.DefaultPath()
	cmd.PersistentFlags().StringVar(&cfgPath, "config", defaultCfg, "path to the config file")
	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase logging detail (-v, -vv, ... up to 4)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.SetVerbosity(verbosity)
	}

	cmd.AddCommand(
		newServeCmd(),
		newWebCmd(),
		newGetCmd(),
		newSetCmd(),
		newDescribeCmd(),
		newRemoteCmd(),
		newConfigCmd(),
		newShellCmd(),
	)

	return cmd
}

// session bundles what a command needs to talk to the audio system.
type session struct {
	cfg    domain.Config
	system domain.AudioSystem
	uc     usecase.MasterVolumeUseCase
}

func (s *session) Close() error {
	return s.system.Close()
}

func loadConfig() (*repository.FileRepository, domain.Config, error) {
	repo, err := repository.NewFileRepository(cfgPath)
	if err != nil {
		return nil, domain.Config{}, err
	}
	cfg, err := repo.Load()
	if err != nil {
		return nil, domain.Config{}, err
	}
	if err := attachLogFile(cfg.LogFile); err != nil {
		return nil, domain.Config{}, err
	}
	return repo, cfg, nil
}

func openSession() (*session, error) {
	_, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	system, err := volume.New(cfg)
	if err != nil {
		return nil, err
	}
	uc, err := usecase.NewMasterVolumeUseCase(system, cfg.MasterMatch)
	if err != nil {
		system.Close()
		return nil, err
	}
	logging.Debugf("backend %s, master match %q", cfg.Backend, cfg.MasterMatch)
	return &session{cfg: cfg, system: system, uc: uc}, nil
}

var (
	logFilesMu sync.Mutex
	logFiles   = map[string]bool{}
)

// attachLogFile adds path as a log sink once per process; the shell runs many
// commands against the same config.
func attachLogFile(path string) error {
	if path == "" {
		return nil
	}
	logFilesMu.Lock()
	defer logFilesMu.Unlock()
	if logFiles[path] {
		return nil
	}
	if _, err := logging.AddFile(path); err != nil {
		return err
	}
	logFiles[path] = true
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the line protocol server",
		Long:  `Run the line protocol server. With on_error = terminate the first failed request stops the server and the command exits non-zero.

The master line is the first output line whose description contains master_match ("Master" by default).
PulseAudio sinks are described as "Device (sink_name)" and rarely contain "Master"; with the pulse
backend set master_match to part of your sink name (see "mastervol describe"), for example:
  mastervol config set --master-match alsa_output`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if cmd.Flags().Changed("addr") {
				s.cfg.Addr = addr
			}

			ctx, stop := signalContext()
			defer stop()

			srv := protocol.NewServer(s.uc, s.cfg.Addr, s.cfg.OnError)
			if err := srv.Listen(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mastervol listening on %s (backend %s)\n", srv.Addr(), s.cfg.Backend)
			return srv.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides the config")
	return cmd
}

func newWebCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Run the diagnostics Web UI and REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if cmd.Flags().Changed("addr") {
				s.cfg.WebAddr = addr
			}

			ctx, stop := signalContext()
			defer stop()

			srv := web.NewServer(s.uc, s.cfg.WebAddr)
			fmt.Fprintf(cmd.OutOrStdout(), "mastervol Web UI running at http://%s\n", s.cfg.WebAddr)

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			return srv.Start()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP address:port, overrides the config")
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the master volume as a percentage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			v, err := s.uc.GetVolume()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.uc.Service().PercentOf(v))
			return nil
		},
	}
}

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <percent>",
		Short: "Set the master volume and print the resulting scalar",
		Long:  percentHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			percent, err := parsePercent(args[0])
			if err != nil {
				return err
			}
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			svc := s.uc.Service()
			if err := s.uc.SetVolume(svc.FromPercent(percent)); err != nil {
				return err
			}
			v, err := s.uc.GetVolume()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), svc.FormatScalar(v))
			return nil
		},
	}
	cmd.SetFlagErrorFunc(percentFlagError)
	return cmd
}

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print every mixer, line and control",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			out, err := s.uc.DescribeTopology()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newRemoteCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a running protocol server",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "", "server address, defaults to the config addr")

	dial := func() (*protocol.Client, error) {
		target := addr
		if target == "" {
			_, cfg, err := loadConfig()
			if err != nil {
				return nil, err
			}
			target = cfg.Addr
		}
		return protocol.Dial(context.Background(), target)
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Ask the server for the current volume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			p, err := c.CurrentVolume()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}
	set := &cobra.Command{
		Use:   "set <percent>",
		Short: "Ask the server to set the volume",
		Long:  percentHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			percent, err := parsePercent(args[0])
			if err != nil {
				return err
			}
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			v, err := c.SetVolume(percent)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), domain.NewVolumeService("").FormatScalar(v))
			return nil
		},
	}
	set.SetFlagErrorFunc(percentFlagError)
	cmd.AddCommand(get, set)
	return cmd
}

const percentHelp = `Percent is a base-10 integer; 100 is full volume.
Put negative values after "--", for example: set -- -5`

// percentFlagError reports a negative percentage that pflag took for an
// unknown shorthand flag as an invalid argument.
func percentFlagError(cmd *cobra.Command, err error) error {
	fields := strings.Fields(err.Error())
	if len(fields) > 0 && strings.HasPrefix(err.Error(), "unknown shorthand flag") {
		if _, perr := strconv.ParseInt(fields[len(fields)-1], 10, 32); perr == nil {
			return fmt.Errorf("%w: percent %s is not in [0, 100], use \"--\" before negative values", domain.ErrInvalidArgument, fields[len(fields)-1])
		}
	}
	return err
}

func parsePercent(s string) (int, error) {
	p, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: percent must be an integer, got %q", domain.ErrInvalidArgument, s)
	}
	return int(p), nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or update the configuration",
	}
	cmd.AddCommand(newConfigGetCmd(), newConfigSetCmd())
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), repo.Path(), cfg)
			return nil
		},
	}
}

func printConfig(w io.Writer, path string, cfg domain.Config) {
	fmt.Fprintf(w, "# %s\n", path)
	fmt.Fprintf(w, "addr         = %q\n", cfg.Addr)
	fmt.Fprintf(w, "web_addr     = %q\n", cfg.WebAddr)
	fmt.Fprintf(w, "backend      = %q\n", cfg.Backend)
	fmt.Fprintf(w, "master_match = %q\n", cfg.MasterMatch)
	fmt.Fprintf(w, "on_error     = %q\n", cfg.OnError)
	if cfg.LogFile != "" {
		fmt.Fprintf(w, "log_file     = %q\n", cfg.LogFile)
	}
	switch cfg.Backend {
	case domain.BackendPulse:
		fmt.Fprintf(w, "pulse.server = %q\n", cfg.Pulse.Server)
	case domain.BackendMPD:
		fmt.Fprintf(w, "mpd.network  = %q\n", cfg.MPD.Network)
		fmt.Fprintf(w, "mpd.addr     = %q\n", cfg.MPD.Addr)
	case domain.BackendSimulated:
		fmt.Fprintf(w, "simulated    = %d mixer(s)\n", len(cfg.Simulated.Mixers))
	}
}

func newConfigSetCmd() *cobra.Command {
	var (
		addrFlag    string
		webAddrFlag string
		backendFlag string
		matchFlag   string
		onErrorFlag string
		logFileFlag string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update configuration keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, cfg, err := loadConfig()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addrFlag
			}
			if flags.Changed("web-addr") {
				cfg.WebAddr = webAddrFlag
			}
			if flags.Changed("backend") {
				cfg.Backend = domain.Backend(backendFlag)
			}
			if flags.Changed("master-match") {
				cfg.MasterMatch = matchFlag
			}
			if flags.Changed("on-error") {
				cfg.OnError = domain.ErrorPolicy(onErrorFlag)
			}
			if flags.Changed("log-file") {
				cfg.LogFile = logFileFlag
			}

			if err := repo.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved: addr=%s backend=%s master_match=%q on_error=%s\n",
				cfg.Addr, cfg.Backend, cfg.MasterMatch, cfg.OnError)
			return nil
		},
	}
	cmd.Flags().StringVar(&addrFlag, "addr", "", "protocol server listen address")
	cmd.Flags().StringVar(&webAddrFlag, "web-addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&backendFlag, "backend", "", "simulated|pulse|mpd|osascript")
	cmd.Flags().StringVar(&matchFlag, "master-match", "", "case-sensitive substring naming the master line; set it for the pulse backend, whose sink names rarely contain \"Master\"")
	cmd.Flags().StringVar(&onErrorFlag, "on-error", "", "terminate|reply")
	cmd.Flags().StringVar(&logFileFlag, "log-file", "", "append logs to this file (empty disables)")
	return cmd
}

func newShellCmd() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive shell that runs mastervol subcommands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveShell(prompt)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "mastervol> ", "shell prompt")
	return cmd
}

func runInteractiveShell(prompt string) error {
	historyFile := filepath.Join(os.TempDir(), "mastervol-shell.history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	sessionVerbosity := verbosity
	sessionConfig := cfgPath
	fmt.Println("Interactive shell. Type 'help' for usage, 'exit' to quit.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			fmt.Println()
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch line {
		case "exit", "quit":
			fmt.Println("Bye!")
			return nil
		case "help":
			printShellHelp()
			continue
		}
		tokens, err := shlex.Split(line)
		if err != nil {
			fmt.Printf("Parse error: %v\n", err)
			continue
		}
		if len(tokens) == 0 {
			continue
		}
		if tokens[0] == "log" {
			if err := handleShellLog(tokens[1:], &sessionVerbosity); err != nil {
				fmt.Printf("log: %v\n", err)
			}
			continue
		}
		if tokens[0] == "shell" {
			fmt.Println("Already in the shell. Enter another command or 'exit' to quit.")
			continue
		}

		if err := executeArgs(withSession(tokens, sessionConfig, sessionVerbosity)); err != nil {
			fmt.Printf("command error: %v\n", err)
		}
		sessionVerbosity = verbosity
	}
}

// withSession prepends the shell's config path and verbosity unless the
// command sets them itself.
func withSession(tokens []string, config string, v int) []string {
	out := make([]string, 0, len(tokens)+2)
	out = append(out, tokens...)
	hasConfig, hasVerbose := false, false
	for _, t := range tokens {
		switch {
		case t == "--config" || strings.HasPrefix(t, "--config="):
			hasConfig = true
		case t == "--verbose" || strings.HasPrefix(t, "--verbose=") || (strings.HasPrefix(t, "-v") && strings.Trim(t[1:], "v") == ""):
			hasVerbose = true
		}
	}
	if !hasConfig && config != "" {
		out = append(out, "--config", config)
	}
	if !hasVerbose && v > 0 {
		out = append(out, "-"+strings.Repeat("v", v))
	}
	return out
}

func executeArgs(args []string) error {
	if len(args) == 0 {
		return nil
	}
	root := NewRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func handleShellLog(args []string, sessionVerbosity *int) error {
	fs := pflag.NewFlagSet("log", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var vcount int
	var level string
	var show bool
	fs.CountVarP(&vcount, "verbose", "v", "Increase verbosity (-v... up to 4)")
	fs.StringVar(&level, "level", "", "set level (error|warn|info|debug|trace)")
	fs.BoolVarP(&show, "show", "s", false, "print the current level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case show && vcount == 0 && level == "":
		fmt.Printf("log level: %s (-v x%d)\n", logging.LevelName(), logging.Verbosity())
		return nil
	case level != "":
		_, count, err := logging.ParseLevel(level)
		if err != nil {
			return err
		}
		*sessionVerbosity = count
	case vcount > 0:
		*sessionVerbosity = vcount
	default:
		fmt.Printf("log level: %s (-v x%d)\n", logging.LevelName(), logging.Verbosity())
		return nil
	}

	verbosity = *sessionVerbosity
	logging.SetVerbosity(*sessionVerbosity)
	fmt.Printf("log level set to %s (-v x%d)\n", logging.LevelName(), logging.Verbosity())
	return nil
}

func printShellHelp() {
	fmt.Println(`Examples:
  get                          # print the master volume (percent)
  set 40                       # set the master volume to 40%
  describe                     # dump mixers, lines and controls
  serve --addr :6789           # run the line protocol server
  web --addr 127.0.0.1:7070    # run the Web UI
  remote get --addr host:6789  # query a running server
  config get                   # show the configuration
  config set --backend mpd     # update the configuration
  log -vv                      # more detailed logging
  log --show                   # print the current log level
  exit / quit                  # leave the shell`)
}
