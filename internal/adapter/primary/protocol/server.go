package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"mastervol/internal/domain"
	"mastervol/internal/logging"
	"mastervol/internal/usecase"
)

// CurrentVolumeRequest is the only non-numeric request the server understands.
const CurrentVolumeRequest = "currentVolume"

// Server speaks the newline protocol over TCP, one connection at a time.
type Server struct {
	usecase usecase.MasterVolumeUseCase
	addr    string
	policy  domain.ErrorPolicy

	mu   sync.Mutex
	ln   net.Listener
	conn net.Conn
}

// NewServer creates a protocol server. An empty policy means terminate.
func NewServer(uc usecase.MasterVolumeUseCase, addr string, policy domain.ErrorPolicy) *Server {
	if policy == "" {
		policy = domain.PolicyTerminate
	}
	return &Server{usecase: uc, addr: addr, policy: policy}
}

// Listen binds the listening socket. Serve calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is cancelled or a request fails under
// the terminate policy. Cancellation returns nil; a fatal request error is
// returned after the connection and the listener are closed.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	defer s.closeListener()

	stop := context.AfterFunc(ctx, func() {
		s.closeListener()
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.mu.Unlock()
	})
	defer stop()

	logging.Logger().Info().
		Str("addr", ln.Addr().String()).
		Str("on_error", string(s.policy)).
		Msg("protocol server listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		if err := s.serveConn(ctx, conn); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Logger().Error().
				Err(err).
				Str("kind", domain.ErrorKind(err)).
				Msg("request failed, stopping protocol server")
			return err
		}
	}
}

func (s *Server) closeListener() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		_ = s.ln.Close()
	}
}

// serveConn handles requests in arrival order until the peer hangs up. It
// returns an error only when a request fails under the terminate policy.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) error {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		_ = conn.Close()
	}()
	if ctx.Err() != nil {
		return nil
	}

	remote := conn.RemoteAddr().String()
	log := logging.Logger().With().Str("remote", remote).Logger()
	log.Info().Msg("client connected")
	defer func() { log.Info().Msg("client disconnected") }()

	reader := bufio.NewReader(conn)
	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			log.Debug().Err(readErr).Msg("read failed")
			return nil
		}
		// a final line without a newline still counts as a request
		if line == "" && readErr != nil {
			return nil
		}
		req := strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

		resp, err := s.Handle(req)
		if err != nil {
			if s.policy != domain.PolicyReply {
				return fmt.Errorf("request %q: %w", req, err)
			}
			log.Warn().Err(err).Str("request", req).Msg("request failed")
			resp = errorReply(err)
		} else {
			log.Debug().Str("request", req).Str("response", resp).Msg("handled")
		}
		if _, err := io.WriteString(conn, resp+"\n"); err != nil {
			log.Debug().Err(err).Msg("write failed")
			return nil
		}
		if readErr != nil {
			return nil
		}
	}
}

// errorReply renders err as a single ERR line.
func errorReply(err error) string {
	msg := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(err.Error())
	return fmt.Sprintf("ERR %s: %s", domain.ErrorKind(err), msg)
}

// Handle dispatches one request line and returns the response without its
// trailing newline.
//
// "currentVolume" answers with the rounded percentage. Any other line must be
// a base-10 integer percentage; it is passed to SetVolume without a range
// check and the answer is the re-read scalar volume.
func (s *Server) Handle(req string) (string, error) {
	svc := s.usecase.Service()
	if req == CurrentVolumeRequest {
		v, err := s.usecase.GetVolume()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(svc.PercentOf(v)), nil
	}

	p, err := strconv.ParseInt(req, 10, 32)
	if err != nil {
		return "", fmt.Errorf("%w: not a volume percentage: %q", domain.ErrInvalidArgument, req)
	}
	if err := s.usecase.SetVolume(svc.FromPercent(int(p))); err != nil {
		return "", err
	}
	v, err := s.usecase.GetVolume()
	if err != nil {
		return "", err
	}
	return svc.FormatScalar(v), nil
}
