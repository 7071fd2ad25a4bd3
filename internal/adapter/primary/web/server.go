package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"mastervol/internal/domain"
	"mastervol/internal/logging"
	"mastervol/internal/usecase"
)

// Server is a primary adapter that exposes a diagnostics HTTP API + UI.
// It depends on the use case (primary port).
type Server struct {
	usecase usecase.MasterVolumeUseCase
	server  *http.Server
}

// NewServer creates the HTTP server bound to addr.
func NewServer(uc usecase.MasterVolumeUseCase, addr string) *Server {
	mux := http.NewServeMux()
	srv := &Server{usecase: uc}
	mux.HandleFunc("/api/volume", srv.handleVolume)
	mux.HandleFunc("/api/topology", srv.handleTopology)
	mux.HandleFunc("/", srv.handleRoot)

	srv.server = &http.Server{
		Addr:              addr,
		Handler:           loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv
}

// Handler returns the routed handler, including request logging.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks and serves HTTP traffic.
func (s *Server) Start() error {
	logging.Logger().Info().Str("addr", s.server.Addr).Msg("web server listening")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Master Volume</title>
    <style>
        body { font-family: sans-serif; max-width: 720px; margin: 50px auto; padding: 20px; }
        h1 { color: #333; }
        .info { background: #f0f0f0; padding: 15px; border-radius: 5px; margin: 20px 0; }
        button { background: #007bff; color: white; border: none; padding: 10px 20px; border-radius: 5px; cursor: pointer; }
        button:hover { background: #0056b3; }
        input { padding: 8px; margin: 5px; }
        pre { background: #fafafa; border: 1px solid #ddd; padding: 10px; overflow-x: auto; }
    </style>
</head>
<body>
    <h1>Master Volume</h1>
    <div class="info" id="status">Loading...</div>
    <div>
        <input type="range" id="percent" min="0" max="100" oninput="document.getElementById('label').textContent = this.value">
        <span id="label"></span>%
        <button onclick="setVolume()">Set</button>
    </div>
    <h2>Topology</h2>
    <pre id="topology"></pre>
    <script>
        async function loadStatus() {
            const res = await fetch('/api/volume');
            const data = await res.json();
            if (!res.ok) {
                document.getElementById('status').textContent = 'Error: ' + data.error;
                return;
            }
            document.getElementById('percent').value = data.percent;
            document.getElementById('label').textContent = data.percent;
            document.getElementById('status').textContent = 'Master volume: ' + data.percent + '% (' + data.volume + ')';
        }

        async function loadTopology() {
            const res = await fetch('/api/topology');
            document.getElementById('topology').textContent = await res.text();
        }

        async function setVolume() {
            const res = await fetch('/api/volume', {
                method: 'PUT',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({percent: parseInt(document.getElementById('percent').value)})
            });
            if (!res.ok) {
                const data = await res.json();
                document.getElementById('status').textContent = 'Error: ' + data.error;
                return;
            }
            await loadStatus();
        }

        loadStatus();
        loadTopology();
        setInterval(loadStatus, 3000);
    </script>
</body>
</html>`))
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.respondVolume(w)
	case http.MethodPut:
		var req volumePayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if req.Percent == nil {
			respondError(w, http.StatusBadRequest, "percent is required")
			return
		}
		if err := s.usecase.SetVolume(s.usecase.Service().FromPercent(*req.Percent)); err != nil {
			respondError(w, statusFor(err), err.Error())
			return
		}
		s.respondVolume(w)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) respondVolume(w http.ResponseWriter) {
	v, err := s.usecase.GetVolume()
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	svc := s.usecase.Service()
	respondJSON(w, http.StatusOK, volumeView{
		Percent: svc.PercentOf(v),
		Volume:  svc.FormatScalar(v),
	})
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	out, err := s.usecase.DescribeTopology()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(out))
}

type volumePayload struct {
	Percent *int `json:"percent"`
}

type volumeView struct {
	Percent int    `json:"percent"`
	Volume  string `json:"volume"`
}

func statusFor(err error) int {
	switch domain.ErrorKind(err) {
	case "invalid-argument":
		return http.StatusBadRequest
	case "device-not-found", "control-not-found":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Warnf("encode JSON: %v", err)
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Logger().Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
