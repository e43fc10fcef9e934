package rmilter

import (
	"io"
	"log/slog"
	"net"

	"github.com/oklog/ulid/v2"
)

// Stats receives protocol-level observations from running sessions. All
// methods must be safe for concurrent use. internal/metrics provides a
// Prometheus-backed implementation.
type Stats interface {
	ConnectionOpened()
	ConnectionClosed()
	CommandProcessed(cmd Code)
	ResponseSent(action Action)
	DecodeFailure()
}

// noopStats is used when Server.Stats is nil.
type noopStats struct{}

func (noopStats) ConnectionOpened()     {}
func (noopStats) ConnectionClosed()     {}
func (noopStats) CommandProcessed(Code) {}
func (noopStats) ResponseSent(Action)   {}
func (noopStats) DecodeFailure()        {}

// Server is a milter server.
type Server struct {
	// NewHandler is called once per accepted connection. Every connection
	// gets its own Handler instance, so handlers can keep per-connection
	// state without locking.
	NewHandler func() Handler

	// Protocol holds the step-skip bits announced during option
	// negotiation. The zero value requests every protocol step.
	Protocol OptProtocol

	// Logger receives session lifecycle and error logs. Nil disables
	// logging.
	Logger *slog.Logger

	// Stats receives protocol-level observations. Nil disables collection.
	Stats Stats
}

// Serve accepts connections from l until Accept fails. Each connection is
// drained on its own goroutine by its own Handler instance.
func (s *Server) Serve(l net.Listener) error {
	defer l.Close()

	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	stats := s.Stats
	if stats == nil {
		stats = noopStats{}
	}

	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}

		sess := &session{
			conn:     conn,
			handler:  s.NewHandler(),
			protocol: s.Protocol,
			stats:    stats,
			logger: logger.With(
				"session_id", ulid.Make().String(),
				"remote_addr", conn.RemoteAddr().String(),
			),
		}
		go func() {
			stats.ConnectionOpened()
			defer stats.ConnectionClosed()

			sess.logger.Debug("session started")
			if err := sess.serve(); err != nil {
				sess.logger.Error("session ended with error", "error", err)
				return
			}
			sess.logger.Debug("session ended")
		}()
	}
}
