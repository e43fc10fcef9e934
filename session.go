package rmilter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
)

// session drives the milter protocol for one MTA connection: read frames,
// decode, call the handler, write the reply, repeat until the MTA quits or
// the stream ends.
type session struct {
	conn    net.Conn
	handler Handler
	logger  *slog.Logger
	stats   Stats

	// protocol holds the locally configured step-skip bits announced during
	// option negotiation.
	protocol OptProtocol

	asm assembler

	// values proposed by the MTA during negotiation, kept for the remainder
	// of the connection.
	version uint32
	actions OptAction
}

// serve processes frames until the MTA quits or closes the stream. Transport
// errors are returned to the caller; malformed frames never are — they are
// answered with a Continue reply and the loop keeps going.
func (s *session) serve() error {
	defer s.conn.Close()

	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			for _, payload := range s.asm.feed(buf[:n]) {
				quit, err := s.dispatch(payload)
				if err != nil {
					return err
				}
				if quit {
					return nil
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if s.asm.pending() {
					s.logger.Debug("connection closed mid-frame")
				}
				return nil
			}
			return fmt.Errorf("rmilter: read: %w", err)
		}
	}
}

// dispatch decodes one frame payload, invokes the handler and writes the
// reply. Macro and abort frames are notifications without a reply; option
// negotiation is answered here and never reaches the handler.
func (s *session) dispatch(payload []byte) (quit bool, err error) {
	cmd, err := parseCommand(payload)
	if err != nil {
		s.logger.Debug("undecodable frame", "error", err)
		s.stats.DecodeFailure()
		return false, s.writeResponse(respContinue)
	}
	s.stats.CommandProcessed(Code(payload[0]))

	var action Action
	switch cmd := cmd.(type) {
	case AbortFilterChecks:
		s.handler.AbortFilterChecks()
		return false, nil

	case DefineMacros:
		s.handler.DefineMacros(cmd.Cmd, cmd.Macros)
		return false, nil

	case QuitCommunication:
		return true, nil

	case OptionNegotiation:
		s.version = cmd.Version
		s.actions = cmd.Actions
		return false, s.writeResponse(negotiate(cmd.Version, cmd.Actions, s.protocol))

	case ConnectionInformation:
		action, err = s.handler.Connection(cmd.Hostname, cmd.Family, cmd.Port, cmd.Address)

	case Helo:
		action, err = s.handler.Helo(cmd.Message)

	case MailFrom:
		action, err = s.handler.MailFrom(cmd.Sender, cmd.Args)

	case RecipientInformation:
		action, err = s.handler.Recipient(cmd.Recipient, cmd.Args)

	case Header:
		action, err = s.handler.Header(cmd.Name, cmd.Value)

	case EndOfHeader:
		action, err = s.handler.EndOfHeader()

	case BodyChunk:
		action, err = s.handler.BodyChunk(cmd.Text)

	case EndOfBody:
		action, err = s.handler.EndOfBody()

	default:
		// parseCommand only produces the variants above.
		return false, s.writeResponse(respContinue)
	}

	if err != nil {
		return false, fmt.Errorf("rmilter: handler: %w", err)
	}
	s.stats.ResponseSent(action)
	return false, s.writeResponse(action.response())
}

// writeResponse writes one reply frame, flushed before the next frame is
// dispatched.
func (s *session) writeResponse(r Response) error {
	if _, err := s.conn.Write(r.bytes()); err != nil {
		return fmt.Errorf("rmilter: write: %w", err)
	}
	return nil
}
