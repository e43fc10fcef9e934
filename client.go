package rmilter

import (
	"encoding/binary"
	"fmt"
	"net"
)

// protocolVersion is the version the client proposes during negotiation.
var protocolVersion uint32 = 6

// Client connects to a milter the way an MTA would. It exists so filters
// built on this package can be exercised end to end; see cmd/rmilter-check.
type Client struct {
	// Dialer is used to establish new connections to the milter.
	Dialer interface {
		Dial(network string, addr string) (net.Conn, error)
	}

	network string
	address string
}

// NewClient returns a client for the milter listening on the given network
// address.
func NewClient(network, address string) *Client {
	return &Client{
		Dialer:  &net.Dialer{},
		network: network,
		address: address,
	}
}

// Session opens a connection to the milter and performs option negotiation.
func (c *Client) Session(actions OptAction, protocol OptProtocol) (*ClientSession, error) {
	conn, err := c.Dialer.Dial(c.network, c.address)
	if err != nil {
		return nil, fmt.Errorf("rmilter: session create: %w", err)
	}

	s := &ClientSession{conn: conn}
	if err := s.negotiate(actions, protocol); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// ClientSession is one milter conversation, from negotiation to Close.
type ClientSession struct {
	conn net.Conn

	// values returned by the filter during negotiation
	version  uint32
	actions  OptAction
	protocol OptProtocol
}

// negotiate exchanges OPTNEG frames and records the filter's answer.
func (s *ClientSession) negotiate(actions OptAction, protocol OptProtocol) error {
	data := make([]byte, 12)
	binary.BigEndian.PutUint32(data[0:4], protocolVersion)
	binary.BigEndian.PutUint32(data[4:8], uint32(actions))
	binary.BigEndian.PutUint32(data[8:12], uint32(protocol))

	if err := writeFrame(s.conn, byte(CodeOptNeg), data); err != nil {
		return fmt.Errorf("rmilter: negotiate: %w", err)
	}
	code, resp, err := readFrame(s.conn)
	if err != nil {
		return fmt.Errorf("rmilter: negotiate: %w", err)
	}
	if Code(code) != CodeOptNeg {
		return fmt.Errorf("rmilter: negotiate: unexpected code %q", code)
	}
	if len(resp) != 12 {
		return fmt.Errorf("rmilter: negotiate: unexpected data size %d", len(resp))
	}

	s.version = binary.BigEndian.Uint32(resp[0:4])
	s.actions = OptAction(binary.BigEndian.Uint32(resp[4:8]))
	s.protocol = OptProtocol(binary.BigEndian.Uint32(resp[8:12]))
	return nil
}

// Version returns the protocol version the filter replied with.
func (s *ClientSession) Version() uint32 { return s.version }

// Actions returns the action bits the filter replied with.
func (s *ClientSession) Actions() OptAction { return s.actions }

// Protocol returns the step-skip bits the filter replied with.
func (s *ClientSession) Protocol() OptProtocol { return s.protocol }

// readAction reads one action reply frame.
func (s *ClientSession) readAction() (Action, error) {
	code, _, err := readFrame(s.conn)
	if err != nil {
		return 0, fmt.Errorf("rmilter: action read: %w", err)
	}
	switch Action(code) {
	case ActionAccept, ActionContinue, ActionDiscard, ActionReject, ActionTempfail:
		return Action(code), nil
	}
	return 0, fmt.Errorf("rmilter: action read: unexpected code %q", code)
}

func (s *ClientSession) roundTrip(code Code, data []byte) (Action, error) {
	if err := writeFrame(s.conn, byte(code), data); err != nil {
		return 0, fmt.Errorf("rmilter: %c: %w", code, err)
	}
	act, err := s.readAction()
	if err != nil {
		return 0, fmt.Errorf("rmilter: %c: %w", code, err)
	}
	return act, nil
}

// Macros sends macro definitions for the command cmd. No reply is expected.
func (s *ClientSession) Macros(cmd Code, kv ...string) error {
	data := []byte{byte(cmd)}
	for _, str := range kv {
		data = appendCString(data, str)
	}
	if err := writeFrame(s.conn, byte(CodeMacro), data); err != nil {
		return fmt.Errorf("rmilter: macros: %w", err)
	}
	return nil
}

// Conn sends the connection information frame.
//
// It should be called once per session.
func (s *ClientSession) Conn(hostname string, family ProtocolFamily, port uint16, address string) (Action, error) {
	if s.protocol&OptNoConnect != 0 {
		return ActionContinue, nil
	}
	data := appendCString(nil, hostname)
	data = append(data, byte(family))
	data = binary.BigEndian.AppendUint16(data, port)
	data = appendCString(data, address)
	return s.roundTrip(CodeConn, data)
}

// Helo sends the HELO/EHLO hostname.
func (s *ClientSession) Helo(helo string) (Action, error) {
	if s.protocol&OptNoHelo != 0 {
		return ActionContinue, nil
	}
	return s.roundTrip(CodeHelo, appendCString(nil, helo))
}

// Mail sends the envelope sender.
func (s *ClientSession) Mail(sender string, esmtpArgs []string) (Action, error) {
	if s.protocol&OptNoMailFrom != 0 {
		return ActionContinue, nil
	}
	data := appendCString(nil, sender)
	for _, arg := range esmtpArgs {
		data = appendCString(data, arg)
	}
	return s.roundTrip(CodeMail, data)
}

// Rcpt sends one envelope recipient.
func (s *ClientSession) Rcpt(rcpt string, esmtpArgs []string) (Action, error) {
	if s.protocol&OptNoRecipient != 0 {
		return ActionContinue, nil
	}
	data := appendCString(nil, rcpt)
	for _, arg := range esmtpArgs {
		data = appendCString(data, arg)
	}
	return s.roundTrip(CodeRcpt, data)
}

// HeaderField sends a single header field.
//
// HeaderEnd must be called after the last field.
func (s *ClientSession) HeaderField(key, value string) (Action, error) {
	if s.protocol&OptNoHeaders != 0 {
		return ActionContinue, nil
	}
	data := appendCString(nil, key)
	data = appendCString(data, value)
	return s.roundTrip(CodeHeader, data)
}

// HeaderEnd sends the end-of-header marker. No HeaderField calls are allowed
// after this point.
func (s *ClientSession) HeaderEnd() (Action, error) {
	if s.protocol&OptNoEOH != 0 {
		return ActionContinue, nil
	}
	return s.roundTrip(CodeEOH, nil)
}

// BodyChunk sends a single chunk of body data.
func (s *ClientSession) BodyChunk(chunk []byte) (Action, error) {
	if s.protocol&OptNoBody != 0 {
		return ActionContinue, nil
	}
	return s.roundTrip(CodeBody, chunk)
}

// End sends the end-of-body marker, concluding the current message. The same
// session can be used for another message within the same SMTP connection.
func (s *ClientSession) End() (Action, error) {
	return s.roundTrip(CodeEOB, nil)
}

// Abort cancels the current message. Connection and HELO state is preserved
// on the filter side. No reply is expected.
func (s *ClientSession) Abort() error {
	if err := writeFrame(s.conn, byte(CodeAbort), nil); err != nil {
		return fmt.Errorf("rmilter: abort: %w", err)
	}
	return nil
}

// Close sends the quit frame and releases the connection.
func (s *ClientSession) Close() error {
	if err := writeFrame(s.conn, byte(CodeQuit), nil); err != nil {
		s.conn.Close()
		return fmt.Errorf("rmilter: close: %w", err)
	}
	return s.conn.Close()
}
