package rmilter

import (
	"bytes"
	"encoding/binary"
)

// Code identifies a milter command frame.
type Code byte

const (
	CodeOptNeg Code = 'O' // SMFIC_OPTNEG
	CodeMacro  Code = 'D' // SMFIC_MACRO
	CodeConn   Code = 'C' // SMFIC_CONNECT
	CodeQuit   Code = 'Q' // SMFIC_QUIT
	CodeHelo   Code = 'H' // SMFIC_HELO
	CodeMail   Code = 'M' // SMFIC_MAIL
	CodeRcpt   Code = 'R' // SMFIC_RCPT
	CodeHeader Code = 'L' // SMFIC_HEADER
	CodeEOH    Code = 'N' // SMFIC_EOH
	CodeBody   Code = 'B' // SMFIC_BODY
	CodeEOB    Code = 'E' // SMFIC_BODYEOB
	CodeAbort  Code = 'A' // SMFIC_ABORT
)

// ProtocolFamily is the socket family reported in a connection frame.
type ProtocolFamily byte

const (
	FamilyUnix  ProtocolFamily = 'L' // SMFIA_UNIX
	FamilyInet  ProtocolFamily = '4' // SMFIA_INET
	FamilyInet6 ProtocolFamily = '6' // SMFIA_INET6
)

// Macro is one name/value pair defined by the MTA for a command.
type Macro struct {
	Name  string
	Value string
}

// Command is one decoded milter frame. The concrete type is one of the
// variants below, one per identifier byte.
type Command interface {
	command()
}

// AbortFilterChecks aborts filter checks for the current message ('A').
type AbortFilterChecks struct{}

// BodyChunk carries one chunk of message body data ('B').
type BodyChunk struct {
	Text string
}

// ConnectionInformation describes the SMTP client connection ('C').
type ConnectionInformation struct {
	Hostname string
	Family   ProtocolFamily
	Port     uint16
	Address  string
}

// DefineMacros carries macros the MTA defined for the command Cmd ('D').
type DefineMacros struct {
	Cmd    Code
	Macros []Macro
}

// EndOfBody marks the end of the message body ('E').
type EndOfBody struct{}

// EndOfHeader marks the end of the header section ('N').
type EndOfHeader struct{}

// Header carries one header field ('L'). Value has RFC 2047 encoded words
// resolved; see DecodeHeaderValue.
type Header struct {
	Name  string
	Value string
}

// Helo carries the HELO/EHLO message ('H').
type Helo struct {
	Message string
}

// MailFrom carries the envelope sender and its ESMTP arguments ('M').
type MailFrom struct {
	Sender string
	Args   []string
}

// OptionNegotiation carries the MTA's proposed protocol version, action
// capability bits and step-skip bits ('O').
type OptionNegotiation struct {
	Version  uint32
	Actions  OptAction
	Protocol OptProtocol
}

// QuitCommunication ends the session ('Q').
type QuitCommunication struct{}

// RecipientInformation carries one envelope recipient and its ESMTP
// arguments ('R').
type RecipientInformation struct {
	Recipient string
	Args      []string
}

func (AbortFilterChecks) command()     {}
func (BodyChunk) command()             {}
func (ConnectionInformation) command() {}
func (DefineMacros) command()          {}
func (EndOfBody) command()             {}
func (EndOfHeader) command()           {}
func (Header) command()                {}
func (Helo) command()                  {}
func (MailFrom) command()              {}
func (OptionNegotiation) command()     {}
func (QuitCommunication) command()     {}
func (RecipientInformation) command()  {}

// parseCommand decodes one frame payload into its Command variant. Text
// fields are decoded permissively: invalid UTF-8 never fails, it is replaced.
func parseCommand(payload []byte) (Command, error) {
	if len(payload) == 0 {
		return nil, ErrMissingMessageIdentifier
	}
	id, rest := payload[0], payload[1:]

	switch Code(id) {
	case CodeAbort:
		if len(rest) != 0 {
			return nil, &UnknownIdentifierError{Identifier: id}
		}
		return AbortFilterChecks{}, nil

	case CodeBody:
		return BodyChunk{Text: lossyString(rest)}, nil

	case CodeConn:
		return parseConnectionInformation(rest)

	case CodeMacro:
		return parseDefineMacros(rest)

	case CodeEOB:
		if len(rest) != 0 {
			return nil, &UnknownIdentifierError{Identifier: id}
		}
		return EndOfBody{}, nil

	case CodeHelo:
		if len(rest) == 0 {
			return nil, ErrIncompleteMessage
		}
		return Helo{Message: lossyString(rest[:len(rest)-1])}, nil

	case CodeHeader:
		nul := bytes.IndexByte(rest, 0)
		if nul == -1 {
			return nil, ErrIncompleteMessage
		}
		value := rest[nul+1:]
		if end := bytes.IndexByte(value, 0); end != -1 {
			value = value[:end]
		}
		return Header{
			Name:  lossyString(rest[:nul]),
			Value: DecodeHeaderValue(lossyString(value)),
		}, nil

	case CodeMail:
		sender, args := splitAddressFields(rest)
		return MailFrom{Sender: sender, Args: args}, nil

	case CodeEOH:
		if len(rest) != 0 {
			return nil, &UnknownIdentifierError{Identifier: id}
		}
		return EndOfHeader{}, nil

	case CodeOptNeg:
		if len(rest) != 12 {
			return nil, ErrIncompleteMessage
		}
		return OptionNegotiation{
			Version:  binary.BigEndian.Uint32(rest[0:4]),
			Actions:  OptAction(binary.BigEndian.Uint32(rest[4:8])),
			Protocol: OptProtocol(binary.BigEndian.Uint32(rest[8:12])),
		}, nil

	case CodeQuit:
		if len(rest) != 0 {
			return nil, &UnknownIdentifierError{Identifier: id}
		}
		return QuitCommunication{}, nil

	case CodeRcpt:
		recipient, args := splitAddressFields(rest)
		return RecipientInformation{Recipient: recipient, Args: args}, nil
	}

	return nil, &UnknownIdentifierError{Identifier: id}
}

// parseConnectionInformation decodes the body of a 'C' frame: a
// NUL-terminated hostname, a family byte, a 2-byte big-endian port (present
// even for unix sockets) and the address minus its trailing NUL.
func parseConnectionInformation(data []byte) (Command, error) {
	nul := bytes.IndexByte(data, 0)
	if nul == -1 {
		return nil, ErrIncompleteMessage
	}
	hostname := lossyString(data[:nul])

	rest := data[nul+1:]
	if len(rest) == 0 {
		return nil, ErrIncompleteMessage
	}
	family := ProtocolFamily(rest[0])
	switch family {
	case FamilyUnix, FamilyInet, FamilyInet6:
	default:
		return nil, ErrIncompleteMessage
	}

	if len(rest) < 3 {
		return nil, &NumericFieldError{Field: "port"}
	}
	port := binary.BigEndian.Uint16(rest[1:3])

	if len(rest) < 4 {
		return nil, &NumericFieldError{Field: "address"}
	}
	address := lossyString(rest[3 : len(rest)-1])

	return ConnectionInformation{
		Hostname: hostname,
		Family:   family,
		Port:     port,
		Address:  address,
	}, nil
}

// parseDefineMacros decodes the body of a 'D' frame: a command byte followed
// by alternating NUL-separated name/value fields. An odd field count is
// malformed.
func parseDefineMacros(data []byte) (Command, error) {
	if len(data) == 0 {
		return nil, ErrIncompleteMessage
	}
	cmd := Code(data[0])

	rest := data[1:]
	if len(rest) == 0 {
		return DefineMacros{Cmd: cmd}, nil
	}

	fields := bytes.Split(rest[:len(rest)-1], []byte{0})
	if len(fields)%2 != 0 {
		return nil, ErrIncompleteMessage
	}

	macros := make([]Macro, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		macros = append(macros, Macro{
			Name:  lossyString(fields[i]),
			Value: lossyString(fields[i+1]),
		})
	}
	return DefineMacros{Cmd: cmd, Macros: macros}, nil
}

// splitAddressFields splits a MAIL/RCPT payload into the address field and
// the remaining NUL-delimited argument fields. A NUL terminator after the
// last field yields a final empty argument; callers see the fields exactly
// as delimited on the wire.
func splitAddressFields(data []byte) (string, []string) {
	fields := bytes.Split(data, []byte{0})
	address := lossyString(fields[0])

	var args []string
	for _, field := range fields[1:] {
		args = append(args, lossyString(field))
	}
	return address, args
}
