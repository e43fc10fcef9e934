// Package rmilter implements the server side of the milter protocol used by
// MTAs like sendmail or postfix to delegate per-message filtering decisions
// to an external process.
package rmilter

// Action is the terminal decision a Handler returns for a protocol step.
type Action byte

const (
	// ActionAccept accepts the message without further processing.
	ActionAccept Action = 'a' // SMFIR_ACCEPT
	// ActionContinue proceeds with the next protocol step.
	ActionContinue Action = 'c' // SMFIR_CONTINUE
	// ActionDiscard silently discards the message without further processing.
	ActionDiscard Action = 'd' // SMFIR_DISCARD
	// ActionReject rejects the message without further processing.
	ActionReject Action = 'r' // SMFIR_REJECT
	// ActionTempfail fails the message temporarily.
	ActionTempfail Action = 't' // SMFIR_TEMPFAIL
)

// String returns the action name as it appears in MTA documentation.
func (a Action) String() string {
	switch a {
	case ActionAccept:
		return "accept"
	case ActionContinue:
		return "continue"
	case ActionDiscard:
		return "discard"
	case ActionReject:
		return "reject"
	case ActionTempfail:
		return "tempfail"
	}
	return "unknown"
}

// Handler receives the protocol events of one MTA connection, in arrival
// order. Methods that influence protocol flow return the Action written back
// to the MTA; DefineMacros and AbortFilterChecks are notifications with no
// reply. A non-nil error ends the connection.
//
// Embed NoOpHandler and override only the methods you care about.
type Handler interface {
	// Connection reports SMTP connection data for an incoming message
	// (SMFIC_CONNECT). Suppress with OptNoConnect.
	Connection(hostname string, family ProtocolFamily, port uint16, address string) (Action, error)

	// Helo reports the HELO/EHLO message (SMFIC_HELO). Suppress with
	// OptNoHelo.
	Helo(message string) (Action, error)

	// MailFrom reports the envelope sender and its ESMTP arguments
	// (SMFIC_MAIL). Suppress with OptNoMailFrom.
	MailFrom(sender string, args []string) (Action, error)

	// Recipient reports one envelope recipient and its ESMTP arguments
	// (SMFIC_RCPT). Suppress with OptNoRecipient.
	Recipient(recipient string, args []string) (Action, error)

	// Header is called once per header field (SMFIC_HEADER). The value has
	// RFC 2047 encoded words resolved. Suppress with OptNoHeaders.
	Header(name, value string) (Action, error)

	// EndOfHeader is called when all header fields have been sent
	// (SMFIC_EOH). Suppress with OptNoEOH.
	EndOfHeader() (Action, error)

	// BodyChunk reports the next chunk of message body data (SMFIC_BODY).
	// Suppress with OptNoBody.
	BodyChunk(text string) (Action, error)

	// EndOfBody is called once the whole body has been sent (SMFIC_BODYEOB).
	EndOfBody() (Action, error)

	// DefineMacros reports macros the MTA defined for the command cmd
	// (SMFIC_MACRO). No reply is sent.
	DefineMacros(cmd Code, macros []Macro)

	// AbortFilterChecks tells the filter to discard its state for the
	// current message and start over (SMFIC_ABORT). No reply is sent.
	AbortFilterChecks()
}

// NoOpHandler implements Handler with methods that continue processing and
// notifications that do nothing.
type NoOpHandler struct{}

var _ Handler = NoOpHandler{}

func (NoOpHandler) Connection(string, ProtocolFamily, uint16, string) (Action, error) {
	return ActionContinue, nil
}

func (NoOpHandler) Helo(string) (Action, error) {
	return ActionContinue, nil
}

func (NoOpHandler) MailFrom(string, []string) (Action, error) {
	return ActionContinue, nil
}

func (NoOpHandler) Recipient(string, []string) (Action, error) {
	return ActionContinue, nil
}

func (NoOpHandler) Header(string, string) (Action, error) {
	return ActionContinue, nil
}

func (NoOpHandler) EndOfHeader() (Action, error) {
	return ActionContinue, nil
}

func (NoOpHandler) BodyChunk(string) (Action, error) {
	return ActionContinue, nil
}

func (NoOpHandler) EndOfBody() (Action, error) {
	return ActionContinue, nil
}

func (NoOpHandler) DefineMacros(Code, []Macro) {}

func (NoOpHandler) AbortFilterChecks() {}
