package rmilter

import (
	"errors"
	"fmt"
)

// Errors returned by the command codec. Structural decode errors are
// recovered inside the session driver (the MTA is answered with a Continue
// reply); only transport failures reach the caller of Serve.
var (
	// ErrIncompleteMessage reports a structurally short or malformed frame
	// payload: a missing NUL delimiter, a wrong fixed length, or an odd
	// number of macro fields.
	ErrIncompleteMessage = errors.New("rmilter: incomplete message")

	// ErrMissingMessageIdentifier reports a zero-length frame payload.
	ErrMissingMessageIdentifier = errors.New("rmilter: missing message identifier")
)

// UnknownIdentifierError reports a frame whose identifier byte is not part
// of the protocol, or whose payload does not match the identifier's shape.
type UnknownIdentifierError struct {
	Identifier byte
}

func (e *UnknownIdentifierError) Error() string {
	return fmt.Sprintf("rmilter: unknown message identifier %q", e.Identifier)
}

// NumericFieldError reports a fixed-width numeric field that could not be
// read because the payload ended before the field did.
type NumericFieldError struct {
	Field string
}

func (e *NumericFieldError) Error() string {
	return fmt.Sprintf("rmilter: malformed numeric field %q", e.Field)
}
