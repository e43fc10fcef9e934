package rmilter

import "encoding/binary"

// Response is one reply frame written back to the MTA.
type Response struct {
	code byte
	data []byte
}

// bytes serializes the response with its 4-byte big-endian length prefix.
// An action reply is always 5 bytes, the OPTNEG reply always 17.
func (r Response) bytes() []byte {
	buf := make([]byte, 4, 5+len(r.data))
	binary.BigEndian.PutUint32(buf, uint32(len(r.data)+1))
	buf = append(buf, r.code)
	return append(buf, r.data...)
}

// response maps a handler action onto its wire reply.
func (a Action) response() Response {
	return Response{code: byte(a)}
}

// respContinue is the fallback written for frames that cannot be decoded, so
// a single malformed frame never stalls the MTA.
var respContinue = ActionContinue.response()
