package rmilter

import "encoding/binary"

// OptAction is the bitset of message-mutation operations a side declares
// support for during option negotiation. Parsing is truncating: bits outside
// the defined set are preserved, never rejected.
type OptAction uint32

const (
	OptAddHeaders       OptAction = 1 << 0 // SMFIF_ADDHDRS
	OptChangeBody       OptAction = 1 << 1 // SMFIF_CHGBODY
	OptAddRecipients    OptAction = 1 << 2 // SMFIF_ADDRCPT
	OptRemoveRecipients OptAction = 1 << 3 // SMFIF_DELRCPT
	OptChangeHeaders    OptAction = 1 << 4 // SMFIF_CHGHDRS
	OptQuarantine       OptAction = 1 << 5 // SMFIF_QUARANTINE
)

// OptProtocol is the bitset of protocol steps the filter asks the MTA not to
// send. The zero value skips nothing: the filter sees every step.
type OptProtocol uint32

const (
	OptNoConnect   OptProtocol = 1 << 0 // SMFIP_NOCONNECT
	OptNoHelo      OptProtocol = 1 << 1 // SMFIP_NOHELO
	OptNoMailFrom  OptProtocol = 1 << 2 // SMFIP_NOMAIL
	OptNoRecipient OptProtocol = 1 << 3 // SMFIP_NORCPT
	OptNoBody      OptProtocol = 1 << 4 // SMFIP_NOBODY
	OptNoHeaders   OptProtocol = 1 << 5 // SMFIP_NOHDRS
	OptNoEOH       OptProtocol = 1 << 6 // SMFIP_NOEOH
)

// negotiate builds the OPTNEG reply. The MTA's version and action bits are
// echoed back unchanged and the filter answers with its locally configured
// step-skip bits. The two masks are deliberately not intersected; integrators
// depend on this observable behavior, so do not "fix" it here.
func negotiate(version uint32, actions OptAction, configured OptProtocol) Response {
	data := make([]byte, 12)
	binary.BigEndian.PutUint32(data[0:4], version)
	binary.BigEndian.PutUint32(data[4:8], uint32(actions))
	binary.BigEndian.PutUint32(data[8:12], uint32(configured))
	return Response{code: byte(CodeOptNeg), data: data}
}
