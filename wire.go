package rmilter

import (
	"encoding/binary"
	"io"
)

// assembler reassembles length-prefixed frames from an arbitrarily chunked
// byte stream. The length prefix may cross a read boundary and one read may
// carry several frames; a frame is never yielded before all of its payload
// bytes have arrived.
type assembler struct {
	buf []byte
}

// feed appends p to the accumulation buffer and returns the payloads of all
// frames that are now complete, in wire order.
func (a *assembler) feed(p []byte) [][]byte {
	a.buf = append(a.buf, p...)

	var frames [][]byte
	for len(a.buf) >= 4 {
		length := binary.BigEndian.Uint32(a.buf)
		if uint64(len(a.buf)) < 4+uint64(length) {
			break
		}
		frame := make([]byte, length)
		copy(frame, a.buf[4:4+length])
		a.buf = a.buf[:copy(a.buf, a.buf[4+int(length):])]
		frames = append(frames, frame)
	}
	return frames
}

// pending reports whether a partially received frame is buffered.
func (a *assembler) pending() bool {
	return len(a.buf) > 0
}

// writeFrame writes one length-prefixed frame.
func writeFrame(w io.Writer, code byte, data []byte) error {
	buf := make([]byte, 4, 5+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)+1))
	buf = append(buf, code)
	buf = append(buf, data...)
	_, err := w.Write(buf)
	return err
}

// readFrame reads one complete length-prefixed frame. It is used on the
// client side, where blocking per-frame reads are fine; the server side goes
// through the assembler instead.
func readFrame(r io.Reader) (byte, []byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return 0, nil, err
	}
	if length == 0 {
		return 0, nil, ErrMissingMessageIdentifier
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return 0, nil, err
	}
	return data[0], data[1:], nil
}
