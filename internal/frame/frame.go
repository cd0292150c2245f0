// Package frame implements the wire protocol's length+opcode framing layer:
// size:u32le ‖ opcode:u16le ‖ payload. size counts itself (4 bytes) but not
// the opcode field, so payload_len = size - 4.
package frame

import (
	"encoding/binary"
	"errors"
)

// headerLen is the number of bytes size counts beyond the payload: the
// 4-byte size field itself. The 2-byte opcode field that follows it is not
// counted.
const headerLen = 4

// ErrMalformed is returned by ParseFrames when a frame's declared size is
// smaller than the 4-byte header it must at least cover. The connection
// that produced this is expected to be closed with a framing error, per
// spec.md §4.2.
var ErrMalformed = errors.New("frame: declared size smaller than header")

// Frame is one parsed (opcode, payload) unit.
type Frame struct {
	Opcode  uint16
	Payload []byte
}

// Build constructs the on-wire bytes for one frame: size ‖ opcode ‖ payload.
func Build(opcode uint16, payload []byte) []byte {
	size := uint32(headerLen + len(payload))
	out := make([]byte, 6+len(payload))
	binary.LittleEndian.PutUint32(out[0:4], size)
	binary.LittleEndian.PutUint16(out[4:6], opcode)
	copy(out[6:], payload)
	return out
}

// ParseFrames greedily peels complete frames off the front of buf. It never
// blocks and never discards bytes on a short read: the returned remainder,
// concatenated with whatever bytes arrive next, reproduces the unparsed
// tail exactly. A header whose declared size is below 4 is malformed and
// reported via ErrMalformed; callers must close the connection in that case
// rather than continue parsing (the stream is no longer framable).
func ParseFrames(buf []byte) (frames []Frame, remainder []byte, err error) {
	pos := 0
	for {
		if len(buf)-pos < 6 {
			break
		}
		size := binary.LittleEndian.Uint32(buf[pos : pos+4])
		if size < headerLen {
			return frames, buf[pos:], ErrMalformed
		}
		payloadLen := int(size) - headerLen
		total := 6 + payloadLen
		if len(buf)-pos < total {
			break
		}
		opcode := binary.LittleEndian.Uint16(buf[pos+4 : pos+6])
		payload := make([]byte, payloadLen)
		copy(payload, buf[pos+6:pos+total])
		frames = append(frames, Frame{Opcode: opcode, Payload: payload})
		pos += total
	}
	rem := make([]byte, len(buf)-pos)
	copy(rem, buf[pos:])
	return frames, rem, nil
}
