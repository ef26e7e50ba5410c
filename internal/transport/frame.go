// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

/*
Request Frame (BigEndian)

+------------------------------------------------------------------+
| Field      | Data Type | Size (Bytes) | Description              |
|------------|-----------|--------------|--------------------------|
| Magic      | uint16    | 2            | 0x4A44                   |
| Version    | uint8     | 1            | FrameVersion             |
| Op         | uint8     | 1            | Operation                |
| Sequence   | uint32    | 4            | Echoed in the reply      |
| Slot       | int32     | 4            | Parameter slot           |
| Sub slot   | int32     | 4            | Buffer sub slot, else 0  |
| Length     | uint32    | 4            | Payload length (N)       |
| Payload    | []byte    | N            | Op specific              |
+------------------------------------------------------------------+

Reply Frame (BigEndian)

+------------------------------------------------------------------+
| Sequence   | uint32    | 4            | Sequence of the request  |
| Status     | int32     | 4            | Status                   |
| Value      | int32     | 4            | Result of OpGetInt       |
+------------------------------------------------------------------+
*/

const (
	FrameMagic   uint16 = 0x4A44
	FrameVersion uint8  = 1

	requestHeaderLen = 20
	replyLen         = 12

	// MaxPayload bounds a single request; impulse responses are the
	// largest payloads.
	MaxPayload = 16 << 20
)

// Op identifies a request operation.
type Op uint8

const (
	OpSetShort Op = iota + 1
	OpSetInt
	OpSetFloats
	OpSetBuffer
	OpGetInt
	OpHello
)

func (o Op) String() string {
	switch o {
	case OpSetShort:
		return "set-short"
	case OpSetInt:
		return "set-int"
	case OpSetFloats:
		return "set-floats"
	case OpSetBuffer:
		return "set-buffer"
	case OpGetInt:
		return "get-int"
	case OpHello:
		return "hello"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

var errShortFrame = errors.New("frame too short")

// Request is a decoded request frame.
type Request struct {
	Op      Op
	Seq     uint32
	Slot    int32
	Sub     int32
	Payload []byte
}

// Reply is a decoded reply frame.
type Reply struct {
	Seq    uint32
	Status Status
	Value  int32
}

// MarshalBinary encodes the request frame.
func (r Request) MarshalBinary() ([]byte, error) {
	if len(r.Payload) > MaxPayload {
		return nil, fmt.Errorf("payload of %d bytes exceeds %d", len(r.Payload), MaxPayload)
	}
	buf := make([]byte, requestHeaderLen+len(r.Payload))
	binary.BigEndian.PutUint16(buf[0:], FrameMagic)
	buf[2] = FrameVersion
	buf[3] = byte(r.Op)
	binary.BigEndian.PutUint32(buf[4:], r.Seq)
	binary.BigEndian.PutUint32(buf[8:], uint32(r.Slot))
	binary.BigEndian.PutUint32(buf[12:], uint32(r.Sub))
	binary.BigEndian.PutUint32(buf[16:], uint32(len(r.Payload)))
	copy(buf[requestHeaderLen:], r.Payload)
	return buf, nil
}

// UnmarshalBinary decodes a request frame.
func (r *Request) UnmarshalBinary(b []byte) error {
	if len(b) < requestHeaderLen {
		return errShortFrame
	}
	if m := binary.BigEndian.Uint16(b[0:]); m != FrameMagic {
		return fmt.Errorf("bad magic 0x%04x", m)
	}
	if v := b[2]; v != FrameVersion {
		return fmt.Errorf("unsupported frame version %d", v)
	}
	n := binary.BigEndian.Uint32(b[16:])
	if n > MaxPayload || int(n) != len(b)-requestHeaderLen {
		return fmt.Errorf("payload length %d does not match frame size %d", n, len(b))
	}
	r.Op = Op(b[3])
	r.Seq = binary.BigEndian.Uint32(b[4:])
	r.Slot = int32(binary.BigEndian.Uint32(b[8:]))
	r.Sub = int32(binary.BigEndian.Uint32(b[12:]))
	r.Payload = append([]byte(nil), b[requestHeaderLen:]...)
	return nil
}

// MarshalBinary encodes the reply frame.
func (r Reply) MarshalBinary() ([]byte, error) {
	buf := make([]byte, replyLen)
	binary.BigEndian.PutUint32(buf[0:], r.Seq)
	binary.BigEndian.PutUint32(buf[4:], uint32(r.Status))
	binary.BigEndian.PutUint32(buf[8:], uint32(r.Value))
	return buf, nil
}

// UnmarshalBinary decodes a reply frame.
func (r *Reply) UnmarshalBinary(b []byte) error {
	if len(b) != replyLen {
		return errShortFrame
	}
	r.Seq = binary.BigEndian.Uint32(b[0:])
	r.Status = Status(int32(binary.BigEndian.Uint32(b[4:])))
	r.Value = int32(binary.BigEndian.Uint32(b[8:]))
	return nil
}

func encodeShort(v int16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(v))
	return b
}

func encodeInt(v int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}

// EncodeFloats packs v as BigEndian IEEE 754 values.
func EncodeFloats(v []float32) []byte {
	var buf bytes.Buffer
	buf.Grow(4 * len(v))
	// Writing to a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, binary.BigEndian, v)
	return buf.Bytes()
}

// DecodeFloats is the inverse of EncodeFloats.
func DecodeFloats(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("float payload of %d bytes is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

// Hello is the connection handshake payload.
type Hello struct {
	EffectType uuid.UUID
	Session    uuid.UUID
	Priority   int32
}

func (h Hello) payload() []byte {
	b := make([]byte, 0, 36)
	b = append(b, h.EffectType[:]...)
	b = append(b, h.Session[:]...)
	return binary.BigEndian.AppendUint32(b, uint32(h.Priority))
}

// ParseHello decodes the handshake payload.
func ParseHello(b []byte) (Hello, error) {
	if len(b) != 36 {
		return Hello{}, fmt.Errorf("hello payload of %d bytes, want 36", len(b))
	}
	var h Hello
	copy(h.EffectType[:], b[0:16])
	copy(h.Session[:], b[16:32])
	h.Priority = int32(binary.BigEndian.Uint32(b[32:]))
	return h, nil
}
