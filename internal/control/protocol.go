// Package control implements the inbound UDP control dispatcher and the
// address-tagged datagram protocol it shares with internal/output for
// outbound frames. The bit-exact framing of the protocol is this module's
// own concern, not a reproduction of any external wire format; address
// grammar and argument semantics are what callers rely on.
package control

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ArgType tags a Message argument's wire representation.
type ArgType byte

const (
	ArgInt    ArgType = 'i'
	ArgFloat  ArgType = 'f'
	ArgString ArgType = 's'
	ArgBlob   ArgType = 'b'
)

// Arg is one typed argument of a Message.
type Arg struct {
	Type   ArgType
	Int    int32
	Float  float32
	String string
	Blob   []byte
}

// IntArg, FloatArg, StringArg and BlobArg build typed Args.
func IntArg(v int32) Arg        { return Arg{Type: ArgInt, Int: v} }
func FloatArg(v float32) Arg    { return Arg{Type: ArgFloat, Float: v} }
func StringArg(v string) Arg    { return Arg{Type: ArgString, String: v} }
func BlobArg(v []byte) Arg      { return Arg{Type: ArgBlob, Blob: v} }

// Message is one address-tagged control datagram: an address string
// ("/change_scene") plus zero or more typed arguments.
type Message struct {
	Address string
	Args    []Arg
}

// Encode serializes m to its wire form:
//
//	[2B address length][address bytes]
//	[1B arg count]
//	for each arg: [1B type tag][payload]
//	  i: 4B int32 big-endian
//	  f: 4B IEEE-754 float32 big-endian (as its uint32 bit pattern)
//	  s: [2B length][bytes]
//	  b: [4B length][bytes]
func Encode(m Message) ([]byte, error) {
	if len(m.Address) > 0xFFFF {
		return nil, fmt.Errorf("control: address too long")
	}
	if len(m.Args) > 0xFF {
		return nil, fmt.Errorf("control: too many arguments")
	}

	buf := make([]byte, 0, 3+len(m.Address)+len(m.Args)*8)
	buf = appendUint16(buf, uint16(len(m.Address)))
	buf = append(buf, m.Address...)
	buf = append(buf, byte(len(m.Args)))

	for _, a := range m.Args {
		buf = append(buf, byte(a.Type))
		switch a.Type {
		case ArgInt:
			buf = appendUint32(buf, uint32(a.Int))
		case ArgFloat:
			buf = appendUint32(buf, float32bits(a.Float))
		case ArgString:
			if len(a.String) > 0xFFFF {
				return nil, fmt.Errorf("control: string arg too long")
			}
			buf = appendUint16(buf, uint16(len(a.String)))
			buf = append(buf, a.String...)
		case ArgBlob:
			buf = appendUint32(buf, uint32(len(a.Blob)))
			buf = append(buf, a.Blob...)
		default:
			return nil, fmt.Errorf("control: unknown arg type %q", a.Type)
		}
	}
	return buf, nil
}

// Decode parses a wire-form datagram back into a Message. Malformed input
// yields an error; callers are expected to log and drop it.
func Decode(data []byte) (Message, error) {
	if len(data) < 3 {
		return Message{}, fmt.Errorf("control: datagram too short")
	}
	addrLen := int(binary.BigEndian.Uint16(data[0:2]))
	offset := 2
	if offset+addrLen+1 > len(data) {
		return Message{}, fmt.Errorf("control: truncated address")
	}
	address := string(data[offset : offset+addrLen])
	offset += addrLen
	argCount := int(data[offset])
	offset++

	args := make([]Arg, 0, argCount)
	for i := 0; i < argCount; i++ {
		if offset >= len(data) {
			return Message{}, fmt.Errorf("control: truncated argument %d", i)
		}
		t := ArgType(data[offset])
		offset++
		switch t {
		case ArgInt:
			if offset+4 > len(data) {
				return Message{}, fmt.Errorf("control: truncated int arg")
			}
			args = append(args, Arg{Type: ArgInt, Int: int32(binary.BigEndian.Uint32(data[offset : offset+4]))})
			offset += 4
		case ArgFloat:
			if offset+4 > len(data) {
				return Message{}, fmt.Errorf("control: truncated float arg")
			}
			args = append(args, Arg{Type: ArgFloat, Float: float32frombits(binary.BigEndian.Uint32(data[offset : offset+4]))})
			offset += 4
		case ArgString:
			if offset+2 > len(data) {
				return Message{}, fmt.Errorf("control: truncated string length")
			}
			sLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
			offset += 2
			if offset+sLen > len(data) {
				return Message{}, fmt.Errorf("control: truncated string arg")
			}
			args = append(args, Arg{Type: ArgString, String: string(data[offset : offset+sLen])})
			offset += sLen
		case ArgBlob:
			if offset+4 > len(data) {
				return Message{}, fmt.Errorf("control: truncated blob length")
			}
			bLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
			offset += 4
			if offset+bLen > len(data) {
				return Message{}, fmt.Errorf("control: truncated blob arg")
			}
			args = append(args, Arg{Type: ArgBlob, Blob: data[offset : offset+bLen]})
			offset += bLen
		default:
			return Message{}, fmt.Errorf("control: unknown arg type %q", t)
		}
	}

	return Message{Address: address, Args: args}, nil
}

func appendUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v>>8), byte(v))
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func float32bits(f float32) uint32 {
	return math.Float32bits(f)
}

func float32frombits(b uint32) float32 {
	return math.Float32frombits(b)
}
