// Package rlp implements the subset of Recursive Length Prefix
// encoding needed by the handshake and capability messages: byte
// strings, unsigned integers and lists, with canonical-form checks on
// decode.
package rlp

import (
	"encoding/binary"
	"errors"
)

// Kind identifies the type of an encoded value.
type Kind int

const (
	// Byte is a single byte below 0x80, encoded as itself.
	Byte Kind = iota

	// String is a byte string.
	String

	// List is a sequence of encoded values.
	List
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case Byte:
		return "Byte"
	case String:
		return "String"
	case List:
		return "List"
	default:
		return "Unknown"
	}
}

// Decoding errors.
var (
	// ErrShortInput is returned when the input ends inside a value.
	ErrShortInput = errors.New("rlp: input too short")

	// ErrCanonSize is returned when a size prefix is not in its
	// shortest form.
	ErrCanonSize = errors.New("rlp: non-canonical size")

	// ErrCanonInt is returned when an integer has leading zero bytes.
	ErrCanonInt = errors.New("rlp: non-canonical integer")

	// ErrNotString is returned when a string was expected but a list
	// was found.
	ErrNotString = errors.New("rlp: expected a string")

	// ErrNotList is returned when a list was expected but a string
	// was found.
	ErrNotList = errors.New("rlp: expected a list")

	// ErrValueTooLarge is returned when an integer exceeds 64 bits.
	ErrValueTooLarge = errors.New("rlp: value too large")
)

// AppendString appends the encoding of a byte string to buf.
func AppendString(buf, s []byte) []byte {
	if len(s) == 1 && s[0] < 0x80 {
		return append(buf, s[0])
	}
	buf = appendSize(buf, uint64(len(s)), 0x80)
	return append(buf, s...)
}

// AppendUint64 appends the canonical integer encoding of v to buf.
// Zero encodes as the empty string.
func AppendUint64(buf []byte, v uint64) []byte {
	if v == 0 {
		return append(buf, 0x80)
	}
	if v < 0x80 {
		return append(buf, byte(v))
	}
	var be [8]byte
	binary.BigEndian.PutUint64(be[:], v)
	i := 0
	for be[i] == 0 {
		i++
	}
	return AppendString(buf, be[i:])
}

// AppendList appends a list header followed by the already-encoded
// list content.
func AppendList(buf, content []byte) []byte {
	buf = appendSize(buf, uint64(len(content)), 0xC0)
	return append(buf, content...)
}

// EncodeUint64 returns the encoding of v. The frame layer uses it for
// message-type codes.
func EncodeUint64(v uint64) []byte {
	return AppendUint64(nil, v)
}

// appendSize appends a length prefix with the given tag base
// (0x80 for strings, 0xC0 for lists).
func appendSize(buf []byte, size uint64, base byte) []byte {
	if size < 56 {
		return append(buf, base+byte(size))
	}
	var be [8]byte
	binary.BigEndian.PutUint64(be[:], size)
	i := 0
	for be[i] == 0 {
		i++
	}
	buf = append(buf, base+55+byte(8-i))
	return append(buf, be[i:]...)
}

// Split reads the first value from b, returning its kind, its content
// and the remaining input after the value.
func Split(b []byte) (Kind, []byte, []byte, error) {
	kind, tagSize, contentSize, err := readKind(b)
	if err != nil {
		return 0, nil, b, err
	}
	return kind, b[tagSize : tagSize+contentSize], b[tagSize+contentSize:], nil
}

// SplitString reads the first value from b, which must be a string or
// a single byte, and returns its content.
func SplitString(b []byte) ([]byte, []byte, error) {
	kind, content, rest, err := Split(b)
	if err != nil {
		return nil, b, err
	}
	if kind == List {
		return nil, b, ErrNotString
	}
	return content, rest, nil
}

// SplitList reads the first value from b, which must be a list, and
// returns its content.
func SplitList(b []byte) ([]byte, []byte, error) {
	kind, content, rest, err := Split(b)
	if err != nil {
		return nil, b, err
	}
	if kind != List {
		return nil, b, ErrNotList
	}
	return content, rest, nil
}

// SplitUint64 decodes a canonical integer from the start of b.
func SplitUint64(b []byte) (uint64, []byte, error) {
	content, rest, err := SplitString(b)
	if err != nil {
		return 0, b, err
	}
	switch {
	case len(content) == 0:
		return 0, rest, nil
	case len(content) == 1:
		// Single-byte canonicality is handled by readKind.
		return uint64(content[0]), rest, nil
	case len(content) > 8:
		return 0, b, ErrValueTooLarge
	case content[0] == 0:
		return 0, b, ErrCanonInt
	default:
		var v uint64
		for _, c := range content {
			v = v<<8 | uint64(c)
		}
		return v, rest, nil
	}
}

// CountValues counts the encoded values inside list content.
func CountValues(content []byte) (int, error) {
	n := 0
	for len(content) > 0 {
		_, tagSize, size, err := readKind(content)
		if err != nil {
			return 0, err
		}
		content = content[tagSize+size:]
		n++
	}
	return n, nil
}

// readKind parses the type tag and sizes of the first value in b.
func readKind(b []byte) (kind Kind, tagSize, contentSize uint64, err error) {
	if len(b) == 0 {
		return 0, 0, 0, ErrShortInput
	}
	tag := b[0]
	switch {
	case tag < 0x80:
		kind, tagSize, contentSize = Byte, 0, 1
	case tag < 0xB8:
		kind, tagSize, contentSize = String, 1, uint64(tag-0x80)
		if contentSize == 1 && uint64(len(b)) > 1 && b[1] < 0x80 {
			return 0, 0, 0, ErrCanonSize
		}
	case tag < 0xC0:
		kind, tagSize = String, uint64(tag-0xB7)+1
		contentSize, err = readSize(b[1:], tag-0xB7)
	case tag < 0xF8:
		kind, tagSize, contentSize = List, 1, uint64(tag-0xC0)
	default:
		kind, tagSize = List, uint64(tag-0xF7)+1
		contentSize, err = readSize(b[1:], tag-0xF7)
	}
	if err != nil {
		return 0, 0, 0, err
	}
	if contentSize > uint64(len(b))-tagSize || tagSize > uint64(len(b)) {
		return 0, 0, 0, ErrShortInput
	}
	return kind, tagSize, contentSize, nil
}

// readSize parses a multi-byte size prefix of the given length.
func readSize(b []byte, slen byte) (uint64, error) {
	if uint64(len(b)) < uint64(slen) {
		return 0, ErrShortInput
	}
	if b[0] == 0 {
		return 0, ErrCanonSize
	}
	var size uint64
	for i := byte(0); i < slen; i++ {
		size = size<<8 | uint64(b[i])
	}
	if size < 56 {
		return 0, ErrCanonSize
	}
	return size, nil
}
