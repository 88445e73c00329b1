package ble

// This file implements 16-bit and 128-bit UUIDs as defined in the Bluetooth
// specification.

import (
	"encoding/binary"
	"errors"
)

var errInvalidUUID = errors.New("bluetooth: failed to parse UUID")

// UUID is a single UUID as used in the Bluetooth stack. It is represented as
// a [4]uint32 instead of a [16]byte for efficiency.
type UUID [4]uint32

// New16BitUUID returns a new 128-bit UUID based on a 16-bit UUID, using the
// Bluetooth base UUID.
//
// Note: only use registered UUIDs. See
// https://www.bluetooth.com/specifications/gatt/services/ for a list.
func New16BitUUID(shortUUID uint16) UUID {
	var uuid UUID
	uuid[0] = 0x5F9B34FB
	uuid[1] = 0x80000080
	uuid[2] = 0x00001000
	uuid[3] = uint32(shortUUID)
	return uuid
}

// Is16Bit returns whether this UUID is a 16-bit BLE UUID.
func (uuid UUID) Is16Bit() bool {
	return uuid.Is32Bit() && uuid[3] == uint32(uint16(uuid[3]))
}

// Is32Bit returns whether this UUID is a 32-bit BLE UUID.
func (uuid UUID) Is32Bit() bool {
	return uuid[0] == 0x5F9B34FB && uuid[1] == 0x80000080 && uuid[2] == 0x00001000
}

// Get16Bit returns the 16-bit version of this UUID. The result is only valid
// if the UUID is in fact a 16-bit UUID, see Is16Bit.
func (uuid UUID) Get16Bit() uint16 {
	return uint16(uuid[3])
}

// Bytes returns the raw UUID as it appears on the wire: a 16-byte
// little-endian array.
func (uuid UUID) Bytes() [16]byte {
	buf := [16]byte{}
	binary.LittleEndian.PutUint32(buf[0:], uuid[0])
	binary.LittleEndian.PutUint32(buf[4:], uuid[1])
	binary.LittleEndian.PutUint32(buf[8:], uuid[2])
	binary.LittleEndian.PutUint32(buf[12:], uuid[3])
	return buf
}

// NewUUID returns a new UUID based on the 16-byte big-endian value as usually
// written in its textual form.
func NewUUID(uuid [16]byte) UUID {
	u := UUID{}
	u[0] = binary.BigEndian.Uint32(uuid[12:16])
	u[1] = binary.BigEndian.Uint32(uuid[8:12])
	u[2] = binary.BigEndian.Uint32(uuid[4:8])
	u[3] = binary.BigEndian.Uint32(uuid[0:4])
	return u
}

// ParseUUID parses the given UUID, which must be in
// 00001234-0000-1000-8000-00805f9b34fb format. Both uppercase and lowercase
// hex digits are accepted.
func ParseUUID(s string) (uuid UUID, err error) {
	uuidIndex := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' {
			continue
		}
		var nibble byte
		switch {
		case c >= '0' && c <= '9':
			nibble = c - '0'
		case c >= 'a' && c <= 'f':
			nibble = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			nibble = c - 'A' + 10
		default:
			return uuid, errInvalidUUID
		}
		if uuidIndex >= 32 {
			return uuid, errInvalidUUID
		}
		// The textual form is big-endian, most significant word first.
		shift := uint(28 - (uuidIndex%8)*4)
		uuid[3-uuidIndex/8] |= uint32(nibble) << shift
		uuidIndex++
	}
	if uuidIndex != 32 {
		return uuid, errInvalidUUID
	}
	return uuid, nil
}

// MustParseUUID parses the given UUID and panics when it is invalid. It is
// intended for UUID constants known to be well-formed.
func MustParseUUID(s string) UUID {
	uuid, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return uuid
}

// String returns a human-readable version of this UUID, such as
// 00001234-0000-1000-8000-00805f9b34fb.
func (uuid UUID) String() string {
	var s [36]byte
	const hexDigit = "0123456789abcdef"
	raw := 0
	for i := 0; i < len(s); i++ {
		switch i {
		case 8, 13, 18, 23:
			s[i] = '-'
			continue
		}
		word := uuid[3-raw/8]
		shift := uint(28 - (raw%8)*4)
		s[i] = hexDigit[(word>>shift)&0xf]
		raw++
	}
	return string(s[:])
}
