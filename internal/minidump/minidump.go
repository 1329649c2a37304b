// Package minidump reads the container layer of minidump crash files: the
// fixed header, the stream directory, and bounded readers over individual
// stream payloads. Interpreting a stream's bytes is left to callers.
package minidump

import "errors"

// Signature is the magic constant at offset 0 of every minidump ("MDMP").
const Signature uint32 = 0x504d444d

// Version is the required low half of the header's version field. The high
// half is implementation-specific and ignored.
const Version uint16 = 0xa793

const dirEntrySize = 12

var (
	// ErrInvalidHeader is returned when the signature matches neither byte order.
	ErrInvalidHeader = errors.New("invalid minidump header")

	// ErrInvalidVersion is returned when the signature matches but the
	// version low half differs from the expected constant.
	ErrInvalidVersion = errors.New("unsupported minidump version")
)

// Header is the fixed-size structure at the start of a minidump file.
// Checksum, TimeDateStamp and Flags are diagnostic only; the reader never
// acts on them.
type Header struct {
	Signature          uint32
	Version            uint32
	StreamCount        uint32
	StreamDirectoryRVA uint32
	Checksum           uint32
	TimeDateStamp      uint32
	Flags              uint64
}

// Location describes a region of the file by length and absolute offset.
// The format calls the offset an RVA, but it is always file-absolute.
type Location struct {
	DataSize uint32
	RVA      uint32
}

// DirEntry is one entry of the stream directory. StreamType is an opaque
// tag as far as the reader is concerned; well-known values are listed in
// stream.go for the decoder layer.
type DirEntry struct {
	StreamType uint32
	Location   Location
}
