package minidump

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"
)

// maxStringBytes caps MINIDUMP_STRING payloads to keep a corrupt length
// field from allocating unbounded memory.
const maxStringBytes = 1 << 20

// Reader provides random access to the streams of a minidump file. It does
// not own the backing store and never closes it; the store must stay open
// and unmodified for the Reader's lifetime. A Reader is not safe for
// concurrent use: every operation repositions the store's single cursor.
type Reader struct {
	src       io.ReadSeeker
	byteOrder binary.ByteOrder
	header    Header
}

// NewReader validates the header of the minidump in src and returns a
// Reader over it. The byte order is detected from the signature: the header
// is parsed little-endian first, then big-endian if the signature did not
// match. ErrInvalidHeader means the file is not a minidump; ErrInvalidVersion
// means it is one this reader cannot read. Seek and read failures from src
// are passed through unchanged.
func NewReader(src io.ReadSeeker) (*Reader, error) {
	hdr, byteOrder, err := readHeader(src)
	if err != nil {
		return nil, err
	}
	return &Reader{
		src:       src,
		byteOrder: byteOrder,
		header:    hdr,
	}, nil
}

// readHeader tries the two byte orders the format permits, in a fixed
// order. The signature is the only discriminator; the version field is
// checked only after a signature match settles the byte order.
func readHeader(src io.ReadSeeker) (Header, binary.ByteOrder, error) {
	var hdr Header
	for _, byteOrder := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return Header{}, nil, fmt.Errorf("seeking to file start: %w", err)
		}
		if err := binary.Read(src, byteOrder, &hdr); err != nil {
			return Header{}, nil, fmt.Errorf("reading minidump header: %w", err)
		}
		if hdr.Signature != Signature {
			continue
		}
		if uint16(hdr.Version) != Version {
			return Header{}, nil, fmt.Errorf("%w: version 0x%04x, want 0x%04x",
				ErrInvalidVersion, uint16(hdr.Version), Version)
		}
		return hdr, byteOrder, nil
	}
	return Header{}, nil, fmt.Errorf("%w: signature matched neither byte order", ErrInvalidHeader)
}

// Header returns the decoded file header.
func (r *Reader) Header() Header {
	return r.header
}

// ByteOrder returns the byte order detected at construction. Stream
// decoders use it to interpret payload bytes.
func (r *Reader) ByteOrder() binary.ByteOrder {
	return r.byteOrder
}

// StreamCount returns the number of entries in the stream directory.
func (r *Reader) StreamCount() uint32 {
	return r.header.StreamCount
}

// Directory reads directory entry idx from the file. idx must be less than
// StreamCount; an out-of-range index is a caller bug and panics rather than
// returning a fabricated entry. Entries are not cached: the same index on
// an unmodified store yields an identical entry on every call.
func (r *Reader) Directory(idx uint32) (DirEntry, error) {
	if idx >= r.header.StreamCount {
		panic(fmt.Sprintf("minidump: directory index %d out of range (%d streams)",
			idx, r.header.StreamCount))
	}

	// Widened to uint64 before multiplying, so 32-bit inputs cannot wrap.
	offset := uint64(r.header.StreamDirectoryRVA) + uint64(idx)*dirEntrySize
	if _, err := r.src.Seek(int64(offset), io.SeekStart); err != nil {
		return DirEntry{}, fmt.Errorf("seeking to directory entry %d: %w", idx, err)
	}

	var entry DirEntry
	if err := binary.Read(r.src, r.byteOrder, &entry); err != nil {
		return DirEntry{}, fmt.Errorf("reading directory entry %d: %w", idx, err)
	}
	return entry, nil
}

// StreamReader positions the store at entry's payload and returns a reader
// bounded to exactly DataSize bytes, regardless of how much file lies
// beyond. The stream shares the store's single cursor: any later Directory,
// StreamReader or StringAt call on the same Reader moves the cursor and
// invalidates a previously returned stream.
func (r *Reader) StreamReader(entry DirEntry) (*Stream, error) {
	if _, err := r.src.Seek(int64(entry.Location.RVA), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to stream payload at offset %d: %w", entry.Location.RVA, err)
	}
	return &Stream{
		Type:      entry.StreamType,
		src:       r.src,
		remaining: entry.Location.DataSize,
	}, nil
}

// StringAt decodes the length-prefixed UTF-16 string at an absolute file
// offset. Module and thread names are stored this way, outside the streams
// that reference them. The same cursor-sharing caveat as StreamReader
// applies.
func (r *Reader) StringAt(rva uint32) (string, error) {
	if _, err := r.src.Seek(int64(rva), io.SeekStart); err != nil {
		return "", fmt.Errorf("seeking to string at offset %d: %w", rva, err)
	}

	var length uint32
	if err := binary.Read(r.src, r.byteOrder, &length); err != nil {
		return "", fmt.Errorf("reading string length at offset %d: %w", rva, err)
	}
	if length%2 != 0 {
		return "", fmt.Errorf("string at offset %d has odd byte length %d", rva, length)
	}
	if length > maxStringBytes {
		return "", fmt.Errorf("string at offset %d has implausible length %d", rva, length)
	}

	units := make([]uint16, length/2)
	if err := binary.Read(r.src, r.byteOrder, units); err != nil {
		return "", fmt.Errorf("reading string data at offset %d: %w", rva, err)
	}
	return string(utf16.Decode(units)), nil
}
