package minidump

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headerSize = 32

// dumpStream is one stream to place in a synthetic dump.
type dumpStream struct {
	typ  uint32
	data []byte
}

// buildDump assembles a minimal minidump: header, directory immediately
// after it, then the stream payloads back to back.
func buildDump(t *testing.T, byteOrder binary.ByteOrder, streams []dumpStream) []byte {
	t.Helper()

	dirRVA := uint32(headerSize)
	dataRVA := dirRVA + uint32(len(streams))*dirEntrySize

	var dir, data bytes.Buffer
	for _, s := range streams {
		entry := DirEntry{
			StreamType: s.typ,
			Location: Location{
				DataSize: uint32(len(s.data)),
				RVA:      dataRVA + uint32(data.Len()),
			},
		}
		require.NoError(t, binary.Write(&dir, byteOrder, entry))
		data.Write(s.data)
	}

	hdr := Header{
		Signature:          Signature,
		Version:            0x64b10000 | uint32(Version),
		StreamCount:        uint32(len(streams)),
		StreamDirectoryRVA: dirRVA,
		TimeDateStamp:      0x5f000000,
	}

	var out bytes.Buffer
	require.NoError(t, binary.Write(&out, byteOrder, hdr))
	out.Write(dir.Bytes())
	out.Write(data.Bytes())
	return out.Bytes()
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestNewReaderLittleEndian(t *testing.T) {
	dump := buildDump(t, binary.LittleEndian, []dumpStream{
		{typ: ThreadListStream, data: pattern(16)},
	})

	r, err := NewReader(bytes.NewReader(dump))
	require.NoError(t, err)

	assert.Equal(t, binary.LittleEndian, r.ByteOrder())
	assert.Equal(t, uint32(1), r.StreamCount())
	assert.Equal(t, Signature, r.Header().Signature)
	assert.Equal(t, Version, uint16(r.Header().Version))
	assert.Equal(t, uint32(headerSize), r.Header().StreamDirectoryRVA)
}

func TestNewReaderBigEndian(t *testing.T) {
	streams := []dumpStream{
		{typ: ModuleListStream, data: pattern(24)},
		{typ: MemoryListStream, data: pattern(40)},
	}
	dump := buildDump(t, binary.BigEndian, streams)

	r, err := NewReader(bytes.NewReader(dump))
	require.NoError(t, err)
	assert.Equal(t, binary.BigEndian, r.ByteOrder())

	// Header fields must match a direct parse with the correct order.
	var want Header
	require.NoError(t, binary.Read(bytes.NewReader(dump), binary.BigEndian, &want))
	assert.Equal(t, want, r.Header())
	assert.Equal(t, uint32(2), r.StreamCount())
}

func TestNewReaderInvalidHeader(t *testing.T) {
	dump := buildDump(t, binary.LittleEndian, nil)
	copy(dump[0:4], []byte("PMDX"))

	_, err := NewReader(bytes.NewReader(dump))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestNewReaderInvalidVersion(t *testing.T) {
	for _, byteOrder := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(byteOrder.String(), func(t *testing.T) {
			dump := buildDump(t, byteOrder, nil)
			byteOrder.PutUint32(dump[4:8], 0x64b10000|0x1234)

			_, err := NewReader(bytes.NewReader(dump))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidVersion)
		})
	}
}

func TestNewReaderTruncated(t *testing.T) {
	dump := buildDump(t, binary.LittleEndian, nil)

	_, err := NewReader(bytes.NewReader(dump[:10]))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidHeader)
}

func TestDirectoryIdempotent(t *testing.T) {
	dump := buildDump(t, binary.LittleEndian, []dumpStream{
		{typ: SystemInfoStream, data: pattern(56)},
		{typ: ThreadListStream, data: pattern(100)},
	})

	r, err := NewReader(bytes.NewReader(dump))
	require.NoError(t, err)

	first, err := r.Directory(1)
	require.NoError(t, err)

	// Move the cursor around before re-reading the same entry.
	_, err = r.Directory(0)
	require.NoError(t, err)

	second, err := r.Directory(1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, ThreadListStream, second.StreamType)
	assert.Equal(t, uint32(100), second.Location.DataSize)
}

func TestDirectoryOutOfRangePanics(t *testing.T) {
	dump := buildDump(t, binary.LittleEndian, []dumpStream{
		{typ: ThreadListStream, data: pattern(8)},
	})

	r, err := NewReader(bytes.NewReader(dump))
	require.NoError(t, err)

	assert.Panics(t, func() { _, _ = r.Directory(1) })
	assert.Panics(t, func() { _, _ = r.Directory(1 << 30) })
}

func TestStreamReaderBounded(t *testing.T) {
	payload := pattern(64)
	dump := buildDump(t, binary.LittleEndian, []dumpStream{
		{typ: ThreadListStream, data: payload},
		// Adjacent stream the bounded reader must never bleed into.
		{typ: ModuleListStream, data: bytes.Repeat([]byte{0xee}, 32)},
	})

	r, err := NewReader(bytes.NewReader(dump))
	require.NoError(t, err)

	entry, err := r.Directory(0)
	require.NoError(t, err)

	s, err := r.StreamReader(entry)
	require.NoError(t, err)
	assert.Equal(t, ThreadListStream, s.Type)
	assert.Equal(t, uint32(64), s.Remaining())

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, uint32(0), s.Remaining())

	// The store has plenty of bytes left; the stream must not.
	n, err := s.Read(make([]byte, 16))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamReaderSevenStreams(t *testing.T) {
	streams := make([]dumpStream, 7)
	streams[0] = dumpStream{typ: ThreadListStream, data: pattern(584)}
	for i := 1; i < 7; i++ {
		streams[i] = dumpStream{typ: uint32(i + 10), data: pattern(i * 13)}
	}
	dump := buildDump(t, binary.LittleEndian, streams)

	r, err := NewReader(bytes.NewReader(dump))
	require.NoError(t, err)
	require.Equal(t, uint32(7), r.StreamCount())

	entry, err := r.Directory(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), entry.StreamType)
	assert.Equal(t, uint32(584), entry.Location.DataSize)

	s, err := r.StreamReader(entry)
	require.NoError(t, err)
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Len(t, got, 584)
}

func TestDirectoryTruncatedStore(t *testing.T) {
	dump := buildDump(t, binary.LittleEndian, []dumpStream{
		{typ: ThreadListStream, data: pattern(8)},
	})

	// Keep the header but cut the file before the directory ends.
	r, err := NewReader(bytes.NewReader(dump[:headerSize+4]))
	require.NoError(t, err)

	_, err = r.Directory(0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidHeader)
}

func TestStringAt(t *testing.T) {
	for _, byteOrder := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(byteOrder.String(), func(t *testing.T) {
			name := "C:\\Windows\\System32\\ntdll.dll"
			units := utf16.Encode([]rune(name))

			var str bytes.Buffer
			require.NoError(t, binary.Write(&str, byteOrder, uint32(len(units)*2)))
			require.NoError(t, binary.Write(&str, byteOrder, units))

			dump := buildDump(t, byteOrder, []dumpStream{
				{typ: CommentStreamW, data: str.Bytes()},
			})

			r, err := NewReader(bytes.NewReader(dump))
			require.NoError(t, err)

			entry, err := r.Directory(0)
			require.NoError(t, err)

			got, err := r.StringAt(entry.Location.RVA)
			require.NoError(t, err)
			assert.Equal(t, name, got)
		})
	}
}

func TestStringAtOddLength(t *testing.T) {
	var str bytes.Buffer
	require.NoError(t, binary.Write(&str, binary.LittleEndian, uint32(3)))
	str.Write([]byte{0x41, 0x00, 0x42})

	dump := buildDump(t, binary.LittleEndian, []dumpStream{
		{typ: CommentStreamW, data: str.Bytes()},
	})

	r, err := NewReader(bytes.NewReader(dump))
	require.NoError(t, err)

	entry, err := r.Directory(0)
	require.NoError(t, err)

	_, err = r.StringAt(entry.Location.RVA)
	require.Error(t, err)
}
