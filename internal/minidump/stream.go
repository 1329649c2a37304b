package minidump

import (
	"fmt"
	"io"
)

// Well-known stream type tags. The reader itself never interprets the tag;
// these exist for the decoder layer and for naming streams in output.
const (
	ThreadListStream         uint32 = 3
	ModuleListStream         uint32 = 4
	MemoryListStream         uint32 = 5
	ExceptionStream          uint32 = 6
	SystemInfoStream         uint32 = 7
	ThreadExListStream       uint32 = 8
	Memory64ListStream       uint32 = 9
	CommentStreamA           uint32 = 10
	CommentStreamW           uint32 = 11
	HandleDataStream         uint32 = 12
	FunctionTableStream      uint32 = 13
	UnloadedModuleListStream uint32 = 14
	MiscInfoStream           uint32 = 15
	MemoryInfoListStream     uint32 = 16
	ThreadInfoListStream     uint32 = 17
)

var streamTypeNames = map[uint32]string{
	ThreadListStream:         "ThreadList",
	ModuleListStream:         "ModuleList",
	MemoryListStream:         "MemoryList",
	ExceptionStream:          "Exception",
	SystemInfoStream:         "SystemInfo",
	ThreadExListStream:       "ThreadExList",
	Memory64ListStream:       "Memory64List",
	CommentStreamA:           "CommentA",
	CommentStreamW:           "CommentW",
	HandleDataStream:         "HandleData",
	FunctionTableStream:      "FunctionTable",
	UnloadedModuleListStream: "UnloadedModuleList",
	MiscInfoStream:           "MiscInfo",
	MemoryInfoListStream:     "MemoryInfoList",
	ThreadInfoListStream:     "ThreadInfoList",
}

// StreamTypeName returns a human-readable name for a stream type tag, or
// the tag in hex when it is not one of the well-known values.
func StreamTypeName(tag uint32) string {
	if name, ok := streamTypeNames[tag]; ok {
		return name
	}
	return fmt.Sprintf("0x%08x", tag)
}

// StreamTypeByName resolves a well-known stream name back to its tag.
func StreamTypeByName(name string) (uint32, bool) {
	for tag, n := range streamTypeNames {
		if n == name {
			return tag, true
		}
	}
	return 0, false
}

// Stream reads the payload of a single directory entry. It consumes the
// backing store's shared cursor and yields at most the DataSize bytes
// recorded when it was created; reads past that budget return io.EOF even
// when the file continues beyond the stream.
type Stream struct {
	// Type is the directory entry's stream type tag, carried along for
	// callers dispatching to a decoder.
	Type uint32

	src       io.Reader
	remaining uint32
}

// Remaining returns how many payload bytes are left to read.
func (s *Stream) Remaining() uint32 {
	return s.remaining
}

func (s *Stream) Read(p []byte) (int, error) {
	if s.remaining == 0 {
		return 0, io.EOF
	}
	if uint64(len(p)) > uint64(s.remaining) {
		p = p[:s.remaining]
	}
	n, err := s.src.Read(p)
	s.remaining -= uint32(n)
	return n, err
}
