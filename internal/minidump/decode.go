package minidump

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxListCount caps the entry count accepted from list stream headers. A
// corrupt count would otherwise drive a huge allocation before the bounded
// reader ever runs dry.
const maxListCount = 1 << 20

// MemoryDescriptor ties a range of the crashed process's address space to
// its captured bytes in the file.
type MemoryDescriptor struct {
	StartOfMemoryRange uint64
	Memory             Location
}

// Thread is one entry of a ThreadList stream.
type Thread struct {
	ID            uint32
	SuspendCount  uint32
	PriorityClass uint32
	Priority      uint32
	TEB           uint64
	Stack         MemoryDescriptor
	Context       Location
}

// FixedFileInfo is the VS_FIXEDFILEINFO block embedded in each module entry.
type FixedFileInfo struct {
	Signature        uint32
	StructVersion    uint32
	FileVersionMS    uint32
	FileVersionLS    uint32
	ProductVersionMS uint32
	ProductVersionLS uint32
	FileFlagsMask    uint32
	FileFlags        uint32
	FileOS           uint32
	FileType         uint32
	FileSubtype      uint32
	FileDateMS       uint32
	FileDateLS       uint32
}

// Module is one entry of a ModuleList stream. NameRVA points at a
// length-prefixed UTF-16 string elsewhere in the file; resolve it with
// Reader.StringAt.
type Module struct {
	BaseOfImage   uint64
	SizeOfImage   uint32
	Checksum      uint32
	TimeDateStamp uint32
	NameRVA       uint32
	VersionInfo   FixedFileInfo
	CVRecord      Location
	MiscRecord    Location
	Reserved0     uint64
	Reserved1     uint64
}

// SystemInfo describes the machine and OS the dump was captured on.
type SystemInfo struct {
	ProcessorArchitecture uint16
	ProcessorLevel        uint16
	ProcessorRevision     uint16
	ProcessorCount        uint8
	ProductType           uint8
	MajorVersion          uint32
	MinorVersion          uint32
	BuildNumber           uint32
	PlatformID            uint32
	CSDVersionRVA         uint32
	SuiteMask             uint16
	Reserved2             uint16
	CPU                   [24]byte
}

// Exception describes the fault that produced the dump.
type Exception struct {
	ThreadID       uint32
	_              uint32
	Code           uint32
	Flags          uint32
	InnerRecord    uint64
	Address        uint64
	ParameterCount uint32
	_              uint32
	Parameters     [15]uint64
	Context        Location
}

// MiscInfo carries process identity and timing. Only the base revision of
// the structure is decoded; later revisions append fields this reader
// leaves unread in the stream.
type MiscInfo struct {
	SizeOfInfo        uint32
	Flags1            uint32
	ProcessID         uint32
	ProcessCreateTime uint32
	ProcessUserTime   uint32
	ProcessKernelTime uint32
}

// DecodeThreadList decodes a ThreadList stream: a uint32 count followed by
// that many thread entries.
func DecodeThreadList(r io.Reader, byteOrder binary.ByteOrder) ([]Thread, error) {
	count, err := readListCount(r, byteOrder, "thread")
	if err != nil {
		return nil, err
	}
	threads := make([]Thread, count)
	for i := range threads {
		if err := binary.Read(r, byteOrder, &threads[i]); err != nil {
			return nil, fmt.Errorf("reading thread %d of %d: %w", i, count, err)
		}
	}
	return threads, nil
}

// DecodeModuleList decodes a ModuleList stream: a uint32 count followed by
// that many module entries.
func DecodeModuleList(r io.Reader, byteOrder binary.ByteOrder) ([]Module, error) {
	count, err := readListCount(r, byteOrder, "module")
	if err != nil {
		return nil, err
	}
	modules := make([]Module, count)
	for i := range modules {
		if err := binary.Read(r, byteOrder, &modules[i]); err != nil {
			return nil, fmt.Errorf("reading module %d of %d: %w", i, count, err)
		}
	}
	return modules, nil
}

// DecodeMemoryList decodes a MemoryList stream: a uint32 count followed by
// that many memory descriptors.
func DecodeMemoryList(r io.Reader, byteOrder binary.ByteOrder) ([]MemoryDescriptor, error) {
	count, err := readListCount(r, byteOrder, "memory range")
	if err != nil {
		return nil, err
	}
	ranges := make([]MemoryDescriptor, count)
	for i := range ranges {
		if err := binary.Read(r, byteOrder, &ranges[i]); err != nil {
			return nil, fmt.Errorf("reading memory range %d of %d: %w", i, count, err)
		}
	}
	return ranges, nil
}

// DecodeSystemInfo decodes a SystemInfo stream.
func DecodeSystemInfo(r io.Reader, byteOrder binary.ByteOrder) (*SystemInfo, error) {
	var info SystemInfo
	if err := binary.Read(r, byteOrder, &info); err != nil {
		return nil, fmt.Errorf("reading system info: %w", err)
	}
	return &info, nil
}

// DecodeException decodes an Exception stream.
func DecodeException(r io.Reader, byteOrder binary.ByteOrder) (*Exception, error) {
	var exc Exception
	if err := binary.Read(r, byteOrder, &exc); err != nil {
		return nil, fmt.Errorf("reading exception record: %w", err)
	}
	return &exc, nil
}

// DecodeMiscInfo decodes the base revision of a MiscInfo stream.
func DecodeMiscInfo(r io.Reader, byteOrder binary.ByteOrder) (*MiscInfo, error) {
	var info MiscInfo
	if err := binary.Read(r, byteOrder, &info); err != nil {
		return nil, fmt.Errorf("reading misc info: %w", err)
	}
	if info.SizeOfInfo < 24 {
		return nil, fmt.Errorf("misc info reports size %d, below the base structure", info.SizeOfInfo)
	}
	return &info, nil
}

func readListCount(r io.Reader, byteOrder binary.ByteOrder, what string) (uint32, error) {
	var count uint32
	if err := binary.Read(r, byteOrder, &count); err != nil {
		return 0, fmt.Errorf("reading %s count: %w", what, err)
	}
	if count > maxListCount {
		return 0, fmt.Errorf("implausible %s count %d", what, count)
	}
	return count, nil
}

// Processor architecture values from SystemInfo.
const (
	archIntel   = 0
	archARM     = 5
	archIA64    = 6
	archAMD64   = 9
	archARM64   = 12
	archUnknown = 0xffff
)

// ArchName names a SystemInfo processor architecture value.
func ArchName(arch uint16) string {
	switch arch {
	case archIntel:
		return "x86"
	case archARM:
		return "arm"
	case archIA64:
		return "ia64"
	case archAMD64:
		return "amd64"
	case archARM64:
		return "arm64"
	case archUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("0x%04x", arch)
	}
}

// Platform identifiers from SystemInfo. Values above the Windows range are
// Breakpad extensions.
const (
	platformWin32NT = 2
	platformUnix    = 0x8000
	platformMacOS   = 0x8101
	platformIOS     = 0x8102
	platformLinux   = 0x8201
	platformSolaris = 0x8202
	platformAndroid = 0x8203
	platformPS3     = 0x8204
	platformNaCl    = 0x8205
)

// PlatformName names a SystemInfo platform identifier.
func PlatformName(platform uint32) string {
	switch platform {
	case platformWin32NT:
		return "windows"
	case platformUnix:
		return "unix"
	case platformMacOS:
		return "macos"
	case platformIOS:
		return "ios"
	case platformLinux:
		return "linux"
	case platformSolaris:
		return "solaris"
	case platformAndroid:
		return "android"
	case platformPS3:
		return "ps3"
	case platformNaCl:
		return "nacl"
	default:
		return fmt.Sprintf("0x%08x", platform)
	}
}
