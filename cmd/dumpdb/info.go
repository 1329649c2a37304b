package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwhitford/dumpdb/internal/minidump"
)

var infoCmd = &cobra.Command{
	Use:   "info <dump>",
	Short: "Show minidump header and system information",
	Long: `Info validates a minidump's header and prints its byte order, version,
stream count and capture time, plus decoded system and process information
when the dump carries those streams.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()

		r, err := minidump.NewReader(f)
		if err != nil {
			if errors.Is(err, minidump.ErrInvalidHeader) || errors.Is(err, minidump.ErrInvalidVersion) {
				return fmt.Errorf("%s is not a readable minidump: %w", path, err)
			}
			return fmt.Errorf("reading %s: %w", path, err)
		}

		hdr := r.Header()
		fmt.Printf("File:              %s\n", path)
		fmt.Printf("Byte order:        %s\n", byteOrderName(r))
		fmt.Printf("Version:           0x%08x\n", hdr.Version)
		fmt.Printf("Streams:           %d\n", hdr.StreamCount)
		fmt.Printf("Directory offset:  0x%x\n", hdr.StreamDirectoryRVA)
		fmt.Printf("Captured:          %s\n", time.Unix(int64(hdr.TimeDateStamp), 0).UTC().Format(time.RFC3339))
		fmt.Printf("Flags:             0x%016x\n", hdr.Flags)

		if entry, ok := findStream(r, minidump.SystemInfoStream); ok {
			s, err := r.StreamReader(entry)
			if err != nil {
				return fmt.Errorf("opening system info stream: %w", err)
			}
			info, err := minidump.DecodeSystemInfo(s, r.ByteOrder())
			if err != nil {
				slog.Warn("Failed to decode system info stream", "error", err)
			} else {
				fmt.Printf("\nSystem\n")
				fmt.Printf("  Architecture:    %s\n", minidump.ArchName(info.ProcessorArchitecture))
				fmt.Printf("  Processors:      %d\n", info.ProcessorCount)
				fmt.Printf("  Platform:        %s\n", minidump.PlatformName(info.PlatformID))
				fmt.Printf("  OS version:      %d.%d.%d\n", info.MajorVersion, info.MinorVersion, info.BuildNumber)
			}
		}

		if entry, ok := findStream(r, minidump.MiscInfoStream); ok {
			s, err := r.StreamReader(entry)
			if err != nil {
				return fmt.Errorf("opening misc info stream: %w", err)
			}
			info, err := minidump.DecodeMiscInfo(s, r.ByteOrder())
			if err != nil {
				slog.Warn("Failed to decode misc info stream", "error", err)
			} else {
				fmt.Printf("\nProcess\n")
				fmt.Printf("  PID:             %d\n", info.ProcessID)
				fmt.Printf("  Started:         %s\n", time.Unix(int64(info.ProcessCreateTime), 0).UTC().Format(time.RFC3339))
			}
		}

		if entry, ok := findStream(r, minidump.ExceptionStream); ok {
			s, err := r.StreamReader(entry)
			if err != nil {
				return fmt.Errorf("opening exception stream: %w", err)
			}
			exc, err := minidump.DecodeException(s, r.ByteOrder())
			if err != nil {
				slog.Warn("Failed to decode exception stream", "error", err)
			} else {
				fmt.Printf("\nException\n")
				fmt.Printf("  Thread:          %d\n", exc.ThreadID)
				fmt.Printf("  Code:            0x%08x\n", exc.Code)
				fmt.Printf("  Address:         0x%x\n", exc.Address)
			}
		}

		return nil
	},
}

// findStream scans the directory for the first entry with the given type
// tag. Directory entries are re-read from the file on every call; dumps
// hold at most a few dozen streams, so the extra seeks are immaterial.
func findStream(r *minidump.Reader, tag uint32) (minidump.DirEntry, bool) {
	for i := uint32(0); i < r.StreamCount(); i++ {
		entry, err := r.Directory(i)
		if err != nil {
			slog.Warn("Failed to read directory entry", "index", i, "error", err)
			continue
		}
		if entry.StreamType == tag {
			return entry, true
		}
	}
	return minidump.DirEntry{}, false
}

func byteOrderName(r *minidump.Reader) string {
	return r.ByteOrder().String()
}
