package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwhitford/dumpdb/internal/database"
	"github.com/mwhitford/dumpdb/internal/minidump"
	"github.com/mwhitford/dumpdb/internal/utils"
)

type ExtractionStats struct {
	StartTime      time.Time
	EndTime        time.Time
	TotalStreams   int
	StreamsWritten int
	BytesWritten   int64
	DecodeErrors   int
}

var extractCmd = &cobra.Command{
	Use:   "extract <dump>",
	Short: "Extract stream payloads and build the SQLite catalog",
	Long: `Extract writes every stream payload (or only those selected with
--streams) to files in the output directory and records the dump's stream
catalog into a SQLite database. Streams with well-known types are also
decoded: threads, modules, memory regions and the exception record land in
their own tables.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		ctx := context.Background()

		stats := &ExtractionStats{
			StartTime: time.Now(),
		}

		filter, err := cfg.StreamFilter()
		if err != nil {
			return fmt.Errorf("parsing stream filter: %w", err)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()

		r, err := minidump.NewReader(f)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		slog.Info("Starting extract...",
			"dump", path,
			"byte_order", byteOrderName(r),
			"streams", r.StreamCount())

		if err := os.MkdirAll(cfg.Output, 0755); err != nil {
			return fmt.Errorf("creating output directory %s: %w", cfg.Output, err)
		}

		db, err := database.NewDatabase(database.DefaultDatabaseOptions(cfg.Database))
		if err != nil {
			return fmt.Errorf("creating database: %w", err)
		}
		defer db.Close()

		if err := db.CreateSchema(ctx); err != nil {
			return fmt.Errorf("creating catalog schema: %w", err)
		}

		recorder := database.NewRecorder(db, nil)
		dumpID, err := recorder.RecordDump(ctx, path, byteOrderName(r), r.Header())
		if err != nil {
			return fmt.Errorf("recording dump: %w", err)
		}

		var (
			threads   []minidump.Thread
			modules   []minidump.Module
			regions   []minidump.MemoryDescriptor
			exception *minidump.Exception
		)

		stats.TotalStreams = int(r.StreamCount())
		progress := utils.NewProgress(stats.TotalStreams, !noProgress)

		for i := uint32(0); i < r.StreamCount(); i++ {
			entry, err := r.Directory(i)
			if err != nil {
				return fmt.Errorf("reading directory entry %d: %w", i, err)
			}

			name := minidump.StreamTypeName(entry.StreamType)
			progress.Update(int(i), name)

			if filter != nil && !filter[entry.StreamType] {
				slog.Debug("Skipping filtered stream", "index", i, "type", name)
				continue
			}

			if err := recorder.RecordStream(ctx, dumpID, i, entry); err != nil {
				return fmt.Errorf("recording stream %d: %w", i, err)
			}

			s, err := r.StreamReader(entry)
			if err != nil {
				return fmt.Errorf("opening stream %d: %w", i, err)
			}
			payload, err := io.ReadAll(s)
			if err != nil {
				return fmt.Errorf("reading stream %d (%s): %w", i, name, err)
			}

			outPath := filepath.Join(cfg.Output, fmt.Sprintf("%03d_%s.bin", i, name))
			if err := os.WriteFile(outPath, payload, 0644); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}
			stats.StreamsWritten++
			stats.BytesWritten += int64(len(payload))

			switch entry.StreamType {
			case minidump.ThreadListStream:
				threads, err = minidump.DecodeThreadList(bytes.NewReader(payload), r.ByteOrder())
			case minidump.ModuleListStream:
				modules, err = minidump.DecodeModuleList(bytes.NewReader(payload), r.ByteOrder())
			case minidump.MemoryListStream:
				regions, err = minidump.DecodeMemoryList(bytes.NewReader(payload), r.ByteOrder())
			case minidump.ExceptionStream:
				exception, err = minidump.DecodeException(bytes.NewReader(payload), r.ByteOrder())
			default:
				continue
			}
			if err != nil {
				stats.DecodeErrors++
				slog.Warn("Failed to decode stream", "index", i, "type", name, "error", err)
			}
		}

		progress.Update(stats.TotalStreams, "done")
		progress.Finish()

		// Module names live outside the module stream, so they are resolved
		// only after all bounded stream reads are finished.
		names := make([]string, len(modules))
		for i, m := range modules {
			name, err := r.StringAt(m.NameRVA)
			if err != nil {
				slog.Warn("Failed to resolve module name", "base", fmt.Sprintf("0x%x", m.BaseOfImage), "error", err)
				name = ""
			}
			names[i] = name
		}

		if err := recorder.RecordThreads(ctx, dumpID, threads); err != nil {
			return fmt.Errorf("recording threads: %w", err)
		}
		if err := recorder.RecordModules(ctx, dumpID, modules, names); err != nil {
			return fmt.Errorf("recording modules: %w", err)
		}
		if err := recorder.RecordMemoryRegions(ctx, dumpID, regions); err != nil {
			return fmt.Errorf("recording memory regions: %w", err)
		}
		if exception != nil {
			if err := recorder.RecordException(ctx, dumpID, exception); err != nil {
				return fmt.Errorf("recording exception: %w", err)
			}
		}

		stats.EndTime = time.Now()
		slog.Info("Extraction complete",
			"streams", fmt.Sprintf("%d/%d", stats.StreamsWritten, stats.TotalStreams),
			"bytes", utils.Bytes(uint64(stats.BytesWritten)),
			"threads", utils.Number(int64(len(threads))),
			"modules", utils.Number(int64(len(modules))),
			"memory_regions", utils.Number(int64(len(regions))),
			"decode_errors", stats.DecodeErrors,
			"duration", utils.Duration(stats.EndTime.Sub(stats.StartTime)))

		return nil
	},
}
