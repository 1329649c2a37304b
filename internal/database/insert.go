package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mwhitford/dumpdb/internal/minidump"
)

// Recorder writes dump metadata and decoded stream contents into the
// catalog, batching row inserts into transactions.
type Recorder struct {
	db        *Database
	batchSize int
}

// RecorderOptions configures catalog insertion behavior
type RecorderOptions struct {
	// BatchSize determines how many rows to insert per transaction
	BatchSize int
}

// DefaultRecorderOptions returns sensible defaults for catalog insertion
func DefaultRecorderOptions() *RecorderOptions {
	return &RecorderOptions{
		BatchSize: 500,
	}
}

// NewRecorder creates a new recorder over the given database
func NewRecorder(db *Database, options *RecorderOptions) *Recorder {
	if options == nil {
		options = DefaultRecorderOptions()
	}

	return &Recorder{
		db:        db,
		batchSize: options.BatchSize,
	}
}

// RecordDump inserts the dump's header summary and returns the catalog id
// the per-stream rows hang off.
func (r *Recorder) RecordDump(ctx context.Context, path string, byteOrder string, hdr minidump.Header) (int64, error) {
	result, err := r.db.Exec(ctx,
		`INSERT INTO dumps (path, byte_order, stream_count, stream_directory_rva, time_date_stamp, flags)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		path, byteOrder, hdr.StreamCount, hdr.StreamDirectoryRVA, hdr.TimeDateStamp, int64(hdr.Flags))
	if err != nil {
		return 0, fmt.Errorf("inserting dump record for %s: %w", path, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolving dump record id: %w", err)
	}
	return id, nil
}

// RecordStream inserts one directory entry into the stream catalog.
func (r *Recorder) RecordStream(ctx context.Context, dumpID int64, idx uint32, entry minidump.DirEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO streams (dump_id, idx, stream_type, type_name, data_size, rva)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		dumpID, idx, entry.StreamType, minidump.StreamTypeName(entry.StreamType),
		entry.Location.DataSize, entry.Location.RVA)
	if err != nil {
		return fmt.Errorf("inserting stream %d: %w", idx, err)
	}
	return nil
}

// RecordThreads inserts decoded thread entries in batches.
func (r *Recorder) RecordThreads(ctx context.Context, dumpID int64, threads []minidump.Thread) error {
	return r.inBatches(ctx, len(threads), "threads", func(tx *sql.Tx, i int) error {
		t := threads[i]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO threads (dump_id, thread_id, suspend_count, priority_class, priority, teb, stack_start, stack_size)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			dumpID, t.ID, t.SuspendCount, t.PriorityClass, t.Priority,
			int64(t.TEB), int64(t.Stack.StartOfMemoryRange), t.Stack.Memory.DataSize)
		return err
	})
}

// RecordModules inserts decoded module entries in batches. Names must be
// resolved by the caller, since they live outside the module stream.
func (r *Recorder) RecordModules(ctx context.Context, dumpID int64, modules []minidump.Module, names []string) error {
	if len(names) != len(modules) {
		return fmt.Errorf("got %d names for %d modules", len(names), len(modules))
	}

	return r.inBatches(ctx, len(modules), "modules", func(tx *sql.Tx, i int) error {
		m := modules[i]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO modules (dump_id, base_of_image, size_of_image, checksum, time_date_stamp, name)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			dumpID, int64(m.BaseOfImage), m.SizeOfImage, m.Checksum, m.TimeDateStamp, names[i])
		return err
	})
}

// RecordMemoryRegions inserts decoded memory descriptors in batches.
func (r *Recorder) RecordMemoryRegions(ctx context.Context, dumpID int64, ranges []minidump.MemoryDescriptor) error {
	return r.inBatches(ctx, len(ranges), "memory regions", func(tx *sql.Tx, i int) error {
		d := ranges[i]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO memory_regions (dump_id, start_address, data_size, rva)
			 VALUES (?, ?, ?, ?)`,
			dumpID, int64(d.StartOfMemoryRange), d.Memory.DataSize, d.Memory.RVA)
		return err
	})
}

// RecordException inserts a decoded exception record.
func (r *Recorder) RecordException(ctx context.Context, dumpID int64, exc *minidump.Exception) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO exceptions (dump_id, thread_id, code, flags, address)
		 VALUES (?, ?, ?, ?, ?)`,
		dumpID, exc.ThreadID, exc.Code, exc.Flags, int64(exc.Address))
	if err != nil {
		return fmt.Errorf("inserting exception record: %w", err)
	}
	return nil
}

// inBatches runs the row callback for every index, committing a transaction
// per batch.
func (r *Recorder) inBatches(ctx context.Context, total int, what string, row func(tx *sql.Tx, i int) error) error {
	if total == 0 {
		slog.Debug("No rows to insert", "table", what)
		return nil
	}

	for start := 0; start < total; start += r.batchSize {
		end := start + r.batchSize
		if end > total {
			end = total
		}

		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("starting %s batch: %w", what, err)
		}

		for i := start; i < end; i++ {
			if err := row(tx, i); err != nil {
				tx.Rollback()
				return fmt.Errorf("inserting %s row %d: %w", what, i, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing %s batch %d-%d: %w", what, start, end-1, err)
		}
	}

	return nil
}
