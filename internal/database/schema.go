package database

import (
	"context"
	"fmt"
	"log/slog"
)

// tableDDL holds the CREATE TABLE statements for the dump catalog. One row
// in dumps per extracted file; streams, threads, modules and memory_regions
// reference it.
var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS dumps (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL,
    byte_order TEXT NOT NULL,
    stream_count INTEGER NOT NULL,
    stream_directory_rva INTEGER NOT NULL,
    time_date_stamp INTEGER NOT NULL,
    flags INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS streams (
    dump_id INTEGER NOT NULL,
    idx INTEGER NOT NULL,
    stream_type INTEGER NOT NULL,
    type_name TEXT NOT NULL,
    data_size INTEGER NOT NULL,
    rva INTEGER NOT NULL,
    PRIMARY KEY (dump_id, idx),
    FOREIGN KEY (dump_id) REFERENCES dumps(id)
)`,
	`CREATE TABLE IF NOT EXISTS threads (
    dump_id INTEGER NOT NULL,
    thread_id INTEGER NOT NULL,
    suspend_count INTEGER NOT NULL,
    priority_class INTEGER NOT NULL,
    priority INTEGER NOT NULL,
    teb INTEGER NOT NULL,
    stack_start INTEGER NOT NULL,
    stack_size INTEGER NOT NULL,
    PRIMARY KEY (dump_id, thread_id),
    FOREIGN KEY (dump_id) REFERENCES dumps(id)
)`,
	`CREATE TABLE IF NOT EXISTS modules (
    dump_id INTEGER NOT NULL,
    base_of_image INTEGER NOT NULL,
    size_of_image INTEGER NOT NULL,
    checksum INTEGER NOT NULL,
    time_date_stamp INTEGER NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (dump_id, base_of_image),
    FOREIGN KEY (dump_id) REFERENCES dumps(id)
)`,
	`CREATE TABLE IF NOT EXISTS memory_regions (
    dump_id INTEGER NOT NULL,
    start_address INTEGER NOT NULL,
    data_size INTEGER NOT NULL,
    rva INTEGER NOT NULL,
    PRIMARY KEY (dump_id, start_address),
    FOREIGN KEY (dump_id) REFERENCES dumps(id)
)`,
	`CREATE TABLE IF NOT EXISTS exceptions (
    dump_id INTEGER NOT NULL,
    thread_id INTEGER NOT NULL,
    code INTEGER NOT NULL,
    flags INTEGER NOT NULL,
    address INTEGER NOT NULL,
    PRIMARY KEY (dump_id, thread_id),
    FOREIGN KEY (dump_id) REFERENCES dumps(id)
)`,
}

// CreateSchema creates the catalog tables if they do not already exist.
func (d *Database) CreateSchema(ctx context.Context) error {
	for i, ddl := range tableDDL {
		if _, err := d.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("creating catalog table %d: %w", i, err)
		}
	}

	slog.Debug("Catalog schema ready", "tables", len(tableDDL))
	return nil
}
