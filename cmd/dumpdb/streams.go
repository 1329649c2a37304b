package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mwhitford/dumpdb/internal/minidump"
	"github.com/mwhitford/dumpdb/internal/utils"
)

var streamsCmd = &cobra.Command{
	Use:   "streams <dump>",
	Short: "List the stream directory of a minidump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()

		r, err := minidump.NewReader(f)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "IDX\tTYPE\tNAME\tSIZE\tOFFSET")
		for i := uint32(0); i < r.StreamCount(); i++ {
			entry, err := r.Directory(i)
			if err != nil {
				return fmt.Errorf("reading directory entry %d: %w", i, err)
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t0x%x\n",
				i,
				entry.StreamType,
				minidump.StreamTypeName(entry.StreamType),
				utils.Bytes(uint64(entry.Location.DataSize)),
				entry.Location.RVA)
		}
		return w.Flush()
	},
}
