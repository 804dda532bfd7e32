package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dcat-harvester/internal/diff"
	"github.com/sells-group/dcat-harvester/internal/model"
	"github.com/sells-group/dcat-harvester/internal/snapshot"
)

var diffCmd = &cobra.Command{
	Use:   "diff <previous.json> <current.json>",
	Short: "Compare two catalog snapshots",
	Long:  "Reports the dataset identifiers added and removed between two saved DCAT catalog snapshots.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, _ := cmd.Flags().GetBool("list")

		prev, err := readSnapshot(args[0])
		if err != nil {
			return err
		}
		cur, err := readSnapshot(args[1])
		if err != nil {
			return err
		}

		printDiff(os.Stdout, diff.Compute(prev, cur), list)
		return nil
	},
}

func init() {
	diffCmd.Flags().Bool("list", false, "print the added and removed identifiers")
	rootCmd.AddCommand(diffCmd)
}

// readSnapshot decodes a catalog file, taking portal and date from its name
// when it follows the snapshot naming scheme.
func readSnapshot(path string) (*model.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "diff: read %s", path)
	}
	key, _ := snapshot.ParseFileName(filepath.Base(path))
	cat, err := model.DecodeCatalog(key.Portal, key.Date, data)
	if err != nil {
		return nil, eris.Wrapf(err, "diff: decode %s", path)
	}
	return cat, nil
}

func printDiff(out io.Writer, d diff.Result, list bool) {
	_, _ = fmt.Fprintf(out, "Total: %d  Added: %d  Removed: %d\n", d.Total, len(d.Added), len(d.Removed))
	if d.Duplicates > 0 || d.Missing > 0 {
		_, _ = fmt.Fprintf(out, "Duplicate identifiers: %d  Missing identifiers: %d\n", d.Duplicates, d.Missing)
	}
	if !list {
		return
	}
	for _, id := range d.Added {
		_, _ = fmt.Fprintf(out, "+ %s\n", id)
	}
	for _, id := range d.Removed {
		_, _ = fmt.Fprintf(out, "- %s\n", id)
	}
}
