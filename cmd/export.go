package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andresmejia3/biomech/internal/export"
	"github.com/andresmejia3/biomech/internal/store"
	"github.com/andresmejia3/biomech/internal/types"
	"github.com/andresmejia3/biomech/internal/utils"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportChart  bool
)

var exportCmd = &cobra.Command{
	Use:   "export <session_id>",
	Short: "Export a session as CSV (or chart JSON)",
	Long: `Writes the session's joint angles to session-<name>-<yyyy-MM-dd>.csv in the current directory.
--output accepts a directory, a file path, or "-" for stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := DB.Get(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no session with id %s", args[0])
		}
		if err != nil {
			utils.Die("Failed to load session", err, nil)
		}

		if exportOutput == "-" {
			return writeExport(os.Stdout, s, exportChart)
		}

		path := exportPath(exportOutput, s, exportChart)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := writeExport(f, s, exportChart); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("✅ Exported %d samples to %s\n", len(s.JointData), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", ".", "Output directory or file (\"-\" for stdout)")
	exportCmd.Flags().BoolVar(&exportChart, "chart", false, "Write chart points as JSON instead of CSV")
	rootCmd.AddCommand(exportCmd)
}

// exportPath resolves --output: an existing directory gets the default file name inside it.
func exportPath(output string, s types.Session, chart bool) string {
	name := export.Filename(s)
	if chart {
		name = name[:len(name)-len(filepath.Ext(name))] + ".json"
	}
	if output == "" {
		return name
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, name)
	}
	return output
}

func writeExport(w io.Writer, s types.Session, chart bool) error {
	if !chart {
		return export.WriteCSV(w, s)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(export.Chart(s, nil))
}
