package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/biomech/internal/export"
	"github.com/andresmejia3/biomech/internal/session"
	"github.com/andresmejia3/biomech/internal/types"
	"github.com/spf13/cobra"
)

var (
	importName string
	importType string
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import a previously exported CSV as a new session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadCSVSession(args[0], importName, importType)
		if err != nil {
			return err
		}
		id, err := DB.Save(cmd.Context(), s)
		if err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		fmt.Printf("✅ Imported %d samples as session %s (%s)\n", len(s.JointData), id, s.Name)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVarP(&importName, "name", "n", "", "Session name (default: file name)")
	importCmd.Flags().StringVarP(&importType, "type", "t", "", "Exercise type")
	rootCmd.AddCommand(importCmd)
}

// loadCSVSession reads an exported CSV. Start and end times are taken from the first and last rows.
func loadCSVSession(path, name, kind string) (types.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Session{}, err
	}
	defer f.Close()

	samples, err := export.ReadCSV(f)
	if err != nil {
		return types.Session{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(samples) == 0 {
		return types.Session{}, errors.New("csv has no samples")
	}
	buf := session.NewBuffer()
	for i, sample := range samples {
		if err := buf.Append(sample); err != nil {
			return types.Session{}, fmt.Errorf("%s: row %d: %w", path, i+2, err)
		}
	}

	if name = strings.TrimSpace(name); name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return types.Session{
		Name:      name,
		Type:      kind,
		StartTime: samples[0].Timestamp,
		EndTime:   samples[len(samples)-1].Timestamp,
		JointData: samples,
	}, nil
}
