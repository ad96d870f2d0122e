package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/biomech/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetDB      bool
	resetExports string
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (Database, exported CSV files)",
	Long:  "Drops all recorded sessions. With --exports, also deletes the session-*.csv files in that directory.",
	Run: func(cmd *cobra.Command, args []string) {
		// If no flags are set, default to clearing the database
		if !resetDB && resetExports == "" {
			resetDB = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetDB {
			if confirm(reader, "⚠️  Are you sure you want to DROP all database tables?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset database", err, nil)
				}
			}
		}

		if resetExports != "" {
			if confirm(reader, fmt.Sprintf("⚠️  Are you sure you want to delete all exported sessions in %s?", resetExports)) {
				fmt.Println("🗑️  Clearing Exported Files...")
				removeExports(resetExports)
			}
		}

		fmt.Println("✨ System Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "db", false, "Clear PostgreSQL database")
	resetCmd.Flags().StringVar(&resetExports, "exports", "", "Directory whose session-*.csv exports should be deleted")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	res, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return false
	}
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

// removeExports deletes exported CSV and chart files. It returns how many were removed.
func removeExports(dir string) int {
	removed := 0
	for _, pattern := range []string{"session-*.csv", "session-*.json"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		for _, path := range matches {
			if err := os.Remove(path); err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
				continue
			}
			removed++
		}
	}
	return removed
}
