package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andresmejia3/biomech/internal/store"
	"github.com/andresmejia3/biomech/internal/utils"
	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename <session_id> <name>",
	Short: "Give a recorded session a new name",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		name := strings.TrimSpace(args[1])
		if name == "" {
			utils.Die("Invalid session name", errors.New("name must not be empty"), nil)
		}

		err := DB.Rename(cmd.Context(), args[0], name)
		if errors.Is(err, store.ErrNotFound) {
			utils.Die("Unknown session", fmt.Errorf("no session with id %s", args[0]), nil)
		}
		if err != nil {
			utils.Die("Failed to rename session", err, nil)
		}

		fmt.Printf("✅ Session %s renamed to '%s'\n", args[0], name)
	},
}

func init() {
	rootCmd.AddCommand(renameCmd)
}
