package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/andresmejia3/biomech/internal/store"
	"github.com/andresmejia3/biomech/internal/utils"
	"github.com/spf13/cobra"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <session_id>",
	Short: "Delete a session and its samples",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		if !deleteYes && !confirm(bufio.NewReader(os.Stdin), fmt.Sprintf("⚠️  Delete session %s?", id)) {
			return
		}

		err := DB.Delete(cmd.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			utils.Die("Unknown session", fmt.Errorf("no session with id %s", id), nil)
		}
		if err != nil {
			utils.Die("Failed to delete session", err, nil)
		}
		fmt.Printf("🗑️  Session %s deleted\n", id)
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(deleteCmd)
}
