package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/biomech/internal/session"
	"github.com/andresmejia3/biomech/internal/store"
	"github.com/andresmejia3/biomech/internal/types"
	"github.com/andresmejia3/biomech/internal/utils"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <session_id>",
	Short: "Show per-joint statistics for a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := DB.Get(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			utils.Die("Unknown session", fmt.Errorf("no session with id %s", args[0]), nil)
		}
		if err != nil {
			utils.Die("Failed to load session", err, nil)
		}
		printSummary(os.Stdout, s)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}

// printSummary writes the session header and a per-joint statistics table.
func printSummary(out io.Writer, s types.Session) {
	fmt.Fprintf(out, "---------------------------------------------------------\n")
	fmt.Fprintf(out, "📊 SESSION SUMMARY: %s\n", s.Name)
	fmt.Fprintf(out, "---------------------------------------------------------\n")
	if s.Type != "" {
		fmt.Fprintf(out, "🏷️  Type:     %s\n", s.Type)
	}
	fmt.Fprintf(out, "🕒 Started:  %s\n", s.StartTime.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "⏱️  Length:   %s\n", fmtDuration(s.EndTime.Sub(s.StartTime)))
	fmt.Fprintf(out, "🦴 Samples:  %d\n\n", len(s.JointData))

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "JOINT\tSAMPLES\tMISSING\tMIN\tMAX\tMEAN\t")
	for _, st := range session.Stats(s) {
		if st.Count == 0 {
			fmt.Fprintf(w, "%s\t%d\t%d\t-\t-\t-\t\n", st.Joint, st.Count, st.Missing)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f°\t%.1f°\t%.1f°\t\n", st.Joint, st.Count, st.Missing, st.Min, st.Max, st.Mean)
	}
	w.Flush()
	fmt.Fprintf(out, "---------------------------------------------------------\n")
}
