package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}

// ─── sync ───────────────────────────────────────────────────────────────────

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Trigger a sync pass now",
	Long:  `Trigger an immediate sync pass over all pending and failed transactions.`,
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	var report struct {
		Attempted int `json:"attempted"`
		Synced    int `json:"synced"`
		Failed    int `json:"failed"`
	}
	if err := callAPI(http.MethodPost, "/api/sync", &report); err != nil {
		return err
	}
	if report.Attempted == 0 {
		fmt.Println("nothing to sync")
		return nil
	}
	fmt.Printf("attempted %d: %d synced, %d failed\n", report.Attempted, report.Synced, report.Failed)
	return nil
}

// ─── status ─────────────────────────────────────────────────────────────────

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show terminal connectivity and queue status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	var st struct {
		Online bool `json:"online"`
		Queue  struct {
			Pending int `json:"pending"`
			Syncing int `json:"syncing"`
			Synced  int `json:"synced"`
			Failed  int `json:"failed"`
			Total   int `json:"total"`
		} `json:"queue"`
		Version string `json:"version"`
	}
	if err := callAPI(http.MethodGet, "/api/status", &st); err != nil {
		return err
	}

	conn := "offline"
	if st.Online {
		conn = "online"
	}
	fmt.Printf("tillsync %s — %s\n", st.Version, conn)
	fmt.Printf("queue: %d pending, %d failed, %d synced (%d total)\n",
		st.Queue.Pending, st.Queue.Failed, st.Queue.Synced, st.Queue.Total)
	return nil
}
