package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tillsync/tillsync/internal/domain"
)

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueRetryCmd)
	queueCmd.AddCommand(queuePurgeCmd)

	queueListCmd.Flags().StringP("status", "s", "", "Filter by status (pending|syncing|synced|failed)")
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and maintain the offline transaction queue",
}

// ─── queue list ─────────────────────────────────────────────────────────────

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued transactions",
	RunE:  runQueueList,
}

func runQueueList(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")

	path := "/api/queue"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}

	var resp struct {
		Transactions []*domain.Transaction `json:"transactions"`
		Count        int                   `json:"count"`
	}
	if err := callAPI(http.MethodGet, path, &resp); err != nil {
		return err
	}

	if resp.Count == 0 {
		fmt.Println("queue is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSTATUS\tTOTAL\tPAYMENT\tOFFLINE\tRETRIES")
	for _, tx := range resp.Transactions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\t%d\n",
			tx.ID, tx.CreatedAt.Format("2006-01-02 15:04:05"), tx.Status,
			domain.FormatCents(tx.TotalCents), tx.PaymentMethod, tx.Offline, tx.Retries)
	}
	return w.Flush()
}

// ─── queue retry ────────────────────────────────────────────────────────────

var queueRetryCmd = &cobra.Command{
	Use:   "retry TRANSACTION_ID",
	Short: "Reset a failed transaction and re-attempt it",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueRetry,
}

func runQueueRetry(cmd *cobra.Command, args []string) error {
	id := args[0]
	var tx domain.Transaction
	if err := callAPI(http.MethodPost, "/api/queue/"+url.PathEscape(id)+"/retry", &tx); err != nil {
		return err
	}
	fmt.Printf("transaction %s: status=%s retries=%d\n", tx.ID, tx.Status, tx.Retries)
	return nil
}

// ─── queue purge ────────────────────────────────────────────────────────────

var queuePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all synced transactions from the local queue",
	RunE:  runQueuePurge,
}

func runQueuePurge(cmd *cobra.Command, args []string) error {
	var resp struct {
		Purged int `json:"purged"`
	}
	if err := callAPI(http.MethodPost, "/api/queue/purge", &resp); err != nil {
		return err
	}
	fmt.Printf("purged %d synced transactions\n", resp.Purged)
	return nil
}
