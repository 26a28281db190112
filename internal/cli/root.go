// Package cli implements the tillsync command-line interface.
// Every command except `serve` talks to a running daemon over its
// local HTTP API.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tillsync/tillsync/internal/daemon"
)

var rootCmd = &cobra.Command{
	Use:   "tillsync",
	Short: "Offline transaction queue for a point-of-sale terminal",
	Long: `tillsync owns the offline sale queue for one point-of-sale terminal.
Sales are submitted to the server of record immediately when the network
is up, and queued in a durable local store when it is not. A background
sync engine drains the queue whenever connectivity returns.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ─── Daemon API client helpers ──────────────────────────────────────────────

// apiBase resolves the local daemon address from config.
func apiBase() (string, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return "", err
	}
	addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
	return "http://" + addr, nil
}

var cliHTTP = &http.Client{Timeout: 30 * time.Second}

// callAPI performs a request against the daemon and decodes the JSON
// response into out (when out is non-nil).
func callAPI(method, path string, out interface{}) error {
	base, err := apiBase()
	if err != nil {
		return err
	}

	req, err := http.NewRequest(method, base+path, nil)
	if err != nil {
		return err
	}
	resp, err := cliHTTP.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? (tillsync serve): %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErrorMessage(body))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// apiErrorMessage extracts the message from a writeError body, falling
// back to the raw body.
func apiErrorMessage(body []byte) string {
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return strings.TrimSpace(string(body))
}
