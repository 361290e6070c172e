package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hopper/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			bind := strings.TrimSpace(cfg.Paths.APIBind)
			if bind == "" {
				return fmt.Errorf("the daemon API is disabled (paths.api_bind is empty)")
			}

			status, err := fetchDaemonStatus(bind)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon:   running (pid %d)\n", status.PID)
			fmt.Fprintf(out, "Watching: %s\n", yesNo(status.Watching))
			fmt.Fprintf(out, "Database: %s\n", status.DBPath)
			if status.LastError != "" {
				fmt.Fprintf(out, "Last error: %s\n", status.LastError)
			}
			if status.LastJob != nil {
				fmt.Fprintf(out, "Last job: %s (file %d, %s)\n",
					status.LastJob.Parser, status.LastJob.FileID, statusLabel(status.LastJob.Status))
			}

			if len(status.JobStats) > 0 {
				rows := make([][]string, 0, len(status.JobStats))
				for _, name := range sortedKeys(status.JobStats) {
					rows = append(rows, []string{statusLabel(name), strconv.Itoa(status.JobStats[name])})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Queue Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
			}

			if len(status.ParserHealth) > 0 {
				rows := make([][]string, 0, len(status.ParserHealth))
				for _, health := range status.ParserHealth {
					state := "ready"
					if !health.Ready {
						state = "unavailable"
					}
					rows = append(rows, []string{health.Name, state, health.Detail})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Parser", "State", "Detail"},
					rows,
					nil,
				))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

// fetchDaemonStatus queries the daemon's HTTP API. HOPPER_API_TOKEN is sent
// as a bearer token when present, matching the daemon's optional auth.
func fetchDaemonStatus(bind string) (*api.DaemonStatus, error) {
	req, err := http.NewRequest(http.MethodGet, "http://"+bind+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(os.Getenv("HOPPER_API_TOKEN")); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("daemon is not running at %s; start it with `hopper run`", bind)
		}
		return nil, fmt.Errorf("query daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon returned %s", resp.Status)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
