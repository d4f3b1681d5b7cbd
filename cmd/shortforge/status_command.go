package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"shortforge/internal/language"
	"shortforge/internal/ledger"
	"shortforge/internal/stage"
)

type statusRow struct {
	InferenceID string `json:"inferenceId" csv:"inference_id"`
	Status      string `json:"status" csv:"status"`
	Stage       string `json:"stage,omitempty" csv:"stage"`
	Language    string `json:"language,omitempty" csv:"language"`
	FinalPath   string `json:"finalPath,omitempty" csv:"final_path"`
	ErrorKind   string `json:"errorKind,omitempty" csv:"error_kind"`
	Error       string `json:"error,omitempty" csv:"error"`
	Attempts    int    `json:"attempts" csv:"attempts"`
	UpdatedAt   string `json:"updatedAt" csv:"updated_at"`
}

type statusJSON struct {
	Counts map[string]int   `json:"counts"`
	Run    *ledger.Run      `json:"latestRun,omitempty"`
	Items  []statusRow `json:"items"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var statusFilter []string
	var asJSON bool
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-item progress recorded in the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []ledger.Status
			for _, value := range statusFilter {
				status, ok := ledger.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				statuses = append(statuses, status)
			}

			store, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			counts, err := store.Counts(cmd.Context())
			if err != nil {
				return err
			}
			run, err := store.LatestRun(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, buildStatusJSON(counts, run, items))
			}
			if asCSV {
				rows := buildStatusJSON(counts, run, items).Items
				encoded, err := gocsv.MarshalString(&rows)
				if err != nil {
					return fmt.Errorf("encode csv: %w", err)
				}
				fmt.Fprint(cmd.OutOrStdout(), encoded)
				return nil
			}
			renderStatus(cmd.OutOrStdout(), counts, run, items, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statusFilter, "status", "s", nil, "Only show items with this status (pending, running, done, failed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "Emit one CSV row per item")
	cmd.MarkFlagsMutuallyExclusive("json", "csv")
	return cmd
}

func buildStatusJSON(counts map[ledger.Status]int, run *ledger.Run, items []*ledger.Item) statusJSON {
	out := statusJSON{Counts: make(map[string]int, len(counts)), Run: run, Items: []statusRow{}}
	for _, status := range ledger.AllStatuses() {
		out.Counts[string(status)] = counts[status]
	}
	for _, item := range items {
		out.Items = append(out.Items, statusRow{
			InferenceID: item.InferenceID,
			Status:      string(item.Status),
			Stage:       item.Stage,
			Language:    item.Language,
			FinalPath:   item.FinalPath,
			ErrorKind:   item.ErrorKind,
			Error:       item.ErrorMessage,
			Attempts:    item.Attempts,
			UpdatedAt:   item.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func renderStatus(out io.Writer, counts map[ledger.Status]int, run *ledger.Run, items []*ledger.Item, colorize bool) {
	for _, line := range renderSectionHeader("Items", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, status := range ledger.AllStatuses() {
		fmt.Fprintln(out, renderStatusLine(stageLabel(string(status)), ledgerStatusKind(status), fmt.Sprintf("%d", counts[status]), colorize))
	}

	if run != nil {
		for _, line := range renderSectionHeader("Latest run", colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, renderStatusLine("Run", statusInfo, run.ID, colorize))
		fmt.Fprintln(out, renderStatusLine("Seed", statusInfo, fmt.Sprintf("%d", run.Seed), colorize))
		fmt.Fprintln(out, renderStatusLine("Started", statusInfo, run.StartedAt.Local().Format(time.DateTime), colorize))
		if run.FinishedAt == nil {
			fmt.Fprintln(out, renderStatusLine("Finished", statusWarn, "in progress or interrupted", colorize))
		} else {
			kind := statusOK
			if run.Failed > 0 {
				kind = statusWarn
			}
			summary := fmt.Sprintf("%d/%d succeeded, %d failed", run.Succeeded, run.Total, run.Failed)
			fmt.Fprintln(out, renderStatusLine("Finished", kind, summary, colorize))
		}
	}

	if len(items) == 0 {
		fmt.Fprintln(out, "No items recorded")
		return
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.InferenceID,
			string(item.Status),
			stageLabel(item.Stage),
			languageLabel(item.Language),
			fmt.Sprintf("%d", item.Attempts),
			itemDetail(item),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Status", "Stage", "Language", "Attempts", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func ledgerStatusKind(status ledger.Status) statusKind {
	switch status {
	case ledger.StatusDone:
		return statusOK
	case ledger.StatusFailed:
		return statusError
	case ledger.StatusRunning:
		return statusWarn
	default:
		return statusInfo
	}
}

func languageLabel(code string) string {
	if strings.TrimSpace(code) == "" {
		return ""
	}
	return language.DisplayName(code)
}

func itemDetail(item *ledger.Item) string {
	switch item.Status {
	case ledger.StatusFailed:
		detail := item.ErrorMessage
		if item.ErrorKind != "" {
			detail = item.ErrorKind + ": " + detail
		}
		return truncate(detail, 60)
	case ledger.StatusDone:
		return item.FinalPath
	default:
		if item.Stage != "" && !stage.Terminal(stage.Name(item.Stage)) {
			return "at " + stageLabel(item.Stage)
		}
		return ""
	}
}
