package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/patrolworks/inspection-service/internal/types"
)

var (
	historyTaskType int
	historyStation  int
	historySince    string
	historyLimit    int
	exportOutput    string
)

// historyCmd represents the history command group
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse and export recorded inspection results",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded results, newest first",
	RunE:  runHistoryList,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export filtered history as an XLSX workbook",
	RunE:  runHistoryExport,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate result statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(historyCmd, statsCmd)
	historyCmd.AddCommand(historyListCmd, historyExportCmd)

	for _, cmd := range []*cobra.Command{historyListCmd, historyExportCmd, statsCmd} {
		cmd.Flags().IntVar(&historyTaskType, "type", 0, "Filter by task type (1-5)")
		cmd.Flags().StringVar(&historySince, "since", "", "Only include results after this RFC3339 timestamp")
	}
	historyListCmd.Flags().IntVar(&historyStation, "station", 0, "Filter by station ID")
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum number of records to list")
	historyExportCmd.Flags().IntVar(&historyStation, "station", 0, "Filter by station ID")
	historyExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default inspection-history-<timestamp>.xlsx)")
}

func historyQuery() url.Values {
	q := url.Values{}
	if historyTaskType > 0 {
		q.Set("task_type", strconv.Itoa(historyTaskType))
	}
	if historyStation > 0 {
		q.Set("station_id", strconv.Itoa(historyStation))
	}
	if historySince != "" {
		q.Set("since", historySince)
	}
	return q
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	q := historyQuery()
	q.Set("limit", strconv.Itoa(historyLimit))

	var out struct {
		Records []types.TaskRecord `json:"records"`
		Count   int                `json:"count"`
	}
	if err := client.GetJSON(cmd.Context(), "/api/history?"+q.Encode(), &out); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tTASK ID\tTYPE\tSTATION\tSTATUS\tRECORDED")
	fmt.Fprintln(w, "--\t-------\t----\t-------\t------\t--------")
	for _, r := range out.Records {
		taskID := r.TaskID
		if taskID == "" {
			taskID = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, taskID, r.TaskType, r.StationID, r.Status, r.Timestamp.Format(time.RFC3339))
	}
	w.Flush()

	fmt.Printf("\n%d record(s)\n", out.Count)
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	q := historyQuery()
	data, err := client.GetBytes(cmd.Context(), "/api/history/export?"+q.Encode())
	if err != nil {
		return err
	}

	output := exportOutput
	if output == "" {
		output = "inspection-history-" + time.Now().Format("20060102-150405") + ".xlsx"
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	logger.Info().Str("file", output).Int("bytes", len(data)).Msg("History exported")
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	var stats types.Statistics
	if err := client.GetJSON(cmd.Context(), "/api/statistics?"+historyQuery().Encode(), &stats); err != nil {
		return err
	}

	fmt.Printf("total:    %d\n", stats.TotalCount)
	fmt.Printf("normal:   %d\n", stats.NormalCount)
	fmt.Printf("warning:  %d\n", stats.WarningCount)
	fmt.Printf("danger:   %d\n", stats.DangerCount)
	if stats.AvgConfidence != nil {
		fmt.Printf("avg confidence:      %.3f\n", *stats.AvgConfidence)
	}
	if stats.AvgProcessingTime != nil {
		fmt.Printf("avg processing time: %.3fs\n", *stats.AvgProcessingTime)
	}
	return nil
}
