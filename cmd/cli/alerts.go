package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/patrolworks/inspection-service/internal/types"
)

var alertListLimit int

// alertsCmd represents the alerts command group
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "View and resolve raised alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unhandled alerts, newest first",
	RunE:  runAlertsList,
}

var alertsHandleCmd = &cobra.Command{
	Use:   "handle <alert-id>",
	Short: "Mark an alert as handled",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertsHandle,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd, alertsHandleCmd)

	alertsListCmd.Flags().IntVar(&alertListLimit, "limit", 50, "Maximum number of alerts to list")
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	var out struct {
		Alerts []types.Alert `json:"alerts"`
		Count  int           `json:"count"`
	}
	path := "/api/alerts?limit=" + strconv.Itoa(alertListLimit)
	if err := client.GetJSON(cmd.Context(), path, &out); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tLEVEL\tTYPE\tMESSAGE\tRAISED")
	fmt.Fprintln(w, "--\t-----\t----\t-------\t------")
	for _, a := range out.Alerts {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			a.ID, a.Level, a.AlertType, a.Message, a.Timestamp.Format(time.RFC3339))
	}
	w.Flush()

	fmt.Printf("\n%d unhandled alert(s)\n", out.Count)
	return nil
}

func runAlertsHandle(cmd *cobra.Command, args []string) error {
	alertID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid alert ID: %s", args[0])
	}

	path := "/api/alerts/" + strconv.FormatInt(alertID, 10) + "/handled"
	if err := client.PostJSON(cmd.Context(), path, nil, nil); err != nil {
		return err
	}
	fmt.Printf("alert %d handled\n", alertID)
	return nil
}
