package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/patrolworks/inspection-service/internal/types"
)

var (
	cartMode    string
	cartStation int
	cartBattery int
	cartOnline  bool
)

// cartCmd represents the cart command group
var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Read and update cart status",
}

var cartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest cart status snapshot",
	RunE:  runCartStatus,
}

var cartSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Report a cart status update",
	Example: `  inspectctl cart set --online --mode single --station 3
  inspectctl cart set --battery 75`,
	RunE: runCartSet,
}

func init() {
	rootCmd.AddCommand(cartCmd)
	cartCmd.AddCommand(cartStatusCmd, cartSetCmd)

	cartSetCmd.Flags().BoolVar(&cartOnline, "online", false, "Mark the cart online (--online=false marks it offline)")
	cartSetCmd.Flags().StringVar(&cartMode, "mode", "", "Cart mode (idle, single, loop, traveling, working)")
	cartSetCmd.Flags().IntVar(&cartStation, "station", 0, "Current station ID")
	cartSetCmd.Flags().IntVar(&cartBattery, "battery", -1, "Battery level percentage (0-100)")
}

func runCartStatus(cmd *cobra.Command, args []string) error {
	var status types.CartStatus
	if err := client.GetJSON(cmd.Context(), "/api/cart/status", &status); err != nil {
		return err
	}

	state := "offline"
	if status.Online {
		state = "online"
	}
	fmt.Printf("state:    %s\n", state)
	fmt.Printf("mode:     %s\n", status.Mode)
	if status.CurrentStation != nil {
		fmt.Printf("station:  %d\n", *status.CurrentStation)
	}
	if status.BatteryLevel != nil {
		fmt.Printf("battery:  %d%%\n", *status.BatteryLevel)
	}
	if status.LastActivity != "" {
		fmt.Printf("activity: %s\n", status.LastActivity)
	}
	fmt.Printf("updated:  %s\n", status.Timestamp.Format(time.RFC3339))
	return nil
}

func runCartSet(cmd *cobra.Command, args []string) error {
	body := map[string]any{}
	if cmd.Flags().Changed("online") {
		body["online"] = cartOnline
	}
	if cartMode != "" {
		body["mode"] = cartMode
	}
	if cartStation > 0 {
		body["current_station"] = cartStation
	}
	if cartBattery >= 0 {
		body["battery_level"] = cartBattery
	}
	if len(body) == 0 {
		return fmt.Errorf("nothing to update, pass at least one flag")
	}

	var status types.CartStatus
	if err := client.PostJSON(cmd.Context(), "/api/cart/status", body, &status); err != nil {
		return err
	}

	logger.Info().Str("mode", string(status.Mode)).Bool("online", status.Online).Msg("Cart status updated")
	return nil
}
