package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patrolworks/inspection-service/internal/lock"
)

var lockTypes []int

// lockCmd represents the lock command group
var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Control the station lock session",
	Long: `Control the lock session that automatically re-enqueues inspection
tasks when a result for a locked task type arrives. Arming without --type
locks the task types currently present in the pending queue.`,
}

var lockArmCmd = &cobra.Command{
	Use:   "arm",
	Short: "Arm the lock session",
	Example: `  inspectctl lock arm
  inspectctl lock arm --type 2 --type 3`,
	RunE: runLockArm,
}

var lockDisarmCmd = &cobra.Command{
	Use:   "disarm",
	Short: "Disarm the lock session and cancel pending re-enqueues",
	RunE:  runLockDisarm,
}

var lockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the lock session state",
	RunE:  runLockStatus,
}

func init() {
	rootCmd.AddCommand(lockCmd)
	lockCmd.AddCommand(lockArmCmd, lockDisarmCmd, lockStatusCmd)

	lockArmCmd.Flags().IntSliceVar(&lockTypes, "type", nil, "Task type to lock (repeatable, 1-5)")
}

func runLockArm(cmd *cobra.Command, args []string) error {
	body := map[string]any{}
	if len(lockTypes) > 0 {
		body["task_types"] = lockTypes
	}

	var status lock.Status
	if err := client.PostJSON(cmd.Context(), "/api/lock/arm", body, &status); err != nil {
		return err
	}
	printLockStatus(status)
	return nil
}

func runLockDisarm(cmd *cobra.Command, args []string) error {
	var status lock.Status
	if err := client.PostJSON(cmd.Context(), "/api/lock/disarm", nil, &status); err != nil {
		return err
	}
	printLockStatus(status)
	return nil
}

func runLockStatus(cmd *cobra.Command, args []string) error {
	var status lock.Status
	if err := client.GetJSON(cmd.Context(), "/api/lock", &status); err != nil {
		return err
	}
	printLockStatus(status)
	return nil
}

func printLockStatus(status lock.Status) {
	state := "disarmed"
	if status.Enabled {
		state = "armed"
	}
	names := make([]string, 0, len(status.LockedTypes))
	for _, t := range status.LockedTypes {
		names = append(names, strconv.Itoa(int(t))+" ("+t.String()+")")
	}
	fmt.Printf("lock: %s\n", state)
	if len(names) > 0 {
		fmt.Printf("locked types: %s\n", strings.Join(names, ", "))
	}
}
