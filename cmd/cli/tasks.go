package main

import (
	"encoding/json"
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
	taskListLimit  int
	taskParamsJSON string
	clearOlderThan string
)

// tasksCmd represents the tasks command group
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage the inspection task queue",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending tasks in FIFO order",
	RunE:  runTasksList,
}

var tasksAddCmd = &cobra.Command{
	Use:   "add <station-id> <task-type>",
	Short: "Enqueue a new inspection task",
	Long: `Enqueue a new inspection task for a station. Task type is one of the
five numeric categories: 1 gauge, 2 temperature, 3 smoke A, 4 smoke B,
5 description.`,
	Example: `  inspectctl tasks add 3 2
  inspectctl tasks add 1 1 --params '{"dial":"pressure"}'`,
	Args: cobra.ExactArgs(2),
	RunE: runTasksAdd,
}

var tasksAssignCmd = &cobra.Command{
	Use:   "assign <task-id>",
	Short: "Assign a pending task to the cart",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksAssign,
}

var tasksDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Remove a task from the queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksDelete,
}

var tasksClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear completed and failed tasks from the queue",
	RunE:  runTasksClear,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksListCmd, tasksAddCmd, tasksAssignCmd, tasksDeleteCmd, tasksClearCmd)

	tasksListCmd.Flags().IntVar(&taskListLimit, "limit", 50, "Maximum number of tasks to list")
	tasksAddCmd.Flags().StringVar(&taskParamsJSON, "params", "", "Task parameters as a JSON object")
	tasksClearCmd.Flags().StringVar(&clearOlderThan, "older-than", "", "Only clear entries finished longer ago than this duration (e.g. 1h)")
}

func runTasksList(cmd *cobra.Command, args []string) error {
	var out struct {
		Tasks []types.Task `json:"tasks"`
		Count int          `json:"count"`
	}
	path := "/api/tasks?limit=" + strconv.Itoa(taskListLimit)
	if err := client.GetJSON(cmd.Context(), path, &out); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TASK ID\tSTATION\tTYPE\tSTATUS\tCREATED")
	fmt.Fprintln(w, "-------\t-------\t----\t------\t-------")
	for _, t := range out.Tasks {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			t.TaskID, t.StationID, t.TaskType, t.Status, t.CreatedAt.Format(time.RFC3339))
	}
	w.Flush()

	fmt.Printf("\n%d pending task(s)\n", out.Count)
	return nil
}

func runTasksAdd(cmd *cobra.Command, args []string) error {
	stationID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid station ID: %s", args[0])
	}
	taskType, err := strconv.Atoi(args[1])
	if err != nil || !types.TaskType(taskType).Valid() {
		return fmt.Errorf("invalid task type: %s (expected 1-5)", args[1])
	}

	var params map[string]any
	if taskParamsJSON != "" {
		if err := json.Unmarshal([]byte(taskParamsJSON), &params); err != nil {
			return fmt.Errorf("invalid --params JSON: %w", err)
		}
	}

	body := map[string]any{
		"station_id": stationID,
		"task_type":  taskType,
	}
	if params != nil {
		body["params"] = params
	}

	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := client.PostJSON(cmd.Context(), "/api/tasks", body, &out); err != nil {
		return err
	}

	logger.Info().Str("task_id", out.TaskID).Msg("Task enqueued")
	fmt.Println(out.TaskID)
	return nil
}

func runTasksAssign(cmd *cobra.Command, args []string) error {
	path := "/api/tasks/" + url.PathEscape(args[0]) + "/assign"
	var out struct {
		TaskID string           `json:"task_id"`
		Status types.TaskStatus `json:"status"`
	}
	if err := client.PostJSON(cmd.Context(), path, nil, &out); err != nil {
		return err
	}
	fmt.Printf("%s %s\n", out.TaskID, out.Status)
	return nil
}

func runTasksDelete(cmd *cobra.Command, args []string) error {
	path := "/api/tasks/" + url.PathEscape(args[0])
	if err := client.Delete(cmd.Context(), path, nil); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func runTasksClear(cmd *cobra.Command, args []string) error {
	path := "/api/tasks/clear"
	if clearOlderThan != "" {
		if _, err := time.ParseDuration(clearOlderThan); err != nil {
			return fmt.Errorf("invalid --older-than duration: %w", err)
		}
		path += "?older_than=" + url.QueryEscape(clearOlderThan)
	}

	var out struct {
		Cleared int `json:"cleared"`
	}
	if err := client.PostJSON(cmd.Context(), path, nil, &out); err != nil {
		return err
	}
	fmt.Printf("cleared %d task(s)\n", out.Cleared)
	return nil
}
