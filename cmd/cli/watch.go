package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// watchCmd tails the server's event stream
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail the real-time event stream",
	Long: `Subscribe to the server's event stream and print each event as it
arrives. Events cover task results, queue updates, alerts and cart status
changes. Interrupt with Ctrl-C.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	resp, err := client.Do(cmd.Context(), "GET", serverURL+"/api/events", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("event stream returned HTTP %d", resp.StatusCode)
	}

	logger.Info().Str("server", serverURL).Msg("Watching event stream")

	var event string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			fmt.Printf("%-18s %s\n", event, data)
		}
	}
	if err := scanner.Err(); err != nil && cmd.Context().Err() == nil {
		return fmt.Errorf("event stream closed: %w", err)
	}
	return nil
}
