package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-reachy-face/pkg/client"
	"github.com/teslashibe/go-reachy-face/pkg/engine"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print engine events from a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		stream, err := client.DialEvents(ctx, url)
		if err != nil {
			return err
		}
		defer stream.Close()

		out := cmd.OutOrStdout()
		return stream.Each(func(e engine.Event) error {
			if asJSON {
				data, err := json.Marshal(e)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}
			_, err := fmt.Fprintln(out, formatEvent(e))
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("url", "ws://localhost:8090/ws/events", "Event stream URL")
	watchCmd.Flags().Bool("json", false, "Print raw JSON events")
}

func formatEvent(e engine.Event) string {
	ts := e.Time.Format("15:04:05.000")
	if e.Expression == nil {
		return fmt.Sprintf("%s  %-20s", ts, e.Kind)
	}
	return fmt.Sprintf("%s  %-20s  %-10s  %-8s  %s", ts, e.Kind, e.Expression.ID, e.Source, e.RequestID)
}
