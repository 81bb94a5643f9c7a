package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-reachy-face/pkg/api"
	"github.com/teslashibe/go-reachy-face/pkg/client"
)

const defaultServer = "localhost:8090"

var playCmd = &cobra.Command{
	Use:   "play <expression>",
	Short: "Queue an expression on a running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := remote(cmd)
		if err != nil {
			return err
		}

		var req api.PlayRequest
		req.Force, _ = cmd.Flags().GetBool("force")
		if cmd.Flags().Changed("duration") {
			d, _ := cmd.Flags().GetFloat64("duration")
			req.Duration = &d
		}
		if cmd.Flags().Changed("transition") {
			d, _ := cmd.Flags().GetFloat64("transition")
			req.TransitionDuration = &d
		}
		if cmd.Flags().Changed("interpolation") {
			s, _ := cmd.Flags().GetString("interpolation")
			req.Interpolation = &s
		}
		if cmd.Flags().Changed("sticky") {
			b, _ := cmd.Flags().GetBool("sticky")
			req.Sticky = &b
		}

		resp, err := a.Play(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}
		verb := "queued"
		if resp.Forced {
			verb = "forced"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", verb, resp.Expression.ID, resp.RequestID)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the engine status of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := remote(cmd)
		if err != nil {
			return err
		}
		st, err := a.Status(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

var idleCmd = &cobra.Command{
	Use:       "idle <on|off>",
	Short:     "Turn idle blinks and glances on or off",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := parseSwitch(args[0])
		if err != nil {
			return err
		}
		a, err := remote(cmd)
		if err != nil {
			return err
		}
		return a.SetIdle(cmd.Context(), enabled)
	},
}

func init() {
	for _, c := range []*cobra.Command{playCmd, statusCmd, idleCmd} {
		c.Flags().String("server", defaultServer, "Face server address")
		rootCmd.AddCommand(c)
	}
	playCmd.Flags().BoolP("force", "f", false, "Interrupt the current expression and clear the queue")
	playCmd.Flags().Float64("duration", 0, "Hold time in seconds")
	playCmd.Flags().Float64("transition", 0, "Blend-in time in seconds")
	playCmd.Flags().String("interpolation", "", "linear, ease-in, ease-out, ease-in-out or cubic-bezier")
	playCmd.Flags().Bool("sticky", false, "Keep the expression until replaced")
}

func remote(cmd *cobra.Command) (*client.API, error) {
	server, _ := cmd.Flags().GetString("server")
	return client.NewAPI(server)
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return b, nil
}
