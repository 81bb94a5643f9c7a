package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-reachy-face/pkg/expression"
)

var listCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List available expressions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		registry, _, err := loadRegistry(cfg.Expressions.Dir, false)
		if err != nil {
			return err
		}

		infos := registry.Infos()
		if len(args) == 1 {
			infos = []expression.Info{}
			for _, id := range registry.Search(args[0]) {
				def, err := registry.Get(id)
				if err != nil {
					continue
				}
				infos = append(infos, def.Info())
			}
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(infos)
		}
		return printInfos(cmd, infos)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Bool("json", false, "Print as JSON")
}

func printInfos(cmd *cobra.Command, infos []expression.Info) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tDURATION\tTRANSITION\tINTERPOLATION\tSTICKY")
	for _, in := range infos {
		fmt.Fprintf(w, "%s\t%s\t%.2fs\t%.2fs\t%s\t%t\n",
			in.ID, in.Label, in.Duration, in.TransitionDuration, in.Interpolation, in.Sticky)
	}
	if len(infos) == 0 {
		fmt.Fprintln(os.Stderr, "no expressions matched")
	}
	return w.Flush()
}
