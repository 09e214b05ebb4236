package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-uishell/internal/config"
	"github.com/wethinkt/go-uishell/internal/i18n"
)

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List running uishell instances",
	Long: `List uishell processes recorded in ~/.uishell/instances.json.
Entries for processes that are no longer running are removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		instances, err := config.ListInstances()
		if err != nil {
			return err
		}
		if outputJSON {
			if instances == nil {
				instances = []config.Instance{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(instances)
		}
		return printInstances(cmd.OutOrStdout(), instances)
	},
}

func printInstances(w io.Writer, instances []config.Instance) error {
	if len(instances) == 0 {
		fmt.Fprintln(w, i18n.T("cmd.instances.none", "No running instances."))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, i18n.T("cmd.instances.header", "PID\tTYPE\tSERVER\tDEBUG\tSTARTED"))
	for _, inst := range instances {
		debug := inst.DebugAddr
		if debug == "" {
			debug = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			inst.PID, inst.Type, inst.ServerURL, debug, i18n.RelativeTime(inst.StartedAt))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, i18n.Tn("cmd.instances.count", "{{.Count}} instance", "{{.Count}} instances", len(instances)))
	return err
}
