package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nholik/probe-sentinel/internal/gate"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List checks and whether their environment gate is open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := loadDefinitions(a.cfg)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tGATE\tREQUIRES\tDESCRIPTION")
			for _, def := range defs {
				required := def.RequiredEnv()
				decision := string(gate.ProbeWith(os.LookupEnv, required...).Decision)
				if def.Disabled {
					decision = "DISABLED"
				}
				requires := "-"
				if len(required) > 0 {
					requires = strings.Join(required, ",")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", def.Name, decision, requires, def.Description)
			}
			return tw.Flush()
		},
	}
}
