package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/stigforge/pkg/scripts"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the script templates and the parameters they need",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := scripts.Load()
		if err != nil {
			return err
		}
		fmt.Printf("Template registry version %s\n\n", reg.Version)
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCHECK TYPE\tPLATFORM\tLANGUAGE\tSLOTS")
		for _, t := range reg.List() {
			ct := string(t.CheckType)
			if t.Manual {
				ct = "(manual)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, ct, t.Platform, t.Language(), strings.Join(t.Slots, ","))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
