package cmd

import (
	"github.com/spf13/cobra"

	"github.com/user/stigforge/pkg/pipeline"
)

var generateCmd = &cobra.Command{
	Use:   "generate <file|dir>...",
	Short: "Generate audit scripts for check records",
	Long: `Classifies every record and writes one audit script per record under the
output directory. Existing stubs are patched at their extension point,
scripts generated earlier are left untouched, and a config sample listing
every organization-defined value is written next to the scripts.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args, pipeline.ModeGenerate)
	},
}

var stubCmd = &cobra.Command{
	Use:   "stub <file|dir>...",
	Short: "Write extension-point stubs for check records",
	Long: `Writes a script skeleton with an empty extension point for every record
that has no script yet. A later generate run fills the extension point in.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args, pipeline.ModeStub)
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <file|dir>...",
	Short: "Classify check records without writing scripts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args, pipeline.ModeClassify)
	},
}

func init() {
	for _, c := range []*cobra.Command{generateCmd, stubCmd, classifyCmd} {
		batchFlags(c)
		rootCmd.AddCommand(c)
	}
}
