package cli

import (
	"fmt"
	"os"

	"github.com/islandvows/islandvows/internal/cli/commands"
	"github.com/spf13/cobra"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "islandvows",
	Short: "Island Vows - wedding studio site administration",
	Long: `Island Vows CLI - Operator tasks for the Island Vows site.

Commands here talk to the hosted backend with the privileged service key,
so run them from a trusted machine only.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "islandvows version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewCreateAdminCmd())
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
