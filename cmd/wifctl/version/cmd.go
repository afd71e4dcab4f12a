package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gcp-wif/wifctl/pkg/info"
)

// NewVersionCmd provides the "version" subcommand
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of the tool",
		Run: func(cmd *cobra.Command, argv []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", info.Version)
		},
	}
}
