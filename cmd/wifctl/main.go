package main

import (
	"flag"
	"fmt"
	"os"

	_ "github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gcp-wif/wifctl/cmd/wifctl/version"
	"github.com/gcp-wif/wifctl/cmd/wifctl/wif"
)

var root = &cobra.Command{
	Use:          "wifctl",
	Long:         "Provision GitHub Actions workload identity federation on Google Cloud projects.",
	SilenceUsage: true,
}

func init() {
	// Send logs to the standard error stream by default:
	err := flag.Set("logtostderr", "true")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Can't set default error stream: %v\n", err)
		os.Exit(1)
	}

	// Register the options that are managed by the 'flag' package, so that they will also be parsed
	// by the 'pflag' package:
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	// Register the subcommands:
	root.AddCommand(wif.NewApplyCmd())
	root.AddCommand(wif.NewPlanCmd())
	root.AddCommand(wif.NewDestroyCmd())
	root.AddCommand(wif.NewDescribeCmd())
	root.AddCommand(wif.NewVerifyCmd())
	root.AddCommand(version.NewVersionCmd())
}

func main() {
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
