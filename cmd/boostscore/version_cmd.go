package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	// VersionMajor is the major number in boostscore's version
	VersionMajor = 0
	// VersionMinor is the minor number in boostscore's version
	VersionMinor = 3
	// VersionPatch is the patch number in boostscore's version
	VersionPatch = 0
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of boostscore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "boostscore v%d.%d.%d\n", VersionMajor, VersionMinor, VersionPatch)
		},
	}
}
