package cmd

import (
	"fmt"

	"github.com/presale-labs/presale-store/internal/version"
	"github.com/spf13/cobra"
)

var runVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version of the presale CLI",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version: %s\nCommit: %s\n", version.GetVersion(), version.GetCommit())
	},
}
