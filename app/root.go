// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dirgate",
	Short: "DirGate is a directory authentication and identity sync gateway",
	Long: `DirGate authenticates users against one or more prioritized directory
servers (LDAP / Active Directory) and keeps identity and group data
synchronized into a local user store.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
