// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flowboard",
	Short: "FlowBoard is a kanban-style task board with role-based access control",
	Long: `FlowBoard is a kanban-style task board service. It serves a JSON API
for managing columns and tasks, authenticates users locally or via
OpenID Connect, and gates every board operation through a role and
permission based authorization layer.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
