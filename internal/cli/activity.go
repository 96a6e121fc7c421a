package cli

import (
	"github.com/spf13/cobra"
)

var activityCmd = &cobra.Command{
	Use:   "activity <coin-address>",
	Short: "Print a coin's recent trades",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Activity(cmd.Context(), args[0])
	},
}
