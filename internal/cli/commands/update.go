package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewUpdateCmd creates the update command
func NewUpdateCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Update invoicely CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.Updater.Out == nil {
				rt.Updater.Out = rt.Out
			}
			if err := rt.Updater.SelfUpdate(cmd.Context(), rt.Version); err != nil {
				return fmt.Errorf("update failed: %w", err)
			}
			return nil
		},
	}
}
