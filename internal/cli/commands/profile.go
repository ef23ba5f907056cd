package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invoicely-dev/invoicely/internal/cli/client"
)

const settingsPath = "/settings"

// NewProfileCmd creates the profile command group
func NewProfileCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage your user profile",
	}

	cmd.AddCommand(newProfileUpdateCmd(rt))

	return cmd
}

func newProfileUpdateCmd(rt *Runtime) *cobra.Command {
	var name, phone, company, address, logo string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields",
		Long: `Update profile fields. Only the flags given are changed.

Examples:
  $ invoicely profile update --name "Alice Liddell"
  $ invoicely profile update --phone "" # clear the phone number`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req client.UpdateProfileRequest
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("phone") {
				req.Phone = &phone
			}
			if flags.Changed("company") {
				req.CompanyName = &company
			}
			if flags.Changed("company-address") {
				req.CompanyAddress = &address
			}
			if flags.Changed("company-logo") {
				req.CompanyLogo = &logo
			}
			return runProfileUpdate(cmd.Context(), rt, req)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&company, "company", "", "Company name")
	cmd.Flags().StringVar(&address, "company-address", "", "Company address")
	cmd.Flags().StringVar(&logo, "company-logo", "", "Company logo URL")

	return routed(cmd, settingsPath)
}

func runProfileUpdate(ctx context.Context, rt *Runtime, req client.UpdateProfileRequest) error {
	if req == (client.UpdateProfileRequest{}) {
		return fmt.Errorf("nothing to update (pass at least one flag, see --help)")
	}

	user, err := rt.Session.UpdateProfile(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	fmt.Fprintln(rt.Out, "✓ Profile updated")
	fmt.Fprintf(rt.Out, "  Name:    %s\n", user.Name)
	fmt.Fprintf(rt.Out, "  Phone:   %s\n", orDash(user.Phone))
	fmt.Fprintf(rt.Out, "  Company: %s\n", orDash(user.CompanyName))
	return nil
}
