package cli

import (
	"errors"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"milesofsmiles/api/internal/app"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "manage the administrator gate",
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(passwdCmd())
	adminCmd.AddCommand(logoutCmd())
}

func passwdCmd() *cobra.Command {
	var current, next string

	command := &cobra.Command{
		Use:   "passwd",
		Short: "change the admin password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if current == "" || next == "" {
				return errors.New("--current and --next are required")
			}
			return withService(cmd.Context(), func(service *app.Service, rt *runtime) error {
				rt.warnIfUnshared()
				if !service.ChangePassword(cmd.Context(), current, next) {
					return errors.New("current password is incorrect")
				}
				color.Green("admin password changed; existing sessions are signed out")
				return nil
			})
		},
	}
	command.Flags().StringVar(&current, "current", "", "current password")
	command.Flags().StringVar(&next, "next", "", "new password")
	return command
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "clear the admin flag on every instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(service *app.Service, rt *runtime) error {
				rt.warnIfUnshared()
				service.Logout(cmd.Context())
				color.Yellow("admin signed out")
				return nil
			})
		},
	}
}
