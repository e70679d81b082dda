package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventctl/internal/authz"
	"github.com/felixgeelhaar/eventctl/internal/platform"
	"github.com/felixgeelhaar/eventctl/internal/tui"
)

type dashboardView struct {
	User  *platform.User `json:"user" yaml:"user"`
	Views []string       `json:"views" yaml:"views"`
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Refresh your profile and show what you can do",
	Long: `Load the current profile from the service and list the views your role
can open. A profile that fails to load is cleared; the session itself is kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := current.require(ctx, authz.ViewDashboard); err != nil {
			return err
		}

		if _, err := current.auth.FetchCurrentUser(ctx); err != nil {
			fmt.Fprintf(current.errOut, "Warning: %v\n", err)
		}

		snap := current.store.Get()
		if current.structured() {
			view := dashboardView{User: snap.User, Views: []string{}}
			for _, v := range authz.VisibleViews(snap) {
				view.Views = append(view.Views, v.Name)
			}
			return current.render(view)
		}

		fmt.Fprint(current.out, tui.RenderDashboard(snap, current.styles()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
