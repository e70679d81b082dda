package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/eventctl/internal/authz"
	apperrors "github.com/felixgeelhaar/eventctl/internal/errors"
	"github.com/felixgeelhaar/eventctl/internal/events"
	"github.com/felixgeelhaar/eventctl/internal/platform"
	"github.com/felixgeelhaar/eventctl/internal/tui"
	"github.com/felixgeelhaar/eventctl/internal/ux"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List, create, and delete events",
	Long: `Work with events on the service.

Examples:
  eventctl events list --search meetup
  eventctl events create --title "Go Meetup" --date 2025-12-12T18:30 --location Berlin
  eventctl events delete 42 --yes
  eventctl events browse`,
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events, optionally filtered by title",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := current.require(ctx, authz.ViewEvents); err != nil {
			return err
		}

		all, err := current.events.List(ctx)
		if err != nil {
			return err
		}

		query, _ := cmd.Flags().GetString("search")
		matched := events.FilterByTitle(all, query)
		if len(matched) == 0 && !current.structured() {
			fmt.Fprintln(current.out, "No events found")
			return nil
		}
		return current.render(eventsTable(matched))
	},
}

func eventsTable(evs []platform.Event) *ux.Table {
	t := &ux.Table{
		Headers: []string{"ID", "TITLE", "DATE", "LOCATION", "PARTICIPANTS"},
		Records: evs,
	}
	if evs == nil {
		t.Records = []platform.Event{}
	}
	for _, ev := range evs {
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(ev.ID, 10),
			ev.Title,
			tui.FormatEventDate(ev.EventDate),
			ev.Location,
			strconv.Itoa(ev.ParticipantsCount),
		})
	}
	return t
}

var eventsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an event (ADMIN or ORGANIZER)",
	Long: `Create an event. Dates are local times such as 2025-12-12T18:30.
Without --title a form is shown when running in a terminal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := current.require(ctx, authz.ViewCreateEvent); err != nil {
			return err
		}

		in := tui.EventInput{}
		in.Title, _ = cmd.Flags().GetString("title")
		in.Description, _ = cmd.Flags().GetString("description")
		in.Date, _ = cmd.Flags().GetString("date")
		in.Location, _ = cmd.Flags().GetString("location")
		if in.Title == "" && tui.ShouldPrompt() {
			if err := tui.RunForm(tui.EventForm(&in)); err != nil {
				return err
			}
		}

		req, err := in.Request()
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCodeEventInvalid, "invalid event date", err)
		}
		if err := current.events.Create(ctx, req); err != nil {
			return err
		}
		fmt.Fprintf(current.out, "Created event %q\n", req.Title)
		return nil
	},
}

var eventsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an event (ADMIN or ORGANIZER)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid argument %q: event id must be a positive integer", args[0])
		}

		ctx := cmd.Context()
		if err := current.require(ctx, authz.ActionDeleteEvent); err != nil {
			return err
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			if !tui.ShouldPrompt() {
				return fmt.Errorf("required flag --yes is not set and no terminal is available to confirm")
			}
			confirmed := false
			if err := tui.RunForm(tui.DeleteConfirmForm(platform.Event{ID: id}, &confirmed)); err != nil {
				return err
			}
			if !confirmed {
				fmt.Fprintln(current.out, "Aborted")
				return nil
			}
		}

		if err := current.events.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(current.out, "Deleted event %d\n", id)
		return nil
	},
}

var eventsBrowseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse and search events interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := current.require(ctx, authz.ViewEvents); err != nil {
			return err
		}
		if !tui.IsInteractive() {
			return fmt.Errorf("events browse needs a terminal; use 'eventctl events list' instead")
		}

		deletion := current.gate.Evaluate(authz.ActionDeleteEvent.Requirement)
		return tui.RunBrowser(tui.NewBrowser(ctx, current.events, deletion, current.styles()))
	},
}

func init() {
	eventsListCmd.Flags().StringP("search", "s", "", "only show events whose title contains this text")

	eventsCreateCmd.Flags().String("title", "", "event title")
	eventsCreateCmd.Flags().String("description", "", "event description")
	eventsCreateCmd.Flags().String("date", "", "event date, e.g. 2025-12-12T18:30")
	eventsCreateCmd.Flags().String("location", "", "event location")

	eventsDeleteCmd.Flags().BoolP("yes", "y", false, "delete without confirmation")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsCreateCmd)
	eventsCmd.AddCommand(eventsDeleteCmd)
	eventsCmd.AddCommand(eventsBrowseCmd)
	rootCmd.AddCommand(eventsCmd)
}
