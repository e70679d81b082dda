package authz

import "github.com/felixgeelhaar/eventctl/internal/session"

// View is a session-bound screen or action and the requirement guarding it.
type View struct {
	Name        string
	Title       string
	Description string
	Requirement Requirement
}

// Views and actions of the client.
var (
	ViewDashboard = View{
		Name:        "dashboard",
		Title:       "Dashboard",
		Description: "Overview of your account",
		Requirement: Anyone(),
	}
	ViewEvents = View{
		Name:        "events",
		Title:       "View events",
		Description: "Browse and search events",
		Requirement: Anyone(),
	}
	ViewCreateEvent = View{
		Name:        "create-event",
		Title:       "Create event",
		Description: "Publish a new event",
		Requirement: AnyRole(RoleAdmin, RoleOrganizer),
	}
	ViewProfile = View{
		Name:        "profile",
		Title:       "Profile",
		Description: "Your name, email and role",
		Requirement: Anyone(),
	}
	ViewSettings = View{
		Name:        "settings",
		Title:       "Settings",
		Description: "Client configuration",
		Requirement: Anyone(),
	}

	ActionDeleteEvent = View{
		Name:        "delete-event",
		Title:       "Delete event",
		Description: "Remove an event",
		Requirement: AnyRole(RoleAdmin, RoleOrganizer),
	}
)

// Catalog lists the dashboard views in display order.
var Catalog = []View{ViewDashboard, ViewEvents, ViewCreateEvent, ViewProfile, ViewSettings}

// LookupView finds a view or action by name.
func LookupView(name string) (View, bool) {
	for _, v := range Catalog {
		if v.Name == name {
			return v, true
		}
	}
	if name == ActionDeleteEvent.Name {
		return ActionDeleteEvent, true
	}
	return View{}, false
}

// VisibleViews returns the catalog entries the session may open.
func VisibleViews(snap session.Snapshot) []View {
	var visible []View
	for _, v := range Catalog {
		if Evaluate(snap, v.Requirement).Allowed() {
			visible = append(visible, v)
		}
	}
	return visible
}
