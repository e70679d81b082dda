package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/eventctl/internal/authz"
	"github.com/felixgeelhaar/eventctl/internal/session"
)

// RenderDashboard renders the greeting and one card per view the session
// may open. Views the role does not allow are not shown.
func RenderDashboard(snap session.Snapshot, styles Styles) string {
	var b strings.Builder

	name := "there"
	role := "unknown"
	if snap.User != nil {
		name = snap.User.DisplayName()
		if snap.User.Role != "" {
			role = snap.User.Role
		}
	}

	b.WriteString(styles.Title.Render(fmt.Sprintf("Welcome, %s", name)))
	b.WriteString("\n")
	b.WriteString(styles.Muted.Render(fmt.Sprintf("Role: %s  Session: %s", role, session.Fingerprint(snap.Token))))
	b.WriteString("\n\n")

	var cards []string
	for _, v := range authz.VisibleViews(snap) {
		if v.Name == authz.ViewDashboard.Name {
			continue
		}
		body := styles.Key.Render(v.Title) + "\n" + styles.KeyDesc.Render(v.Description)
		cards = append(cards, styles.Card.Render(body))
	}
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, cards...))
	b.WriteString("\n")

	if snap.User == nil {
		b.WriteString(styles.Warning.Render("Profile unavailable; role-restricted views are hidden."))
		b.WriteString("\n")
	}

	return b.String()
}
