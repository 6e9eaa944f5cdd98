package routes

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fundamenta/fundi/internal/models"
)

// DiagnosticPath is offered first for home-maintenance questions.
const DiagnosticPath = "/home-maintenance/diagnostic"

const emergencyRootPath = "/emergency"

var permissionPhrases = []string{"would you like", "should i", "do you want"}

// IsPermissionQuestion reports whether text already asks the user for permission.
func IsPermissionQuestion(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	lower := strings.ToLower(text)
	for _, p := range permissionPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// PermissionText is the canonical suggestion text for a route.
func PermissionText(r RouteInfo) string {
	return fmt.Sprintf("Would you like me to take you to the %s section?", r.Name)
}

// PostProcess validates the navigation suggestions in resp using the default table.
func PostProcess(resp models.StructuredResponse, category models.Category, page models.PageContext) (models.StructuredResponse, []models.Action) {
	return defaultTable.PostProcess(resp, category, page)
}

// PostProcess validates every path-bearing suggestion against the whitelist, rewriting invalid
// paths to the closest valid route or dropping them in favour of a single home suggestion.
// Surviving suggestions are phrased as permission questions and each yields a navigate action
// that requires confirmation. The returned response carries the same actions.
func (t *Table) PostProcess(resp models.StructuredResponse, category models.Category, page models.PageContext) (models.StructuredResponse, []models.Action) {
	out := make([]models.Suggestion, 0, len(resp.Suggestions)+2)
	dropped := false
	hasNav := false

	for _, s := range resp.Suggestions {
		if strings.TrimSpace(s.Path) == "" {
			out = append(out, s)
			continue
		}
		resolved, err := t.Resolve(s.Path)
		if err != nil {
			slog.Debug("routes.PostProcess: dropping suggestion", "path", s.Path, "error", err)
			dropped = true
			continue
		}
		if resolved != s.Path {
			slog.Debug("routes.PostProcess: rewrote suggestion path", "from", s.Path, "to", resolved)
		}
		s.Path = resolved
		out = append(out, s)
		hasNav = true
	}

	if !hasNav {
		if inject, ok := t.injectedSuggestion(resp, category, page); ok {
			out = append([]models.Suggestion{inject}, out...)
		}
	}

	if dropped && !hasHome(out) {
		out = append(out, models.HomeSuggestion())
	}

	actions := make([]models.Action, 0, len(out))
	for i := range out {
		if out[i].Path == "" {
			continue
		}
		route := t.byPath[out[i].Path]
		if !IsPermissionQuestion(out[i].Text) {
			out[i].Text = PermissionText(route)
		}
		if out[i].Description == "" {
			out[i].Description = route.Description
		}
		action := models.Action{
			Type:                 models.ActionNavigate,
			Path:                 route.Path,
			Label:                route.Name,
			RequiresConfirmation: true,
		}
		out[i].Action = action
		actions = append(actions, action)
	}

	resp.Suggestions = out
	resp.Actions = actions
	return resp, actions
}

// injectedSuggestion returns the category-specific route offered when a response carries no
// navigation of its own. Nothing is injected when the user is already on that page.
func (t *Table) injectedSuggestion(resp models.StructuredResponse, category models.Category, page models.PageContext) (models.Suggestion, bool) {
	var path string
	switch category {
	case models.CategoryEmergency:
		path = t.bestEmergencyRoute(resp.Response)
	case models.CategoryHomeMaintenance:
		path = DiagnosticPath
	default:
		return models.Suggestion{}, false
	}
	route, ok := t.byPath[path]
	if !ok || normalizePath(page.CurrentPage) == path {
		return models.Suggestion{}, false
	}
	return models.Suggestion{
		Text:        PermissionText(route),
		Path:        route.Path,
		Description: route.Description,
	}, true
}

// bestEmergencyRoute picks the emergency route whose keywords best match text, defaulting
// to the emergency root.
func (t *Table) bestEmergencyRoute(text string) string {
	lower := strings.ToLower(text)
	best, bestHits := emergencyRootPath, 0
	for _, r := range t.ForCategory(models.CategoryEmergency) {
		hits := 0
		for _, k := range r.Keywords {
			if strings.Contains(lower, k) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = r.Path, hits
		}
	}
	return best
}

func hasHome(suggestions []models.Suggestion) bool {
	for _, s := range suggestions {
		if s.Path == "/" {
			return true
		}
	}
	return false
}
