// Package catalog holds the event-list shaping used by the public catalog
// view and the dashboard: free-text/category filtering and fixed-size
// pagination. Both operate on already-fetched slices and preserve input
// order.
package catalog

import (
	"strings"

	"eventhub/internal/model"
)

// PageSize is the number of events shown per catalog page.
const PageSize = 12

// CategoryAll is the sentinel meaning "no category restriction".
const CategoryAll = "All"

// Filter returns the events whose title or description contains query
// (case-insensitive) and whose category matches the selector. An empty
// query matches everything; CategoryAll or an empty category disables the
// category restriction.
func Filter(events []model.Event, query, category string) []model.Event {
	q := strings.ToLower(query)
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		matchesSearch := strings.Contains(strings.ToLower(e.Title), q) ||
			strings.Contains(strings.ToLower(e.Description), q)
		matchesCategory := category == "" || category == CategoryAll || e.EventType == category
		if matchesSearch && matchesCategory {
			out = append(out, e)
		}
	}
	return out
}

// TotalPages is ceil(n / PageSize).
func TotalPages(n int) int {
	return (n + PageSize - 1) / PageSize
}

// Paginate slices out the 1-based page and reports the total page count.
// Pages outside [1, total] yield an empty slice; the caller's navigation
// controls are expected to prevent them in the first place.
func Paginate(events []model.Event, page int) ([]model.Event, int) {
	total := TotalPages(len(events))
	if page < 1 || page > total {
		return nil, total
	}
	start := (page - 1) * PageSize
	end := start + PageSize
	if end > len(events) {
		end = len(events)
	}
	return events[start:end], total
}

// FilterRegistrations is the dashboard's registration search: a
// case-insensitive substring match over attendee name, email, or the copied
// event label.
func FilterRegistrations(regs []model.Registration, search string) []model.Registration {
	if search == "" {
		return regs
	}
	q := strings.ToLower(search)
	out := make([]model.Registration, 0, len(regs))
	for _, r := range regs {
		if strings.Contains(strings.ToLower(r.FullName), q) ||
			strings.Contains(strings.ToLower(r.Email), q) ||
			strings.Contains(strings.ToLower(r.EventType), q) {
			out = append(out, r)
		}
	}
	return out
}
