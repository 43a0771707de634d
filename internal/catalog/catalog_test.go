package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/model"
)

func sampleEvents() []model.Event {
	return []model.Event{
		{ID: "1", Title: "College Fest 2025", Description: "Music and games", EventType: "College Fest"},
		{ID: "2", Title: "Go Webinar", Description: "Concurrency deep dive", EventType: "Webinar"},
		{ID: "3", Title: "Marathon", Description: "City run", EventType: "Sports"},
		{ID: "4", Title: "Leadership Training", Description: "For managers", EventType: "Corporate Training"},
		{ID: "5", Title: "Spring Fest", Description: "Open air concert", EventType: "College Fest"},
	}
}

func TestFilterAllCategoryMatchesEverything(t *testing.T) {
	events := sampleEvents()

	assert.Equal(t, Filter(events, "", ""), Filter(events, "", CategoryAll))
	assert.Len(t, Filter(events, "", CategoryAll), len(events))
}

func TestFilterByQuery(t *testing.T) {
	events := sampleEvents()

	got := Filter(events, "fest", CategoryAll)
	require.Len(t, got, 2)
	// Input order is preserved, never re-sorted.
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "5", got[1].ID)

	// Description matches too.
	got = Filter(events, "concurrency", CategoryAll)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)

	// Case-insensitive.
	assert.Equal(t, Filter(events, "FEST", CategoryAll), Filter(events, "fest", CategoryAll))
}

func TestFilterByCategory(t *testing.T) {
	events := sampleEvents()

	got := Filter(events, "", "College Fest")
	require.Len(t, got, 2)

	got = Filter(events, "spring", "College Fest")
	require.Len(t, got, 1)
	assert.Equal(t, "5", got[0].ID)

	assert.Empty(t, Filter(events, "", "Hackathon"))
}

func TestFilterIdempotent(t *testing.T) {
	events := sampleEvents()

	once := Filter(events, "fest", "College Fest")
	twice := Filter(once, "fest", "College Fest")
	assert.Equal(t, once, twice)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0))
	assert.Equal(t, 1, TotalPages(1))
	assert.Equal(t, 1, TotalPages(PageSize))
	assert.Equal(t, 2, TotalPages(PageSize+1))
	assert.Equal(t, 3, TotalPages(3*PageSize))
}

func TestPaginateReconstructsList(t *testing.T) {
	var events []model.Event
	for i := 0; i < 30; i++ {
		events = append(events, model.Event{ID: fmt.Sprintf("e%d", i)})
	}

	_, total := Paginate(events, 1)
	require.Equal(t, 3, total)

	var joined []model.Event
	for page := 1; page <= total; page++ {
		items, _ := Paginate(events, page)
		joined = append(joined, items...)
	}
	assert.Equal(t, events, joined)
}

func TestPaginateOutOfRange(t *testing.T) {
	events := sampleEvents()

	items, total := Paginate(events, 2)
	assert.Equal(t, 1, total)
	assert.Nil(t, items)

	items, _ = Paginate(events, 0)
	assert.Nil(t, items)

	items, total = Paginate(nil, 1)
	assert.Equal(t, 0, total)
	assert.Nil(t, items)
}

func TestFilterRegistrations(t *testing.T) {
	regs := []model.Registration{
		{ID: "r1", FullName: "Alice Smith", Email: "alice@example.com", EventType: "Webinar"},
		{ID: "r2", FullName: "Bob Jones", Email: "bob@example.com", EventType: "Sports"},
	}

	assert.Equal(t, regs, FilterRegistrations(regs, ""))

	got := FilterRegistrations(regs, "alice")
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)

	got = FilterRegistrations(regs, "sports")
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].ID)

	assert.Empty(t, FilterRegistrations(regs, "charlie"))
}
