package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendItineraryDayUsesMaxPlusOne(t *testing.T) {
	doc := Defaults()
	doc.Destinations[0].Itinerary = []ItineraryDay{
		{Day: 1, Title: "a"},
		{Day: 3, Title: "c"},
		{Day: 2, Title: "b"},
	}

	after, err := Apply(doc, AppendItineraryDay(0))
	require.NoError(t, err)

	itinerary := after.Destinations[0].Itinerary
	require.Len(t, itinerary, 4)
	added := itinerary[3]
	assert.Equal(t, 4, added.Day)
	assert.Equal(t, "New Day", added.Title)
	assert.Equal(t, NewDayDescription, added.Description)
	assert.Len(t, doc.Destinations[0].Itinerary, 3)
}

func TestAppendItineraryDayOnEmptyItinerary(t *testing.T) {
	doc := Defaults()
	doc.Destinations[2].Itinerary = nil
	after, err := Apply(doc, AppendItineraryDay(2))
	require.NoError(t, err)
	require.Len(t, after.Destinations[2].Itinerary, 1)
	assert.Equal(t, 1, after.Destinations[2].Itinerary[0].Day)
}

func TestDestinationIndexOutOfRange(t *testing.T) {
	doc := Defaults()
	for _, patch := range []Patch{
		AppendItineraryDay(99),
		AppendItineraryDay(-1),
		RemoveDestination(8),
		RemoveItineraryDay(0, 42),
	} {
		after, err := Apply(doc, patch)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		assert.Equal(t, doc, after)
	}
}

func TestAddAndRemoveDestination(t *testing.T) {
	after, err := Apply(Defaults(), AddDestination())
	require.NoError(t, err)
	require.Len(t, after.Destinations, 9)
	added := after.Destinations[8]
	assert.Equal(t, "New Destination", added.Name)
	assert.Equal(t, 4.5, added.Rating)
	assert.Equal(t, []ItineraryDay{{Day: 1, Title: "Day 1", Description: "Describe the planned activities for Day 1."}}, added.Itinerary)

	after, err = Apply(after, RemoveDestination(0))
	require.NoError(t, err)
	require.Len(t, after.Destinations, 8)
	assert.Equal(t, "Magical Himachal", after.Destinations[0].Name)
	assert.Equal(t, "New Destination", after.Destinations[7].Name)
}

func TestRemoveItineraryDay(t *testing.T) {
	after, err := Apply(Defaults(), RemoveItineraryDay(0, 0))
	require.NoError(t, err)
	itinerary := after.Destinations[0].Itinerary
	require.Len(t, itinerary, 5)
	assert.Equal(t, 2, itinerary[0].Day)
}

func TestNextDay(t *testing.T) {
	assert.Equal(t, 1, NextDay(nil))
	assert.Equal(t, 8, NextDay([]ItineraryDay{{Day: 7}, {Day: 2}}))
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"Spa", "Beach clubs"}, SplitLines("  Spa \n\n Beach clubs\n   "))
	assert.Equal(t, []string{}, SplitLines(""))
}
