package content

import "strings"

const (
	NewDayTitle       = "New Day"
	NewDayDescription = "Describe the activities for this day."
)

// NewDestination returns the placeholder entry the admin panel adds.
func NewDestination() Destination {
	return Destination{
		Name:        "New Destination",
		Image:       "https://via.placeholder.com/800x600?text=Destination",
		Tag:         "Featured",
		Rating:      4.5,
		Duration:    "4 Days",
		Description: "Add a compelling description for this package.",
		Highlights:  []string{"Highlight 1", "Highlight 2"},
		Inclusions:  []string{"Inclusion 1", "Inclusion 2"},
		Itinerary: []ItineraryDay{
			{Day: 1, Title: "Day 1", Description: "Describe the planned activities for Day 1."},
		},
	}
}

// NextDay is one past the highest day number, or 1 for an empty itinerary.
func NextDay(itinerary []ItineraryDay) int {
	highest := 0
	for _, day := range itinerary {
		if day.Day > highest {
			highest = day.Day
		}
	}
	return highest + 1
}

// AddDestination appends the placeholder destination.
func AddDestination() Patch {
	return Transform(SectionDestinations, func(list []Destination) []Destination {
		return append(list, NewDestination())
	})
}

// RemoveDestination drops the destination at index.
func RemoveDestination(index int) Patch {
	return TryTransform(SectionDestinations, func(list []Destination) ([]Destination, error) {
		if index < 0 || index >= len(list) {
			return nil, ErrIndexOutOfRange
		}
		out := make([]Destination, 0, len(list)-1)
		out = append(out, list[:index]...)
		return append(out, list[index+1:]...), nil
	})
}

// AppendItineraryDay adds a "New Day" entry numbered NextDay to the
// destination at index.
func AppendItineraryDay(index int) Patch {
	return TryTransform(SectionDestinations, func(list []Destination) ([]Destination, error) {
		if index < 0 || index >= len(list) {
			return nil, ErrIndexOutOfRange
		}
		d := list[index]
		d.Itinerary = append(cloneSlice(d.Itinerary), ItineraryDay{
			Day:         NextDay(d.Itinerary),
			Title:       NewDayTitle,
			Description: NewDayDescription,
		})
		list[index] = d
		return list, nil
	})
}

// RemoveItineraryDay drops the itinerary entry at position day of the
// destination at index.
func RemoveItineraryDay(index, day int) Patch {
	return TryTransform(SectionDestinations, func(list []Destination) ([]Destination, error) {
		if index < 0 || index >= len(list) {
			return nil, ErrIndexOutOfRange
		}
		d := list[index]
		if day < 0 || day >= len(d.Itinerary) {
			return nil, ErrIndexOutOfRange
		}
		itinerary := make([]ItineraryDay, 0, len(d.Itinerary)-1)
		itinerary = append(itinerary, d.Itinerary[:day]...)
		d.Itinerary = append(itinerary, d.Itinerary[day+1:]...)
		list[index] = d
		return list, nil
	})
}

// SplitLines turns a one-item-per-line text block into a list, trimming
// each line and dropping blank ones.
func SplitLines(text string) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
