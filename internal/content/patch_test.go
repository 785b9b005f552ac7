package content

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeFieldsChangesOnlyNamedField(t *testing.T) {
	before := Defaults()
	after, err := Apply(before, MergeFields(SectionHeader, map[string]any{"logoText": "Acme"}))
	require.NoError(t, err)

	assert.Equal(t, "Acme", after.Header.LogoText)
	assert.Equal(t, before.Header.Navigation, after.Header.Navigation)
	assert.Equal(t, before.Hero, after.Hero)
	assert.Equal(t, before.Footer, after.Footer)
	assert.Equal(t, before.Contact, after.Contact)
	assert.Equal(t, before.Features, after.Features)
	assert.Equal(t, before.Destinations, after.Destinations)
	assert.Equal(t, "Miles of smiles", before.Header.LogoText, "input document must not change")
}

func TestMergeFieldsReplacesNestedRecordOutright(t *testing.T) {
	after, err := Apply(Defaults(), MergeFields(SectionHero, map[string]any{
		"stats": map[string]string{"happyTravelers": "1M"},
	}))
	require.NoError(t, err)
	assert.Equal(t, HeroStats{HappyTravelers: "1M"}, after.Hero.Stats)
	assert.Equal(t, Defaults().Hero.Badge, after.Hero.Badge)
}

func TestMergeFieldsRejectsUnknownField(t *testing.T) {
	before := Defaults()
	after, err := Apply(before, MergeFields(SectionContact, map[string]any{"fax": "123"}))
	assert.ErrorIs(t, err, ErrInvalidPatch)
	assert.Equal(t, before, after)
}

func TestMergeFieldsRejectsWrongType(t *testing.T) {
	_, err := Apply(Defaults(), MergeFields(SectionContact, map[string]any{"hours": 9}))
	assert.ErrorIs(t, err, ErrInvalidPatch)
}

func TestMergeOnListSectionIsRejected(t *testing.T) {
	before := Defaults()
	after, err := Apply(before, MergeFields(SectionDestinations, map[string]any{"name": "x"}))
	assert.ErrorIs(t, err, ErrListSection)
	assert.Equal(t, before, after)
}

func TestReplaceListSection(t *testing.T) {
	after, err := Apply(Defaults(), Replace(SectionDestinations, []Destination{}))
	require.NoError(t, err)
	assert.Empty(t, after.Destinations)
	assert.NotNil(t, after.Destinations)
}

func TestReplaceWrongTypeIsRejected(t *testing.T) {
	_, err := Apply(Defaults(), Replace(SectionHeader, Contact{}))
	assert.ErrorIs(t, err, ErrPatchType)
}

func TestReplaceDoesNotShareCallerSlices(t *testing.T) {
	nav := []NavLink{{Name: "Only", Href: "#"}}
	after, err := Apply(Defaults(), Replace(SectionHeader, Header{LogoText: "A", Navigation: nav}))
	require.NoError(t, err)
	nav[0].Name = "mutated"
	assert.Equal(t, "Only", after.Header.Navigation[0].Name)
}

func TestTransformReceivesCurrentValue(t *testing.T) {
	after, err := Apply(Defaults(), Transform(SectionFeatures, func(f Features) Features {
		f.Items = f.Items[:1]
		f.Title = f.Title + "!"
		return f
	}))
	require.NoError(t, err)
	assert.Equal(t, "Why Choose Us!", after.Features.Title)
	assert.Len(t, after.Features.Items, 1)
}

func TestUnknownSection(t *testing.T) {
	_, err := Apply(Defaults(), MergeFields(Section("pricing"), map[string]any{"a": 1}))
	assert.ErrorIs(t, err, ErrUnknownSection)

	_, err = ParseSection("pricing")
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestReplaceJSON(t *testing.T) {
	patch, err := ReplaceJSON(SectionContact, json.RawMessage(`{"title":"New"}`))
	require.NoError(t, err)
	assert.Equal(t, PatchReplace, patch.Kind())

	after, err := Apply(Defaults(), patch)
	require.NoError(t, err)
	assert.Equal(t, Contact{Title: "New"}, after.Contact)

	_, err = ReplaceJSON(SectionContact, json.RawMessage(`{"nope":1}`))
	assert.ErrorIs(t, err, ErrInvalidPatch)

	_, err = ReplaceJSON(SectionDestinations, json.RawMessage(`null`))
	assert.ErrorIs(t, err, ErrInvalidPatch)
}

func TestMergeJSONRequiresObject(t *testing.T) {
	_, err := MergeJSON(SectionHeader, json.RawMessage(`[1]`))
	assert.ErrorIs(t, err, ErrInvalidPatch)

	patch, err := MergeJSON(SectionHeader, json.RawMessage(`{"logoText":"Acme"}`))
	require.NoError(t, err)
	after, err := Apply(Defaults(), patch)
	require.NoError(t, err)
	assert.Equal(t, "Acme", after.Header.LogoText)
}

func TestSectionValue(t *testing.T) {
	value, err := SectionValue(Defaults(), SectionContact)
	require.NoError(t, err)
	contact, ok := value.(Contact)
	require.True(t, ok)
	assert.Equal(t, "Get In Touch", contact.Title)
}

func TestWithResolvedIcons(t *testing.T) {
	doc := Defaults()
	doc.Hero.Features[0].Icon = "Rocket"
	doc.Features.Items[0].Icon = ""

	resolved := doc.WithResolvedIcons()
	assert.Equal(t, string(IconStar), resolved.Hero.Features[0].Icon)
	assert.Equal(t, string(IconShield), resolved.Features.Items[0].Icon)
	assert.Equal(t, string(IconClock), resolved.Features.Items[1].Icon)
	assert.Equal(t, "Rocket", doc.Hero.Features[0].Icon)
}

func TestNilListsAreStoredEmpty(t *testing.T) {
	for name, patch := range map[string]Patch{
		"replace":   Replace(SectionDestinations, []Destination(nil)),
		"transform": Transform(SectionDestinations, func([]Destination) []Destination { return nil }),
	} {
		t.Run(name, func(t *testing.T) {
			after, err := Apply(Defaults(), patch)
			require.NoError(t, err)
			require.NotNil(t, after.Destinations)
			assert.Empty(t, after.Destinations)

			raw, err := json.Marshal(after)
			require.NoError(t, err)
			assert.Empty(t, Merge(raw).Destinations)
		})
	}
}

func TestNilNestedListsAreStoredEmpty(t *testing.T) {
	after, err := Apply(Defaults(), Replace(SectionFooter, Footer{CompanyName: "Acme"}))
	require.NoError(t, err)
	assert.Equal(t, []NavLink{}, after.Footer.QuickLinks)
	assert.Equal(t, []NavLink{}, after.Footer.Services)

	after, err = Apply(after, Replace(SectionDestinations, []Destination{{Name: "Bare"}}))
	require.NoError(t, err)
	assert.Equal(t, []string{}, after.Destinations[0].Highlights)
	assert.Equal(t, []ItineraryDay{}, after.Destinations[0].Itinerary)

	raw, err := json.Marshal(after)
	require.NoError(t, err)
	reloaded := Merge(raw)
	assert.Empty(t, reloaded.Footer.QuickLinks)
	assert.Equal(t, "Bare", reloaded.Destinations[0].Name)
}
