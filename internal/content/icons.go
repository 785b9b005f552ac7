package content

// Icon is one of the icon identifiers the site knows how to draw.
type Icon string

const (
	IconStar       Icon = "Star"
	IconShield     Icon = "Shield"
	IconGlobe      Icon = "Globe"
	IconClock      Icon = "Clock"
	IconAward      Icon = "Award"
	IconHeadphones Icon = "HeadphonesIcon"
	IconWallet     Icon = "Wallet"
)

var knownIcons = map[Icon]struct{}{
	IconStar:       {},
	IconShield:     {},
	IconGlobe:      {},
	IconClock:      {},
	IconAward:      {},
	IconHeadphones: {},
	IconWallet:     {},
}

// ResolveIcon maps a stored icon name to a known Icon, or fallback.
func ResolveIcon(name string, fallback Icon) Icon {
	if _, ok := knownIcons[Icon(name)]; ok {
		return Icon(name)
	}
	return fallback
}

// WithResolvedIcons returns a copy of doc whose hero and feature icons are
// all known identifiers. Hero entries fall back to Star, feature items to
// Shield.
func (d Document) WithResolvedIcons() Document {
	out := d.Clone()
	for i := range out.Hero.Features {
		out.Hero.Features[i].Icon = string(ResolveIcon(out.Hero.Features[i].Icon, IconStar))
	}
	for i := range out.Features.Items {
		out.Features.Items[i].Icon = string(ResolveIcon(out.Features.Items[i].Icon, IconShield))
	}
	return out
}
