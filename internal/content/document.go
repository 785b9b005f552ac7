// Package content defines the editable site document, its defaults and the
// merge and patch rules applied to it.
package content

// Document is the root of all editable site copy.
type Document struct {
	Header       Header        `json:"header" yaml:"header"`
	Hero         Hero          `json:"hero" yaml:"hero"`
	Footer       Footer        `json:"footer" yaml:"footer"`
	Contact      Contact       `json:"contact" yaml:"contact"`
	Features     Features      `json:"features" yaml:"features"`
	Destinations []Destination `json:"destinations" yaml:"destinations"`
}

type NavLink struct {
	Name string `json:"name" yaml:"name"`
	Href string `json:"href" yaml:"href"`
}

type Header struct {
	LogoText   string    `json:"logoText" yaml:"logoText"`
	Navigation []NavLink `json:"navigation" yaml:"navigation"`
}

type HeroFeature struct {
	Icon string `json:"icon" yaml:"icon"`
	Text string `json:"text" yaml:"text"`
}

type HeroStats struct {
	HappyTravelers string `json:"happyTravelers" yaml:"happyTravelers"`
	Destinations   string `json:"destinations" yaml:"destinations"`
}

type Hero struct {
	Badge          string        `json:"badge" yaml:"badge"`
	Title          string        `json:"title" yaml:"title"`
	TitleHighlight string        `json:"titleHighlight" yaml:"titleHighlight"`
	Description    string        `json:"description" yaml:"description"`
	Features       []HeroFeature `json:"features" yaml:"features"`
	Stats          HeroStats     `json:"stats" yaml:"stats"`
}

type SocialLinks struct {
	Facebook  string `json:"facebook" yaml:"facebook"`
	Twitter   string `json:"twitter" yaml:"twitter"`
	Instagram string `json:"instagram" yaml:"instagram"`
	Youtube   string `json:"youtube" yaml:"youtube"`
}

type Footer struct {
	CompanyName string      `json:"companyName" yaml:"companyName"`
	Description string      `json:"description" yaml:"description"`
	Phone       string      `json:"phone" yaml:"phone"`
	Email       string      `json:"email" yaml:"email"`
	Address     string      `json:"address" yaml:"address"`
	QuickLinks  []NavLink   `json:"quickLinks" yaml:"quickLinks"`
	Services    []NavLink   `json:"services" yaml:"services"`
	SocialLinks SocialLinks `json:"socialLinks" yaml:"socialLinks"`
	Copyright   string      `json:"copyright" yaml:"copyright"`
}

type Contact struct {
	Title          string `json:"title" yaml:"title"`
	Subtitle       string `json:"subtitle" yaml:"subtitle"`
	Phone1         string `json:"phone1" yaml:"phone1"`
	Phone2         string `json:"phone2" yaml:"phone2"`
	Email          string `json:"email" yaml:"email"`
	Address        string `json:"address" yaml:"address"`
	WhatsappNumber string `json:"whatsappNumber" yaml:"whatsappNumber"`
	Hours          string `json:"hours" yaml:"hours"`
}

type FeatureItem struct {
	Icon        string `json:"icon" yaml:"icon"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

type Features struct {
	Title    string        `json:"title" yaml:"title"`
	Subtitle string        `json:"subtitle" yaml:"subtitle"`
	Items    []FeatureItem `json:"items" yaml:"items"`
}

// Destination is identified by its position in Document.Destinations.
type Destination struct {
	Name        string         `json:"name" yaml:"name"`
	Image       string         `json:"image" yaml:"image"`
	Tag         string         `json:"tag,omitempty" yaml:"tag,omitempty"`
	Rating      float64        `json:"rating" yaml:"rating"`
	Duration    string         `json:"duration" yaml:"duration"`
	Description string         `json:"description" yaml:"description"`
	Highlights  []string       `json:"highlights" yaml:"highlights"`
	Inclusions  []string       `json:"inclusions" yaml:"inclusions"`
	Itinerary   []ItineraryDay `json:"itinerary" yaml:"itinerary"`
}

// ItineraryDay numbers are assigned by the caller and need not be unique.
type ItineraryDay struct {
	Day         int    `json:"day" yaml:"day"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// Section names a top-level key of Document.
type Section string

const (
	SectionHeader       Section = "header"
	SectionHero         Section = "hero"
	SectionFooter       Section = "footer"
	SectionContact      Section = "contact"
	SectionFeatures     Section = "features"
	SectionDestinations Section = "destinations"
)

// Sections lists every section in document order.
var Sections = []Section{
	SectionHeader,
	SectionHero,
	SectionFooter,
	SectionContact,
	SectionFeatures,
	SectionDestinations,
}

func ParseSection(name string) (Section, error) {
	for _, s := range Sections {
		if string(s) == name {
			return s, nil
		}
	}
	return "", ErrUnknownSection
}

// IsList reports whether the section is list valued.
func (s Section) IsList() bool {
	return s == SectionDestinations
}

// Clone returns a deep copy so callers never share slices with the live
// document.
func (d Document) Clone() Document {
	out := d
	out.Header = d.Header.clone()
	out.Hero = d.Hero.clone()
	out.Footer = d.Footer.clone()
	out.Features = d.Features.clone()
	out.Destinations = cloneDestinations(d.Destinations)
	return out
}

func (h Header) clone() Header {
	h.Navigation = cloneSlice(h.Navigation)
	return h
}

func (h Hero) clone() Hero {
	h.Features = cloneSlice(h.Features)
	return h
}

func (f Footer) clone() Footer {
	f.QuickLinks = cloneSlice(f.QuickLinks)
	f.Services = cloneSlice(f.Services)
	return f
}

func (f Features) clone() Features {
	f.Items = cloneSlice(f.Items)
	return f
}

func (d Destination) clone() Destination {
	d.Highlights = cloneSlice(d.Highlights)
	d.Inclusions = cloneSlice(d.Inclusions)
	d.Itinerary = cloneSlice(d.Itinerary)
	return d
}

func cloneDestinations(in []Destination) []Destination {
	if in == nil {
		return nil
	}
	out := make([]Destination, len(in))
	for i, d := range in {
		out[i] = d.clone()
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// fillLists turns nil lists in a section into empty ones. A nil list would
// be stored as null, which Merge reads back as "use the defaults".
func fillLists(section any) {
	switch v := section.(type) {
	case *Header:
		v.Navigation = orEmpty(v.Navigation)
	case *Hero:
		v.Features = orEmpty(v.Features)
	case *Footer:
		v.QuickLinks = orEmpty(v.QuickLinks)
		v.Services = orEmpty(v.Services)
	case *Features:
		v.Items = orEmpty(v.Items)
	case *[]Destination:
		*v = orEmpty(*v)
		for i := range *v {
			d := &(*v)[i]
			d.Highlights = orEmpty(d.Highlights)
			d.Inclusions = orEmpty(d.Inclusions)
			d.Itinerary = orEmpty(d.Itinerary)
		}
	}
}

func orEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
