package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/justestif/go-spotify-insights/internal/clustering"
	"github.com/justestif/go-spotify-insights/internal/insights"
	"github.com/justestif/go-spotify-insights/internal/spotify"
)

// Templates manages HTML template rendering.
type Templates struct {
	templates map[string]*template.Template
	funcs     template.FuncMap
}

// NewTemplates loads every page under pages/ together with the layouts and
// partials from templatesFS.
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	t := &Templates{
		templates: make(map[string]*template.Template),
		funcs:     defaultFuncs(),
	}

	if err := t.load(templatesFS); err != nil {
		return nil, err
	}

	return t, nil
}

// Render renders a page template with the given data.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.templates[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

func (t *Templates) load(templatesFS fs.FS) error {
	var common []string
	for _, pattern := range []string{"layouts/*.html", "partials/*.html"} {
		files, err := fs.Glob(templatesFS, pattern)
		if err != nil {
			return fmt.Errorf("finding %s: %w", pattern, err)
		}
		common = append(common, files...)
	}

	pages, err := fs.Glob(templatesFS, "pages/*.html")
	if err != nil {
		return fmt.Errorf("finding pages: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no page templates found")
	}

	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")
		files := append([]string{page}, common...)

		tmpl, err := template.New(name).Funcs(t.funcs).ParseFS(templatesFS, files...)
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", name, err)
		}
		t.templates[name] = tmpl
	}

	return nil
}

func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		// moodColor maps energy to hue (cool indigo to warm orange) and
		// valence to saturation and lightness.
		"moodColor": func(energy, valence float64) template.CSS {
			hue := 264 - (energy * 229)
			if hue < 0 {
				hue += 360
			}
			saturation := 60 + (valence * 40)
			lightness := 40 + (valence * 20)
			return template.CSS(fmt.Sprintf("hsl(%.0f, %.0f%%, %.0f%%)", hue, saturation, lightness)) //nolint:gosec // built from numbers only
		},

		"minutes": func(m float64) string {
			return fmt.Sprintf("%.1f min", m)
		},

		"percent": func(p float64) string {
			return fmt.Sprintf("%.1f%%", p)
		},

		"duration": func(ms int) string {
			s := ms / 1000
			return fmt.Sprintf("%d:%02d", s/60, s%60)
		},

		"join": strings.Join,

		"add": func(a, b int) int {
			return a + b
		},
	}
}

// PageData contains common data passed to all page templates.
type PageData struct {
	Title       string
	User        *UserData
	CurrentPath string
}

// UserData is the signed-in user shown in the page header.
type UserData struct {
	ID   string
	Name string
}

// RangeOption is one entry of the time range selector.
type RangeOption struct {
	Value    string
	Label    string
	Selected bool
}

func rangeOptions(selected spotify.TimeRange) []RangeOption {
	ranges := []spotify.TimeRange{spotify.ShortTerm, spotify.MediumTerm, spotify.LongTerm}
	opts := make([]RangeOption, len(ranges))
	for i, tr := range ranges {
		opts[i] = RangeOption{Value: string(tr), Label: tr.Label(), Selected: tr == selected}
	}
	return opts
}

// HomePageData contains data for the home page template.
type HomePageData struct {
	PageData
	Authenticated bool
}

// WelcomePageData contains data for the welcome page template.
type WelcomePageData struct {
	PageData
	Profile spotify.Profile
}

// ErrorPageData contains data for the error page template.
type ErrorPageData struct {
	PageData
	Message string
}

// TrackRow is one track on the top tracks page.
type TrackRow struct {
	insights.TrackFeatures
	Chart string // Chart.js radar configuration, JSON
}

// TopTracksPageData contains data for the top tracks page template.
type TopTracksPageData struct {
	PageData
	TimeRange           spotify.TimeRange
	Ranges              []RangeOption
	Tracks              []TrackRow
	FeaturesUnavailable bool
	Moods               []clustering.MoodGroup
	ProfileChart        string
}

// TopArtistsPageData contains data for the top artists page template.
type TopArtistsPageData struct {
	PageData
	TimeRange spotify.TimeRange
	Ranges    []RangeOption
	Artists   []insights.ArtistListening
	Chart     string
}

// TopGenresPageData contains data for the top genres page template.
type TopGenresPageData struct {
	PageData
	TimeRange       spotify.TimeRange
	Ranges          []RangeOption
	Genres          []insights.GenreCount
	FallbackArtists int
	Chart           string
}
