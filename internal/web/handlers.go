package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/justestif/go-spotify-insights/internal/auth"
	"github.com/justestif/go-spotify-insights/internal/charts"
	"github.com/justestif/go-spotify-insights/internal/export"
	"github.com/justestif/go-spotify-insights/internal/insights"
	"github.com/justestif/go-spotify-insights/internal/session"
	"github.com/justestif/go-spotify-insights/internal/spotify"
)

const (
	stateCookie = "oauth_state"
	stateMaxAge = 300 // seconds
)

// SpotifyAPI is the Spotify data the pages read.
type SpotifyAPI interface {
	insights.Source
	CurrentUser(ctx context.Context) (spotify.Profile, error)
}

// APIFactory returns a Spotify client authenticated with accessToken.
type APIFactory func(ctx context.Context, accessToken string) SpotifyAPI

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	flow      *auth.Flow
	sessions  *session.Manager
	insights  *insights.Service
	newAPI    APIFactory
	exports   *export.Sink
	templates *Templates
	secure    bool
}

// Home handles the home page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	data := HomePageData{PageData: h.page(r, "Spotify Insights")}
	data.Authenticated = data.User != nil
	h.render(w, r, http.StatusOK, "home", data)
}

// Login starts the authorization flow on a fresh session (GET /login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	handle := session.FromContext(ctx)

	if err := handle.Destroy(ctx); err != nil {
		h.internalError(w, r, err, "resetting session")
		return
	}
	login, err := h.flow.BeginLogin(ctx, handle)
	if err != nil {
		h.internalError(w, r, err, "starting login")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    login.State,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   stateMaxAge,
	})
	http.Redirect(w, r, login.URL, http.StatusFound)
}

// Callback completes the authorization flow (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := hlog.FromRequest(r)
	q := r.URL.Query()

	// The user denied access or Spotify sent no code: start over.
	if e := q.Get("error"); e != "" {
		log.Info().Str("error", e).Msg("authorization declined")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		log.Warn().Msg("oauth state mismatch")
		h.renderError(w, r, http.StatusBadRequest, "The login request could not be verified. Please try logging in again.")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		MaxAge:   -1,
	})

	handle := session.FromContext(ctx)
	rec, err := h.flow.CompleteLogin(ctx, handle, code)
	var exchangeErr *auth.ExchangeError
	switch {
	case errors.As(err, &exchangeErr):
		h.renderError(w, r, http.StatusBadGateway, fmt.Sprintf(
			"Spotify API error: %v. Please check your app settings and user permissions.", exchangeErr.Err))
		return
	case err != nil:
		h.internalError(w, r, err, "storing token")
		return
	}

	profile, err := h.newAPI(ctx, rec.AccessToken).CurrentUser(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("fetching profile after login")
	} else if err := handle.SetProfile(ctx, session.Profile{UserID: profile.ID, UserName: profile.Name()}); err != nil {
		h.internalError(w, r, err, "saving profile")
		return
	}

	if _, err := h.sessions.Renew(ctx, w, handle); err != nil {
		h.internalError(w, r, err, "renewing session")
		return
	}
	http.Redirect(w, r, "/welcome", http.StatusFound)
}

// Logout clears the token and the session (POST /logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.flow.Logout(r.Context(), session.FromContext(r.Context())); err != nil {
		h.internalError(w, r, err, "logging out")
		return
	}
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Welcome shows the user's Spotify profile (GET /welcome).
func (h *Handlers) Welcome(w http.ResponseWriter, r *http.Request) {
	profile, err := h.api(r).CurrentUser(r.Context())
	if err != nil {
		h.upstreamError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "welcome", WelcomePageData{
		PageData: h.page(r, "Welcome"),
		Profile:  profile,
	})
}

// TopTracks shows the top tracks with their audio features (GET /top_tracks).
func (h *Handlers) TopTracks(w http.ResponseWriter, r *http.Request) {
	tr := spotify.ParseTimeRange(r.URL.Query().Get("time_range"))
	report, err := h.insights.TopTracks(r.Context(), h.api(r), tr)
	if err != nil {
		h.insightError(w, r, err, "No top tracks data available for the selected time range.")
		return
	}

	data := TopTracksPageData{
		PageData:            h.page(r, "Top Tracks"),
		TimeRange:           tr,
		Ranges:              rangeOptions(tr),
		FeaturesUnavailable: report.FeaturesUnavailable,
		Moods:               report.Moods,
	}
	for _, tf := range report.Tracks {
		row := TrackRow{TrackFeatures: tf}
		if tf.HasFeatures {
			if row.Chart, err = charts.Radar(tf).JSON(); err != nil {
				h.internalError(w, r, err, "building radar chart")
				return
			}
		}
		data.Tracks = append(data.Tracks, row)
	}
	if len(report.Profile) > 0 {
		if data.ProfileChart, err = charts.ProfileBar(report.Profile).JSON(); err != nil {
			h.internalError(w, r, err, "building profile chart")
			return
		}
	}

	if h.exports != nil {
		user := ""
		if data.User != nil {
			user = data.User.ID
		}
		if path, err := h.exports.Save(user, report.Tracks); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("exporting track features")
		} else {
			hlog.FromRequest(r).Debug().Str("path", path).Msg("exported track features")
		}
	}

	h.render(w, r, http.StatusOK, "top_tracks", data)
}

// TopTracksCSV downloads the top tracks' audio features (GET /top_tracks.csv).
func (h *Handlers) TopTracksCSV(w http.ResponseWriter, r *http.Request) {
	tr := spotify.ParseTimeRange(r.URL.Query().Get("time_range"))
	report, err := h.insights.TopTracks(r.Context(), h.api(r), tr)
	if err != nil {
		h.insightError(w, r, err, "No top tracks data available for the selected time range.")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, report.Tracks); err != nil {
		h.internalError(w, r, err, "writing csv")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="track_features.csv"`)
	_, _ = w.Write(buf.Bytes())
}

// TopArtists shows listening time per top artist (GET /top_artists).
func (h *Handlers) TopArtists(w http.ResponseWriter, r *http.Request) {
	tr := spotify.ParseTimeRange(r.URL.Query().Get("time_range"))
	report, err := h.insights.TopArtists(r.Context(), h.api(r), tr)
	if err != nil {
		h.insightError(w, r, err, "No top artists data available for the selected time range.")
		return
	}

	chart, err := charts.ArtistBar(report.Artists).JSON()
	if err != nil {
		h.internalError(w, r, err, "building artist chart")
		return
	}
	h.render(w, r, http.StatusOK, "top_artists", TopArtistsPageData{
		PageData:  h.page(r, "Top Artists"),
		TimeRange: tr,
		Ranges:    rangeOptions(tr),
		Artists:   report.Artists,
		Chart:     chart,
	})
}

// TopGenres shows the genre distribution of the top tracks (GET /top_genres).
func (h *Handlers) TopGenres(w http.ResponseWriter, r *http.Request) {
	tr := spotify.ParseTimeRange(r.URL.Query().Get("time_range"))
	report, err := h.insights.TopGenres(r.Context(), h.api(r), tr)
	if err != nil {
		h.insightError(w, r, err, "No genre data available for the selected time range.")
		return
	}

	chart, err := charts.GenrePie(report.Genres).JSON()
	if err != nil {
		h.internalError(w, r, err, "building genre chart")
		return
	}
	h.render(w, r, http.StatusOK, "top_genres", TopGenresPageData{
		PageData:        h.page(r, "Top Genres"),
		TimeRange:       tr,
		Ranges:          rangeOptions(tr),
		Genres:          report.Genres,
		FallbackArtists: report.FallbackArtists,
		Chart:           chart,
	})
}

// Healthz reports liveness (GET /healthz).
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// api returns a Spotify client for the token RequireAuth resolved.
func (h *Handlers) api(r *http.Request) SpotifyAPI {
	rec, _ := TokenFromContext(r.Context())
	return h.newAPI(r.Context(), rec.AccessToken)
}

// page fills the common page data from the request's session.
func (h *Handlers) page(r *http.Request, title string) PageData {
	data := PageData{Title: title, CurrentPath: r.URL.Path}

	handle := session.FromContext(r.Context())
	if handle == nil {
		return data
	}
	p, ok, err := handle.Profile(r.Context())
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("loading session profile")
		return data
	}
	if ok {
		data.User = &UserData{ID: p.UserID, Name: p.UserName}
	}
	return data
}

// render buffers the page so a template error never sends a partial body.
func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	var buf bytes.Buffer
	if err := h.templates.Render(&buf, page, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("page", page).Msg("rendering template")
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.render(w, r, status, "error", ErrorPageData{
		PageData: h.page(r, "Error"),
		Message:  msg,
	})
}

func (h *Handlers) insightError(w http.ResponseWriter, r *http.Request, err error, noData string) {
	if errors.Is(err, insights.ErrNoData) {
		h.renderError(w, r, http.StatusOK, noData)
		return
	}
	h.upstreamError(w, r, err)
}

// upstreamError reports a failed Spotify call. A 401 means the token was
// revoked since it was resolved, so the user has to log in again.
func (h *Handlers) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if spotify.StatusCode(err) == http.StatusUnauthorized {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	hlog.FromRequest(r).Error().Err(err).Msg("spotify request failed")
	h.renderError(w, r, http.StatusBadGateway, "Spotify could not be reached. Please try again in a moment.")
}

func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, err error, action string) {
	hlog.FromRequest(r).Error().Err(err).Msg(action)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
