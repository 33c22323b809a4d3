package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/bryan-buckman/talkshelf/internal/filter"
	"github.com/bryan-buckman/talkshelf/internal/model"
	"github.com/bryan-buckman/talkshelf/internal/player"
	"github.com/bryan-buckman/talkshelf/internal/podfeed"
)

// --- Listing ---

type categoryOption struct {
	model.Category
	Selected bool
}

type episodeRow struct {
	Episode   model.Episode        `json:"episode"`
	AudioSrc  string               `json:"audioSrc"`
	ImageSrc  string               `json:"imageSrc,omitempty"`
	Favorite  bool                 `json:"favorite"`
	Record    model.PlaybackRecord `json:"record"`
	HasRecord bool                 `json:"hasRecord"`
}

type listing struct {
	Criteria    model.Criteria
	Query       string
	Limit       int
	Total       int
	Rows        []episodeRow
	CategoryIDs []int64
	Categories  []categoryOption
	// ShowFavoritesToggle is false while the favorite set is empty.
	ShowFavoritesToggle bool
}

func (s *Server) criteria(r *http.Request) (model.Criteria, string, int) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))

	c := model.Criteria{SearchTerms: filter.ParseTerms(query)}
	for _, raw := range q["category"] {
		if id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			c.CategoryIDs = append(c.CategoryIDs, id)
		}
	}
	switch strings.ToLower(q.Get("favorites")) {
	case "1", "true", "on":
		c.FavoritesOnly = true
	}

	limit := s.opts.PageSize
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = n
	}
	return c, query, limit
}

// list filters the catalog for the session. Favorites are re-read so writes from
// other tabs show up on the next render.
func (s *Server) list(r *http.Request, sess *session) listing {
	c, query, limit := s.criteria(r)

	sess.favorites.Reload()
	favIDs := sess.favorites.IDs()
	res := filter.Apply(s.catalog.Episodes(), c, favIDs)

	shown := res.Episodes
	if len(shown) > limit {
		shown = shown[:limit]
	}
	rows := make([]episodeRow, 0, len(shown))
	for _, ep := range shown {
		rec, ok := sess.progress.Load(ep.ID)
		rows = append(rows, episodeRow{
			Episode:   ep,
			AudioSrc:  ep.AudioSource(s.opts.MediaBaseURL),
			ImageSrc:  ep.ImageSource(s.opts.MediaBaseURL),
			Favorite:  sess.favorites.IsFavorite(ep.ID),
			Record:    rec,
			HasRecord: ok,
		})
	}

	return listing{
		Criteria:            c,
		Query:               query,
		Limit:               limit,
		Total:               len(res.Episodes),
		Rows:                rows,
		CategoryIDs:         res.CategoryIDs,
		Categories:          s.categoryOptions(res.CategoryIDs, c.CategoryIDs),
		ShowFavoritesToggle: len(favIDs) > 0,
	}
}

// categoryOptions restricts the selector to categories present in the filtered
// list, keeping selected ones so they can be cleared.
func (s *Server) categoryOptions(present, selected []int64) []categoryOption {
	keep := make(map[int64]bool, len(present)+len(selected))
	for _, id := range present {
		keep[id] = false
	}
	for _, id := range selected {
		keep[id] = true
	}
	var opts []categoryOption
	for _, cat := range s.catalog.Categories() {
		sel, ok := keep[cat.ID]
		if !ok {
			continue
		}
		opts = append(opts, categoryOption{Category: cat, Selected: sel})
	}
	return opts
}

// --- Page Handlers ---

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	snap := s.catalog.Snapshot()
	data := map[string]interface{}{
		"Title":     s.opts.Title,
		"List":      s.list(r, sess),
		"Params":    r.URL.Query(),
		"PageSize":  s.opts.PageSize,
		"Player":    sess.player.Snapshot(),
		"UpdatedAt": snap.UpdatedAt,
		"LastError": snap.LastError,
	}
	s.render(w, "layout.html", data)
}

func (s *Server) handleFavoritesFeed(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.mu.Lock()
	sess.favorites.Reload()
	ids := sess.favorites.IDs()
	sess.mu.Unlock()

	var episodes []model.Episode
	for _, id := range ids {
		if ep, ok := s.catalog.Lookup(id); ok {
			episodes = append(episodes, ep)
		}
	}

	var buf bytes.Buffer
	err := podfeed.Write(&buf, podfeed.Meta{
		Title:        s.opts.Title + " favorites",
		Link:         s.opts.PublicURL,
		Description:  "Favorite episodes of " + s.opts.Title,
		MediaBaseURL: s.opts.MediaBaseURL,
	}, episodes)
	if err != nil {
		log.WithError(err).Error("favorites feed")
		http.Error(w, "Failed to export", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		log.WithError(err).Debug("write favorites feed")
	}
}

// --- API Handlers ---

func (s *Server) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.mu.Lock()
	l := s.list(r, sess)
	sess.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"episodes":    l.Rows,
		"categoryIds": l.CategoryIDs,
		"total":       l.Total,
		"limit":       l.Limit,
	})
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.favorites.Reload()
	writeJSON(w, http.StatusOK, map[string]interface{}{"ids": sess.favorites.IDs()})
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := s.episodeParam(w, r)
	if !ok {
		return
	}
	sess := sessionFrom(r)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	favorite := sess.favorites.Toggle(id)
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "favorite": favorite})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := s.episodeParam(w, r)
	if !ok {
		return
	}
	sess := sessionFrom(r)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	rec, found := sess.progress.Load(id)
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "found": found, "record": rec})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()

	n, err := s.catalog.Refresh(ctx, true)
	if err != nil {
		log.WithError(err).Warn("manual refresh failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "episodes": n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Snapshot()
	body := map[string]interface{}{
		"status":   "ok",
		"source":   snap.Source,
		"episodes": len(snap.Episodes),
	}
	if !snap.UpdatedAt.IsZero() {
		body["updatedAt"] = snap.UpdatedAt.Format(time.RFC3339)
	}
	if snap.LastError != nil {
		body["lastError"] = snap.LastError.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

// --- Player Handlers ---

type playerResponse struct {
	State    player.Snapshot `json:"state"`
	Commands []Command       `json:"commands"`
}

// playerAction decodes the optional JSON body into req, runs fn under the
// session lock and replies with the player state and pending commands.
func (s *Server) playerAction(req interface{}, fn func(sess *session) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if req != nil {
			if err := json.NewDecoder(r.Body).Decode(req); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid request")
				return
			}
		}
		sess := sessionFrom(r)
		sess.mu.Lock()
		defer sess.mu.Unlock()

		if fn != nil && !fn(sess) {
			writeError(w, http.StatusNotFound, "Unknown episode")
			return
		}
		writeJSON(w, http.StatusOK, playerResponse{
			State:    sess.player.Snapshot(),
			Commands: sess.media.drain(),
		})
	}
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	s.playerAction(nil, nil)(w, r)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EpisodeID int64 `json:"episodeId"`
	}
	s.playerAction(&req, func(sess *session) bool {
		ep, ok := s.catalog.Lookup(req.EpisodeID)
		if !ok {
			return false
		}
		sess.player.Select(ep)
		return true
	})(w, r)
}

func (s *Server) handleTogglePlay(w http.ResponseWriter, r *http.Request) {
	s.playerAction(nil, func(sess *session) bool {
		sess.player.TogglePlay()
		return true
	})(w, r)
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	s.playerAction(nil, func(sess *session) bool {
		sess.player.SeekForward()
		return true
	})(w, r)
}

func (s *Server) handleBackward(w http.ResponseWriter, r *http.Request) {
	s.playerAction(nil, func(sess *session) bool {
		sess.player.SeekBackward()
		return true
	})(w, r)
}

func (s *Server) handleScrub(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phase    string  `json:"phase"`
		Position float64 `json:"position"`
	}
	s.playerAction(&req, func(sess *session) bool {
		switch req.Phase {
		case "begin":
			sess.player.BeginScrub()
		case "end":
			sess.player.EndScrub(req.Position)
		default:
			sess.player.Scrub(req.Position)
		}
		return true
	})(w, r)
}

func (s *Server) handlePlayerProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayedSeconds float64 `json:"playedSeconds"`
		Duration      float64 `json:"duration"`
	}
	s.playerAction(&req, func(sess *session) bool {
		sess.player.Progress(req.PlayedSeconds, req.Duration)
		return true
	})(w, r)
}

func (s *Server) handleDuration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Duration float64 `json:"duration"`
	}
	s.playerAction(&req, func(sess *session) bool {
		sess.player.DurationChange(req.Duration)
		return true
	})(w, r)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume float64 `json:"volume"`
	}
	s.playerAction(&req, func(sess *session) bool {
		sess.player.SetVolume(req.Volume)
		return true
	})(w, r)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rate float64 `json:"rate"`
	}
	s.playerAction(&req, func(sess *session) bool {
		sess.player.SetRate(req.Rate)
		return true
	})(w, r)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	s.playerAction(nil, func(sess *session) bool {
		sess.player.Close()
		return true
	})(w, r)
}

// --- Helpers ---

func (s *Server) episodeParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "episodeID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid episode id")
		return 0, false
	}
	if _, ok := s.catalog.Lookup(id); !ok {
		writeError(w, http.StatusNotFound, "Unknown episode")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
