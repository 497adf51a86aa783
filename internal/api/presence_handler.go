package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/presence"
)

type PresenceUpdateRequest struct {
	IsLive      bool `json:"is_live"`
	IsAvailable bool `json:"is_available"`
	ShowRate    int  `json:"show_rate,omitempty"`
}

// PresenceUpdateHandler is the broadcaster's own status mutation.
func PresenceUpdateHandler(store *presence.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := identityFromRequest(r)
		if err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't get identity from request context")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		req := &PresenceUpdateRequest{}
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't parse presence update")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if req.ShowRate > 0 {
			if err := store.SetShowRate(identity.UserID, req.ShowRate); err != nil {
				writeError(w, err)
				return
			}
		}

		record, err := store.SetStatus(identity.UserID, req.IsLive, req.IsAvailable)
		if err != nil {
			writeError(w, err)
			return
		}

		if err := json.NewEncoder(w).Encode(record); err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't encode presence record")
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func HeartbeatHandler(store *presence.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := identityFromRequest(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if err := store.Heartbeat(identity.UserID); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// PresenceLiveHandler is public read data: no authentication required.
func PresenceLiveHandler(store *presence.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := core.PresenceFilter{
			AvailableOnly: r.URL.Query().Get("available") == "true",
		}
		if pageParam := r.URL.Query().Get("p"); pageParam != "" {
			filter.Page, _ = strconv.Atoi(pageParam)
		}
		if perPageParam := r.URL.Query().Get("limit"); perPageParam != "" {
			filter.PerPage, _ = strconv.Atoi(perPageParam)
		}

		records, err := store.ListLive(filter)
		if err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't list live broadcasters")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if err := json.NewEncoder(w).Encode(records); err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't encode live list")
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func PresenceCountsHandler(store *presence.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := store.Counts()
		if err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't get presence counts")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if err := json.NewEncoder(w).Encode(counts); err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't encode presence counts")
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}
