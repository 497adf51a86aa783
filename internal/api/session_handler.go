package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pion/webrtc/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/camhive/live-core/internal/config"
	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/gate"
	"github.com/camhive/live-core/internal/session"
)

type SessionStartRequest struct {
	Mode                core.SessionMode `json:"mode,omitempty"`
	RateTokensPerMinute int              `json:"rate_tokens_per_minute,omitempty"`
}

type SessionJoinRequest struct {
	BroadcasterID string `json:"broadcaster_id"`
}

// SessionResponse is what both start and join return: the one canonical
// session id, plus everything the client needs to reach the media relay.
type SessionResponse struct {
	Session       *core.Session      `json:"session"`
	ParticipantID string             `json:"participant_id,omitempty"`
	GateState     gate.State         `json:"gate_state,omitempty"`
	FreeWindowEnd *time.Time         `json:"free_window_end,omitempty"`
	ICEServers    []webrtc.ICEServer `json:"ice_servers"`
	PlaybackToken string             `json:"playback_token"`
}

// SessionStartHandler is idempotent get-or-create: a broadcaster hitting
// it twice gets the same session back.
func SessionStartHandler(registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := identityFromRequest(r)
		if err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't get identity from request context")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		req := &SessionStartRequest{}
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't parse session start")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		sess, err := registry.Start(identity.UserID, req.Mode, req.RateTokensPerMinute)
		if err != nil {
			writeError(w, err)
			return
		}

		respondSession(w, sess, nil, "")
	}
}

// SessionJoinHandler resolves the broadcaster's active session for a
// viewer. Anonymous viewers join on a guest identity; private sessions
// start the per-minute meter instead of a preview window.
func SessionJoinHandler(registry *session.Registry, accessGate *gate.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := identityFromRequest(r)
		if err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't get identity from request context")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		req := &SessionJoinRequest{}
		if err := json.NewDecoder(r.Body).Decode(req); err != nil || req.BroadcasterID == "" {
			log.Error().Err(err).Str("service", "web").Msg("can't parse session join")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Private shows refuse a viewer who can't cover the first minute
		// before any participant record exists.
		active, err := registry.GetActive(req.BroadcasterID)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := accessGate.AdmitPrivate(active, identity.UserID); err != nil {
			writeError(w, err)
			return
		}

		sess, participant, err := registry.Join(req.BroadcasterID, identity.UserID, identity.Authenticated)
		if err != nil {
			writeError(w, err)
			return
		}

		if sess.Mode == core.PrivateSession {
			endSession := func(sessionID string) error {
				return registry.End(sessionID, sess.BroadcasterID)
			}
			if err := accessGate.StartMeter(sess, participant, time.Minute, endSession); err != nil {
				writeError(w, err)
				return
			}
		}

		respondSession(w, sess, participant, string(accessGate.StateOf(sess, participant)))
	}
}

func SessionEndHandler(registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := identityFromRequest(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		sessionID := chi.URLParam(r, "id")
		if err := registry.End(sessionID, identity.UserID); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// SessionLeaveHandler closes the caller's own participant record and
// stops their private-show meter if one runs.
func SessionLeaveHandler(registry *session.Registry, accessGate *gate.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := identityFromRequest(r); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		sessionID := chi.URLParam(r, "id")
		participantID := chi.URLParam(r, "participantID")

		accessGate.StopMeter(sessionID, participantID)
		if err := registry.Leave(sessionID, participantID); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// SessionActiveHandler is the discovery/reconnect read: which session is
// this broadcaster's broadcast right now.
func SessionActiveHandler(registry *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		broadcasterID := r.URL.Query().Get("broadcaster_id")
		if broadcasterID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		sess, err := registry.GetActive(broadcasterID)
		if err != nil {
			writeError(w, err)
			return
		}

		if err := json.NewEncoder(w).Encode(sess); err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't encode session")
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func respondSession(w http.ResponseWriter, sess *core.Session, participant *core.Participant, gateState string) {
	userID := sess.BroadcasterID
	resp := &SessionResponse{
		Session:    sess,
		ICEServers: config.ICEServers(),
	}
	if participant != nil {
		userID = participant.ViewerID
		resp.ParticipantID = participant.ID
		resp.GateState = gate.State(gateState)
		resp.FreeWindowEnd = participant.FreeWindowDeadline
	}

	token, err := newPlaybackToken(
		sess.StreamKey,
		sess.ID,
		userID,
		viper.GetString("playback.token_secret"),
		config.PlaybackTokenTTL(),
	)
	if err != nil {
		log.Error().Err(err).Str("service", "web").Msg("can't sign playback token")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	resp.PlaybackToken = token

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Str("service", "web").Msg("can't encode session response")
		w.WriteHeader(http.StatusInternalServerError)
	}
}
