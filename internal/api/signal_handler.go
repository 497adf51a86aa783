package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/gate"
	"github.com/camhive/live-core/internal/signal"
)

type SignalSendRequest struct {
	SessionID string          `json:"session_id"`
	TargetID  string          `json:"target_id"`
	Kind      core.SignalKind `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
}

type SignalSendResponse struct {
	MessageID string `json:"message_id"`
}

type SignalPullResponse struct {
	Messages []*core.SignalMessage `json:"messages"`
}

func SignalSendHandler(relay *signal.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := identityFromRequest(r)
		if err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't get identity from request context")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		req := &SignalSendRequest{}
		if err := json.NewDecoder(r.Body).Decode(req); err != nil || req.SessionID == "" || req.TargetID == "" {
			log.Error().Err(err).Str("service", "web").Msg("can't parse signal send")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		messageID, err := relay.Send(req.SessionID, identity.UserID, req.TargetID, req.Kind, req.Payload)
		if err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(&SignalSendResponse{MessageID: messageID}); err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't encode signal send response")
		}
	}
}

// SignalPullHandler checks the access gate before touching the mailbox:
// a gated viewer gets 403 "gated", an ended session 404 — distinguishable
// so the client can show "tip to continue" vs "stream ended".
func SignalPullHandler(relay *signal.Relay, accessGate *gate.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := identityFromRequest(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		sessionID := r.URL.Query().Get("session_id")
		participantID := r.URL.Query().Get("participant_id")
		if sessionID == "" || participantID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Ownership first: a stranger probing foreign ids must not learn
		// gated/ended state from the gate check.
		if err := relay.Authorize(sessionID, participantID, identity.UserID); err != nil {
			writeError(w, err)
			return
		}

		allowed, err := accessGate.MayView(sessionID, participantID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !allowed {
			writeError(w, core.ErrGated)
			return
		}

		messages, err := relay.Pull(sessionID, participantID, identity.UserID)
		if err != nil {
			writeError(w, err)
			return
		}

		if err := json.NewEncoder(w).Encode(&SignalPullResponse{Messages: messages}); err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't encode signal pull response")
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}
