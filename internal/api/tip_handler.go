package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/camhive/live-core/internal/gate"
)

type TipRequest struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	Amount        int64  `json:"amount"`
}

type TipResponse struct {
	GateState string `json:"gate_state"`
}

// TipHandler debits the caller's own account; tipping on a participant
// record owned by someone else is forbidden.
func TipHandler(accessGate *gate.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := identityFromRequest(r)
		if err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't get identity from request context")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		req := &TipRequest{}
		if err := json.NewDecoder(r.Body).Decode(req); err != nil || req.SessionID == "" || req.ParticipantID == "" {
			log.Error().Err(err).Str("service", "web").Msg("can't parse tip request")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if err := accessGate.Tip(req.SessionID, req.ParticipantID, identity.UserID, req.Amount); err != nil {
			writeError(w, err)
			return
		}

		if err := json.NewEncoder(w).Encode(&TipResponse{GateState: string(gate.Unlocked)}); err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't encode tip response")
		}
	}
}
