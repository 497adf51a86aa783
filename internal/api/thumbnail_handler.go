package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/thumbnail"
)

type ThumbnailUpdateRequest struct {
	Data string `json:"data"`
}

// ThumbnailUpdateHandler validates the upload synchronously so the
// broadcaster gets an immediate 422 on a bad image, then hands the raw
// payload to the ingest queue. Decoding and storage happen off the
// request path.
func ThumbnailUpdateHandler(queue thumbnail.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := identityFromRequest(r)
		if err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't get identity from request context")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		req := &ThumbnailUpdateRequest{}
		if err := json.NewDecoder(r.Body).Decode(req); err != nil || req.Data == "" {
			log.Error().Err(err).Str("service", "web").Msg("can't parse thumbnail request")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if _, err := core.DecodeThumbnail(req.Data); err != nil {
			writeError(w, err)
			return
		}

		msg := &thumbnail.Message{
			BroadcasterID: identity.UserID,
			Data:          req.Data,
		}
		if err := queue.Enqueue(msg); err != nil {
			log.Error().Err(err).Str("service", "web").Msg("can't enqueue thumbnail")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}
