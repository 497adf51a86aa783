package ws

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/isqad/melody"

	"github.com/camhive/live-core/internal/api"
	"github.com/camhive/live-core/internal/eventbus"
)

const (
	wsIdentitySessionKey     = "identity"
	wsSubscriptionSessionKey = "subscription"
)

func WsHandler(eventsSubscriber eventbus.Subscriber, websocket *melody.Melody) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := r.Context().Value(api.IdentityContextKey).(*api.Identity)
		if !ok {
			log.Error().Str("service", "ws").Msg("can't get the identity from request context")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		subscription, err := eventsSubscriber.SubscribeClient(identity.UserID)
		if err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("can't subscribe the user to signaling channel")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		sessionKeys := make(map[string]interface{})
		sessionKeys[wsIdentitySessionKey] = identity
		sessionKeys[wsSubscriptionSessionKey] = subscription

		if err := websocket.HandleRequestWithKeys(w, r, sessionKeys); err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("can't handle request")
		}
	}
}

// ConnectHandler pumps the user's eventbus channel into the socket. The
// frames are nudges only: signal_pending, gate_changed, session_closed.
func ConnectHandler() func(session *melody.Session) {
	return func(session *melody.Session) {
		subscription, err := getSubscription(session)
		if err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("extract subscription")
			closeWsSession(session)
			return
		}

		identity, err := getIdentity(session)
		if err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("extract identity")
			subscription.Close()
			closeWsSession(session)
			return
		}

		go func() {
			for msg := range subscription.Channel() {
				if err := session.Write([]byte(msg.Payload)); err != nil {
					// there's only session closed error can be
					log.Error().Err(err).Str("service", "ws").Str("userID", identity.UserID).Msg("")
					return
				}
			}
		}()
	}
}

func DisconnectHandler() func(session *melody.Session) {
	return func(session *melody.Session) {
		subscription, err := getSubscription(session)
		if err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("extract subscription")
			return
		}
		if err := subscription.Close(); err != nil {
			log.Error().Err(err).Str("service", "ws").Msg("close subscription")
		}
	}
}

func getIdentity(session *melody.Session) (*api.Identity, error) {
	value, ok := session.Get(wsIdentitySessionKey)
	if !ok {
		return nil, errors.New("no identity in ws session")
	}

	identity, ok := value.(*api.Identity)
	if !ok {
		return nil, errors.New("unexpected identity type in ws session")
	}

	return identity, nil
}

func getSubscription(session *melody.Session) (eventbus.Bus, error) {
	value, ok := session.Get(wsSubscriptionSessionKey)
	if !ok {
		return nil, errors.New("no subscription in ws session")
	}

	subscription, ok := value.(eventbus.Bus)
	if !ok {
		return nil, errors.New("unexpected subscription type in ws session")
	}

	return subscription, nil
}

func closeWsSession(session *melody.Session) {
	if err := session.Close(); err != nil {
		log.Error().Err(err).Str("service", "ws").Msg("close ws session")
	}
}
