package eventbus

import (
	"bytes"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/camhive/live-core/internal/eventbus/rpc"
)

var (
	errConvertPresence = errors.New("can't convert to presence_changed")
	errConvertSession  = errors.New("can't convert to session_closed")
	errUndefinedMethod = errors.New("undefined method")
	errMissingCallback = errors.New("no callback registered for method")
)

// Router subscribes to the server channel of the eventbus and dispatches
// service events to registered callbacks. It is the only consumer of
// presence transitions, so session teardown on a dropped broadcaster has a
// single owner.
type Router struct {
	EventsSubscriber Subscriber
	subscription     Bus

	onPresenceChanged func(rpc.PresenceParams) error
	onSessionClosed   func(sessionID string) error
}

func NewRouter(sub Subscriber) (*Router, error) {
	router := &Router{
		EventsSubscriber: sub,
	}
	subscription, err := router.EventsSubscriber.SubscribeServer()
	if err != nil {
		return nil, err
	}
	router.subscription = subscription

	return router, nil
}

func (router *Router) Start() {
	log.Debug().Str("service", "router").Msg("start")

	go func() {
		channel := router.subscription.Channel()

		for msg := range channel {
			r, err := rpc.RpcFromReader(bytes.NewReader([]byte(msg.Payload)))
			if err != nil {
				log.Error().Err(err).Str("service", "router").Msg("")
				continue
			}

			switch r.GetMethod() {
			case rpc.PresenceChangedMethod:
				msg, ok := r.(*rpc.PresenceChangedRpc)
				if !ok {
					log.Error().Err(errConvertPresence).Str("service", "router").Msg("")
					continue
				}
				if router.onPresenceChanged == nil {
					log.Error().Err(errMissingCallback).Str("service", "router").Msg("")
					continue
				}

				if err := router.onPresenceChanged(msg.Params); err != nil {
					log.Error().Err(err).Str("service", "router").Msg("error occured in onPresenceChanged")
				}
			case rpc.SessionClosedMethod:
				msg, ok := r.(*rpc.SessionClosedRpc)
				if !ok {
					log.Error().Err(errConvertSession).Str("service", "router").Msg("")
					continue
				}
				if router.onSessionClosed == nil {
					continue
				}

				if err := router.onSessionClosed(msg.Params.SessionID); err != nil {
					log.Error().Err(err).Str("service", "router").Msg("error occured in onSessionClosed")
				}
			default:
				log.Error().Err(errUndefinedMethod).Str("rpcMethod", string(r.GetMethod())).Str("service", "router").Msg("")
			}
		}
	}()
}

func (router *Router) Stop() error {
	return router.subscription.Close()
}

func (router *Router) OnPresenceChanged(callback func(rpc.PresenceParams) error) {
	router.onPresenceChanged = callback
}

func (router *Router) OnSessionClosed(callback func(sessionID string) error) {
	router.onSessionClosed = callback
}
