package eventbus

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/camhive/live-core/internal/eventbus/rpc"
)

type Channel string

const (
	// ClientMessages carries per-user nudges consumed by the ws daemon.
	ClientMessages Channel = "client_messages"
	// ServerMessages carries service events consumed by the router.
	ServerMessages Channel = "server_messages"
)

func (c Channel) buildChannel(userID string) string {
	if userID == "" {
		return string(c)
	}
	return string(c) + ":" + userID
}

type Publisher interface {
	PublishClient(userID string, rpc rpc.Rpc) error
	PublishServer(rpc rpc.Rpc) error
}

type Subscriber interface {
	SubscribeClient(userID string) (Bus, error)
	SubscribeServer() (Bus, error)
}

// Bus is one live subscription's message stream.
type Bus interface {
	Channel() <-chan *redis.Message
	Close() error
}

type Subscription struct {
	pubsub *redis.PubSub
}

func (s *Subscription) Channel() <-chan *redis.Message {
	return s.pubsub.Channel()
}

func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

type Eventbus struct {
	rdb *redis.Client
}

// RedisPubSub is factory for building Eventbus based on redis pubsub
func RedisPubSub(rdb *redis.Client) *Eventbus {
	return &Eventbus{rdb: rdb}
}

func (e *Eventbus) PublishClient(userID string, rpc rpc.Rpc) error {
	return e.publish(ClientMessages.buildChannel(userID), rpc)
}

func (e *Eventbus) PublishServer(rpc rpc.Rpc) error {
	return e.publish(ServerMessages.buildChannel(""), rpc)
}

func (e *Eventbus) SubscribeClient(userID string) (Bus, error) {
	return e.subscribe(ClientMessages.buildChannel(userID))
}

func (e *Eventbus) SubscribeServer() (Bus, error) {
	return e.subscribe(ServerMessages.buildChannel(""))
}

func (e *Eventbus) publish(channel string, rpc rpc.Rpc) error {
	msg, err := rpc.ToJSON()
	if err != nil {
		return err
	}
	return e.rdb.Publish(context.Background(), channel, msg).Err()
}

func (e *Eventbus) subscribe(channel string) (Bus, error) {
	ctx := context.Background()
	pubsub := e.rdb.Subscribe(ctx, channel)
	// Wait until subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, err
	}

	return &Subscription{pubsub: pubsub}, nil
}
