package thumbnail

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
)

const (
	SubscriptionSubject = "thumbnails"
	SubscriptionQueue   = "thumbnails.ingest"
)

// Message transfers a freshly uploaded preview image to the ingest
// workers. Data is the raw request body, decoding and validation happen
// on the worker side.
type Message struct {
	BroadcasterID string `json:"broadcaster_id"`
	Data          string `json:"data"`
}

// Queue is the publishing side of the ingest pipeline.
type Queue interface {
	Enqueue(msg *Message) error
}

type natsQueue struct {
	nc *nats.Conn
}

func NewQueue(natsAddr string) (Queue, error) {
	nc, err := nats.Connect(natsAddr, nats.NoEcho())
	if err != nil {
		return nil, err
	}

	return &natsQueue{nc: nc}, nil
}

func (q *natsQueue) Enqueue(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return q.nc.Publish(SubscriptionSubject, data)
}
