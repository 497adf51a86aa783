package thumbnail

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/camhive/live-core/internal/core"
)

// Daemon consumes uploaded preview images off the queue, validates and
// decodes them and writes the result onto the presence record. Bad
// images are logged and dropped, they never poison the queue.
type Daemon struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	storage core.PresenceDBStorer

	errors chan error
	stop   chan struct{}
}

func New(natsAddr string, storage core.PresenceDBStorer) (*Daemon, error) {
	nc, err := nats.Connect(natsAddr, nats.NoEcho())
	if err != nil {
		return nil, err
	}

	daemon := &Daemon{
		nc:      nc,
		storage: storage,
		errors:  make(chan error),
		stop:    make(chan struct{}),
	}

	return daemon, nil
}

func (d *Daemon) Run() error {
	log.Info().Msg("start thumbnail daemon")

	var err error
	d.sub, err = d.nc.QueueSubscribe(SubscriptionSubject, SubscriptionQueue, func(msg *nats.Msg) {
		if err := d.ingest(msg); err != nil {
			d.errors <- err
		}
	})
	if err != nil {
		return err
	}

	for {
		select {
		case err := <-d.errors:
			log.Error().Err(err).Msg("")
		case <-d.stop:
			return d.Stop()
		}
	}
}

func (d *Daemon) Stop() error {
	log.Info().Msg("stop thumbnail daemon")

	if err := d.sub.Unsubscribe(); err != nil {
		log.Error().Err(err).Msg("unsubscribe")
	}

	return d.nc.Drain()
}

func (d *Daemon) ingest(msg *nats.Msg) error {
	payload := &Message{}

	r := bytes.NewReader(msg.Data)
	if err := json.NewDecoder(r).Decode(payload); err != nil {
		return fmt.Errorf("thumbnail ingest error: %v, payload: %s", err, string(msg.Data[:]))
	}

	image, err := core.DecodeThumbnail(payload.Data)
	if err != nil {
		// Drop, a retry would fail the same way.
		log.Error().Err(err).Str("broadcasterID", payload.BroadcasterID).Msg("reject thumbnail")
		return nil
	}

	if err := d.storage.SaveThumbnail(payload.BroadcasterID, image); err != nil {
		return fmt.Errorf("thumbnail save error: %v", err)
	}

	log.Debug().Str("broadcasterID", payload.BroadcasterID).Int("bytes", len(image)).Msg("thumbnail stored")

	return nil
}
