package messaging

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"warehouse/protocol"
	"warehouse/store"
)

const (
	drainBatch = 50
	// MaxRetries after which a message is given up and marked sent.
	MaxRetries = 10
)

type LogFunc func(format string, args ...any)

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db       *store.DB
	pub      Publisher
	interval time.Duration
	logf     LogFunc
}

func NewOutboxDrainer(db *store.DB, pub Publisher, interval time.Duration, logf LogFunc) *OutboxDrainer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logf == nil {
		logf = log.Printf
	}
	return &OutboxDrainer{db: db, pub: pub, interval: interval, logf: logf}
}

// Run drains on every tick until ctx is done, with a final drain on the way
// out so events from shutdown still leave.
func (d *OutboxDrainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flush, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			d.Drain(flush)
			cancel()
			return nil
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain sends one batch and returns how many messages were delivered.
func (d *OutboxDrainer) Drain(ctx context.Context) int {
	if !d.pub.IsConnected() {
		return 0
	}
	msgs, err := d.db.ListPendingOutbox(drainBatch)
	if err != nil {
		d.logf("outbox: list pending: %v", err)
		return 0
	}

	sent := 0
	for _, msg := range msgs {
		var hdr protocol.RawHeader
		if err := json.Unmarshal(msg.Payload, &hdr); err == nil && protocol.IsExpiredHeader(&hdr) {
			d.logf("outbox: dropping expired %s message %d", msg.MsgType, msg.ID)
			d.ack(msg.ID)
			continue
		}
		if msg.Retries >= MaxRetries {
			d.logf("outbox: giving up on message %d after %d retries", msg.ID, msg.Retries)
			d.ack(msg.ID)
			continue
		}
		if err := d.pub.Publish(ctx, msg.Topic, msg.Payload); err != nil {
			d.logf("outbox: publish msg %d to %s: %v", msg.ID, msg.Topic, err)
			if err := d.db.IncrementOutboxRetries(msg.ID); err != nil {
				d.logf("outbox: bump retries %d: %v", msg.ID, err)
			}
			continue
		}
		d.ack(msg.ID)
		sent++
	}
	return sent
}

func (d *OutboxDrainer) ack(id int64) {
	if err := d.db.AckOutbox(id); err != nil {
		d.logf("outbox: ack msg %d: %v", id, err)
	}
}
