// Package outbox persists and delivers domain events to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Message is one row claimed from the outbox table.
type Message struct {
	EventID       int64
	TenantID      string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

// Dispatcher drains unpublished outbox rows and delivers them to Kafka with
// Confluent wire framing. Failed batches are parked in the DLQ and the rows
// marked published so a poison event cannot wedge the queue.
type Dispatcher struct {
	pool         *pgxpool.Pool
	producer     messageWriter
	registry     schemaRegistrar
	deadLetters  *DeadLetterWriter
	pollInterval time.Duration
	batchSize    int

	mu        sync.Mutex
	schemaIDs map[string]int

	done chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int) *Dispatcher {
	return &Dispatcher{
		pool:         pool,
		producer:     producer,
		registry:     registry,
		deadLetters:  NewDeadLetterWriter(pool),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		schemaIDs:    make(map[string]int),
		done:         make(chan struct{}),
	}
}

// Start runs the polling loop until the context is cancelled. Call it in a
// goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.done)
	}()

	for {
		if err := d.drainOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[outbox] dispatch error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until the polling loop has exited.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) drainOnce(ctx context.Context) error {
	start := time.Now()

	batch, err := d.claimBatch(ctx)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	if err := d.deliver(ctx, batch); err != nil {
		log.Printf("[outbox] delivery failed, parking batch: %v", err)
		failedCounter.Add(float64(len(batch)))
		if dlqErr := d.parkBatch(ctx, batch, err.Error()); dlqErr != nil {
			return dlqErr
		}
		return d.markPublished(ctx, batch)
	}

	deliveredCounter.Add(float64(len(batch)))
	return d.markPublished(ctx, batch)
}

// claimBatch selects unpublished rows oldest-first and stamps claimed_at.
// SKIP LOCKED lets multiple dispatcher replicas share the table.
func (d *Dispatcher) claimBatch(ctx context.Context) ([]Message, error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const query = `SELECT event_id, tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload
        FROM outbox
        WHERE published_at IS NULL
        ORDER BY event_id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, d.batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batch []Message
	var ids []int64
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.EventID, &msg.TenantID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Topic, &msg.SchemaSubject, &msg.PartitionKey, &msg.Payload); err != nil {
			return nil, err
		}
		batch = append(batch, msg)
		ids = append(ids, msg.EventID)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		tx.Rollback(ctx)
		return nil, nil
	}

	if _, err = tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}

	return batch, nil
}

func (d *Dispatcher) deliver(ctx context.Context, batch []Message) error {
	topics := make(map[string][]kafka.Message)

	for _, msg := range batch {
		record, err := d.encodeRecord(ctx, msg)
		if err != nil {
			return err
		}
		topics[msg.Topic] = append(topics[msg.Topic], record)
	}

	for topic, records := range topics {
		if err := d.producer.WriteMessages(ctx, topic, records...); err != nil {
			return err
		}
	}
	return nil
}

// encodeRecord frames the payload for Schema Registry aware consumers and
// carries routing metadata in headers so consumers can dispatch without
// unmarshalling first.
func (d *Dispatcher) encodeRecord(ctx context.Context, msg Message) (kafka.Message, error) {
	schema, ok := schemaCatalog[msg.EventType]
	if !ok {
		return kafka.Message{}, fmt.Errorf("no schema for event_type=%s", msg.EventType)
	}

	schemaID, err := d.schemaID(ctx, msg.SchemaSubject, schema)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(msg.PartitionKey),
		Value: encodeWireFormat(schemaID, []byte(msg.Payload)),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(msg.EventType)},
			{Key: "tenant_id", Value: []byte(msg.TenantID)},
			{Key: "schema_subject", Value: []byte(msg.SchemaSubject)},
		},
	}, nil
}

func (d *Dispatcher) schemaID(ctx context.Context, subject, schema string) (int, error) {
	d.mu.Lock()
	id, cached := d.schemaIDs[subject]
	d.mu.Unlock()
	if cached {
		return id, nil
	}

	id, err := d.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	d.schemaIDs[subject] = id
	d.mu.Unlock()
	return id, nil
}

func (d *Dispatcher) markPublished(ctx context.Context, batch []Message) error {
	byTenant := make(map[string][]int64)
	for _, msg := range batch {
		byTenant[msg.TenantID] = append(byTenant[msg.TenantID], msg.EventID)
	}

	for tenantID, ids := range byTenant {
		if err := d.markTenantPublished(ctx, tenantID, ids); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) markTenantPublished(ctx context.Context, tenantID string, ids []int64) error {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (d *Dispatcher) parkBatch(ctx context.Context, batch []Message, reason string) error {
	for _, msg := range batch {
		entryReason := fmt.Sprintf("%s (topic=%s)", reason, msg.Topic)
		if err := d.deadLetters.Record(ctx, msg, entryReason); err != nil {
			return err
		}
		dlqCounter.WithLabelValues(msg.Topic).Inc()
	}
	return nil
}

// encodeWireFormat applies Confluent framing: magic byte zero followed by the
// big-endian schema ID, then the payload.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}

var schemaCatalog = map[string]string{
	"rollup.completed": rollupCompletedSchema,
	"client.aged_out":  clientAgedOutSchema,
}
