package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/expat-assistant/internal/transcript"
	"github.com/capitalize-ai/expat-assistant/pkg/metrics"
)

const (
	// StreamName is the name of the transcripts stream.
	StreamName = "TRANSCRIPTS"

	// SubjectPrefix is the prefix for all transcript subjects.
	SubjectPrefix = "transcript"

	maxFetch = 100
)

// Record is one journaled transcript entry.
type Record struct {
	Sequence  uint64           `json:"sequence"`
	SessionID string           `json:"session_id"`
	Entry     transcript.Entry `json:"entry"`
}

// Journal publishes transcript entries to JetStream and replays them.
type Journal struct {
	client *Client
}

// NewJournal creates a journal on top of a connected client.
func NewJournal(client *Client) *Journal {
	return &Journal{client: client}
}

// EnsureStream creates the transcripts stream if it does not exist yet.
func (j *Journal) EnsureStream(ctx context.Context) error {
	js := j.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Resolved chat widget transcript entries",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// EntrySubject returns the subject an entry is published on.
func EntrySubject(sessionID string, role transcript.Role) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, sessionID, role)
}

// SessionFilter matches every entry of one session.
func SessionFilter(sessionID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, sessionID)
}

// Publish journals a resolved entry and returns its stream sequence.
func (j *Journal) Publish(ctx context.Context, sessionID string, e transcript.Entry) (uint64, error) {
	data, err := json.Marshal(Record{SessionID: sessionID, Entry: e})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal entry: %w", err)
	}

	ack, err := j.client.JetStream().Publish(ctx, EntrySubject(sessionID, e.Role), data)
	if err != nil {
		metrics.JournalPublishTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("failed to publish entry: %w", err)
	}
	metrics.JournalPublishTotal.WithLabelValues("success").Inc()
	return ack.Sequence, nil
}

// Entries replays journaled entries of a session after a stream sequence.
// The same entry ID may appear several times when it was patched; the last
// record wins.
func (j *Journal) Entries(ctx context.Context, sessionID string, afterSequence uint64, limit int) ([]Record, uint64, bool, error) {
	if limit <= 0 || limit > maxFetch {
		limit = maxFetch
	}

	cfg := jetstream.ConsumerConfig{
		FilterSubject:     SessionFilter(sessionID),
		AckPolicy:         jetstream.AckNonePolicy,
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		InactiveThreshold: time.Minute,
	}
	if afterSequence > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = afterSequence + 1
	}

	consumer, err := j.client.JetStream().CreateConsumer(ctx, StreamName, cfg)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch entries: %w", err)
	}

	var (
		records []Record
		lastSeq uint64
	)
	for msg := range batch.Messages() {
		var rec Record
		if err := json.Unmarshal(msg.Data(), &rec); err != nil {
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			rec.Sequence = meta.Sequence.Stream
			lastSeq = meta.Sequence.Stream
		}
		records = append(records, rec)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, 0, false, fmt.Errorf("batch error: %w", err)
	}

	return records, lastSeq, len(records) == limit, nil
}
