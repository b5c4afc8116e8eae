// Package kafka publishes fetch-audit records. Every successful upstream
// fetch emits one record describing what was fetched and how much data came
// back, for downstream usage accounting. Publishing is optional and never
// blocks the serving path on broker trouble.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/saltline/oceangrid/internal/domain"
	"github.com/saltline/oceangrid/internal/observability"
)

// AuditRecord describes one completed upstream grid fetch.
type AuditRecord struct {
	CacheKey   string    `json:"cache_key"`
	Source     string    `json:"source"`
	CenterLat  float64   `json:"center_lat"`
	CenterLon  float64   `json:"center_lon"`
	RegionSize float64   `json:"region_size"`
	Resolution int       `json:"resolution"`
	Date       string    `json:"date,omitempty"`
	DataPoints int       `json:"data_points"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Publisher produces audit records to a Kafka topic.
type Publisher struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a producer for the audit topic.
func NewPublisher(brokers []string, topic string, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}
	return &Publisher{writer: w, metrics: metrics, logger: logger}
}

// PublishFetch builds and publishes the audit record for one completed
// upstream fetch. It satisfies service.Auditor.
func (p *Publisher) PublishFetch(ctx context.Context, req domain.GridRequest, grid domain.Grid, dataPoints int) error {
	return p.Publish(ctx, AuditRecord{
		CacheKey:   req.CacheKey(),
		Source:     grid.Source,
		CenterLat:  req.CenterLat,
		CenterLon:  req.CenterLon,
		RegionSize: req.RegionSize,
		Resolution: req.Resolution,
		Date:       req.Date,
		DataPoints: dataPoints,
		FetchedAt:  grid.FetchedAt,
	})
}

// Publish serializes and writes one audit record.
func (p *Publisher) Publish(ctx context.Context, rec AuditRecord) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		p.metrics.AuditErrors.Inc()
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.AuditErrors.Inc()
		return fmt.Errorf("publish audit record: %w", err)
	}
	p.metrics.AuditPublished.Inc()
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an AuditRecord into a Kafka message keyed by
// cache key, so records for the same region land on the same partition.
func serializeToMessage(rec AuditRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize audit record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.CacheKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(rec.Source)},
			{Key: "fetched_at", Value: []byte(rec.FetchedAt.Format(time.RFC3339))},
		},
	}, nil
}
