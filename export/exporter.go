package export

import (
	"context"
	"log/slog"
	"path"
	"time"
)

// Source produces snapshots. *greenscore.Ledger implements it.
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Sink stores an encoded snapshot under key.
type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Exporter takes snapshots from a Source and writes them to a Sink.
type Exporter struct {
	source Source
	sink   Sink
	prefix string
	logger *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithPrefix places every snapshot under prefix (e.g. "greenscore/prod").
func WithPrefix(prefix string) Option {
	return func(e *Exporter) { e.prefix = prefix }
}

// WithLogger sets the logger for the exporter.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

// NewExporter creates an Exporter.
func NewExporter(src Source, sink Sink, opts ...Option) *Exporter {
	e := &Exporter{
		source: src,
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export takes one snapshot and writes it, returning the key used.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	snap, err := e.source.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	data, err := Encode(snap)
	if err != nil {
		return "", err
	}

	key := snap.Key()
	if e.prefix != "" {
		key = path.Join(e.prefix, key)
	}
	if err := e.sink.Put(ctx, key, data); err != nil {
		return "", err
	}

	e.logger.Info("snapshot exported",
		"snapshot_id", snap.ID.String(),
		"key", key,
		"records", len(snap.Records),
		"bytes", len(data),
	)
	return key, nil
}

// Run exports a snapshot every interval until ctx is done. Failures are
// logged and the loop continues.
func (e *Exporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Export(ctx); err != nil {
				e.logger.Warn("snapshot export failed", "error", err)
			}
		}
	}
}
