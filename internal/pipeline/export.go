package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/rmarchant/polyscout/internal/domain"
)

// multipartThreshold is the payload size above which the exporter switches to
// a multipart upload.
const multipartThreshold = 8 * 1024 * 1024

// multipartPutter is the optional fast path for large payloads; the S3 writer
// implements it.
type multipartPutter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Exporter serializes each discovery cycle's catalog and uploads it to blob
// storage, keyed by cycle timestamp under a date-partitioned prefix.
type Exporter struct {
	writer domain.BlobWriter
	prefix string
}

// NewExporter creates an exporter writing under the given key prefix.
func NewExporter(writer domain.BlobWriter, prefix string) *Exporter {
	return &Exporter{writer: writer, prefix: prefix}
}

// exportedEvent is the JSON shape of one event in the snapshot.
type exportedEvent struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Slug   string   `json:"slug"`
	EndAt  string   `json:"end_at"`
	TagIDs []string `json:"tag_ids"`
}

// exportedSet is the JSON shape of one outcome set in the snapshot.
type exportedSet struct {
	ID       string           `json:"id"`
	EventID  string           `json:"event_id"`
	Label    string           `json:"label"`
	Outcomes []exportedLeg    `json:"outcomes"`
}

type exportedLeg struct {
	TokenID  string `json:"token_id"`
	Label    string `json:"label"`
	MarketID string `json:"market_id"`
}

// snapshot is the top-level export document.
type snapshot struct {
	GeneratedAt string          `json:"generated_at"`
	Events      []exportedEvent `json:"events"`
	Sets        []exportedSet   `json:"sets"`
}

// newSnapshot flattens one cycle's catalog into the export document shape.
func newSnapshot(at time.Time, events []domain.Event, sets []domain.OutcomeSet) snapshot {
	doc := snapshot{
		GeneratedAt: at.UTC().Format(time.RFC3339),
		Events:      make([]exportedEvent, 0, len(events)),
		Sets:        make([]exportedSet, 0, len(sets)),
	}

	for i := range events {
		ev := &events[i]
		doc.Events = append(doc.Events, exportedEvent{
			ID:     ev.ID,
			Title:  ev.Title,
			Slug:   ev.Slug,
			EndAt:  ev.EndAt.UTC().Format(time.RFC3339),
			TagIDs: ev.TagList(),
		})
	}
	for _, set := range sets {
		out := exportedSet{
			ID:      set.ID,
			EventID: set.EventID,
			Label:   set.Label,
		}
		for _, o := range set.Outcomes {
			out.Outcomes = append(out.Outcomes, exportedLeg{
				TokenID:  o.TokenID,
				Label:    o.Label,
				MarketID: o.MarketID,
			})
		}
		doc.Sets = append(doc.Sets, out)
	}
	return doc
}

// Export uploads one cycle's catalog as a JSON object. The key embeds the
// cycle time so consecutive cycles never overwrite each other.
func (e *Exporter) Export(ctx context.Context, at time.Time, events []domain.Event, sets []domain.OutcomeSet) error {
	payload, err := json.Marshal(newSnapshot(at, events, sets))
	if err != nil {
		return fmt.Errorf("pipeline: marshal catalog snapshot: %w", err)
	}

	key := e.key(at)
	if mp, ok := e.writer.(multipartPutter); ok && len(payload) >= multipartThreshold {
		if err := mp.PutMultipart(ctx, key, bytes.NewReader(payload), 0); err != nil {
			return fmt.Errorf("pipeline: export %s: %w", key, err)
		}
		return nil
	}
	if err := e.writer.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
		return fmt.Errorf("pipeline: export %s: %w", key, err)
	}
	return nil
}

// key builds a date-partitioned object key for the cycle timestamp.
func (e *Exporter) key(at time.Time) string {
	at = at.UTC()
	return path.Join(
		e.prefix,
		at.Format("2006/01/02"),
		fmt.Sprintf("catalog-%s.json", at.Format("150405")),
	)
}
