// Package store persists simulation reports.
//
// Reports are stored as opaque JSON documents plus the metadata needed to
// list and expire them. Implementations exist for different backends:
//   - memory: in-process storage for tests and a single server instance
//   - file: one JSON file per report, for the CLI's --store flag
//   - mongo: MongoDB, for servers that share their reports
//
// # Usage
//
//	rec := store.NewRecord("tv-dual-video", scenarioHash, data, store.DefaultTTL)
//	if err := s.Save(ctx, rec); err != nil {
//	    return err
//	}
//	rec, err = s.Get(ctx, rec.ID)
//	if errors.Is(err, errors.ErrCodeReportNotFound) {
//	    // unknown or expired
//	}
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/hwcomposer/pkg/errors"
)

// DefaultTTL is how long a report is kept.
const DefaultTTL = 7 * 24 * time.Hour

// Record is one stored report.
type Record struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	ScenarioHash string    `json:"scenario_hash" bson:"scenario_hash"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt    time.Time `json:"expires_at" bson:"expires_at"`
	// Data is the JSON-encoded report. List leaves it empty.
	Data []byte `json:"data,omitempty" bson:"data,omitempty"`
}

// NewRecord builds a record with a fresh id.
func NewRecord(name, scenarioHash string, data []byte, ttl time.Duration) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:           uuid.NewString(),
		Name:         name,
		ScenarioHash: scenarioHash,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		Data:         data,
	}
}

// IsExpired reports whether the record outlived its TTL at time now.
func (r *Record) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Store is the interface for report storage backends.
type Store interface {
	// Save inserts or replaces a record.
	Save(ctx context.Context, rec *Record) error

	// Get returns the record with the given id. Unknown and expired
	// records yield an ErrCodeReportNotFound error.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns up to limit records without their data, newest first.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Delete removes a record. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired records.
	Cleanup(ctx context.Context) error

	Close() error
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeReportNotFound, "report %s not found", id)
}

// ValidateID rejects ids that could not have come from NewRecord.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid report id %q", id)
	}
	return nil
}
