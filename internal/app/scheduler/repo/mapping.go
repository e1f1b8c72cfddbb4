package repo

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/spanner"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/domain"
	"github.com/light-bringer/scheduler-service/internal/models/m_event"
)

// domainToData converts an Event aggregate to its database representation.
func domainToData(e *domain.Event) *m_event.Data {
	data := &m_event.Data{
		EventID:      e.ID(),
		Kind:         e.Kind(),
		ScheduledAt:  e.ScheduledAt(),
		Status:       string(e.Status()),
		AttemptCount: e.AttemptCount(),
		CreatedAt:    e.CreatedAt(),
		UpdatedAt:    e.UpdatedAt(),
	}

	if payload := e.Payload(); len(payload) > 0 {
		data.Payload = spanner.NullJSON{Value: payload, Valid: true}
	}
	if metadata := e.Metadata(); len(metadata) > 0 {
		data.Metadata = spanner.NullJSON{Value: metadata, Valid: true}
	}
	if owner := e.LeaseOwner(); owner != nil {
		data.LeaseOwner = spanner.NullString{StringVal: *owner, Valid: true}
	}
	if expires := e.LeaseExpiresAt(); expires != nil {
		data.LeaseExpiresAt = spanner.NullTime{Time: *expires, Valid: true}
	}
	if lastErr := e.LastError(); lastErr != nil {
		data.LastError = spanner.NullString{StringVal: *lastErr, Valid: true}
	}
	if processed := e.ProcessedAt(); processed != nil {
		data.ProcessedAt = spanner.NullTime{Time: *processed, Valid: true}
	}

	return data
}

// dataToDomain reconstructs an Event aggregate from a database row.
func dataToDomain(data *m_event.Data) (*domain.Event, error) {
	status, err := domain.ParseStatus(data.Status)
	if err != nil {
		return nil, fmt.Errorf("event %s has invalid status %q: %w", data.EventID, data.Status, err)
	}

	payload, err := payloadFromJSON(data.Payload)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", data.EventID, err)
	}

	metadata, err := metadataFromJSON(data.Metadata)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", data.EventID, err)
	}

	var leaseOwner *string
	if data.LeaseOwner.Valid {
		owner := data.LeaseOwner.StringVal
		leaseOwner = &owner
	}
	var leaseExpiresAt *time.Time
	if data.LeaseExpiresAt.Valid {
		expires := data.LeaseExpiresAt.Time
		leaseExpiresAt = &expires
	}
	var lastError *string
	if data.LastError.Valid {
		lastErr := data.LastError.StringVal
		lastError = &lastErr
	}
	var processedAt *time.Time
	if data.ProcessedAt.Valid {
		processed := data.ProcessedAt.Time
		processedAt = &processed
	}

	return domain.ReconstructEvent(
		data.EventID,
		data.Kind,
		payload,
		metadata,
		data.ScheduledAt,
		status,
		data.AttemptCount,
		leaseOwner,
		leaseExpiresAt,
		lastError,
		processedAt,
		data.CreatedAt,
		data.UpdatedAt,
	), nil
}

// payloadFromJSON re-serializes a JSON column value into the raw bytes the
// publisher forwards verbatim.
func payloadFromJSON(nj spanner.NullJSON) (json.RawMessage, error) {
	if !nj.Valid || nj.Value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(nj.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}
	return raw, nil
}

// metadataFromJSON converts a JSON column value back into string annotations.
func metadataFromJSON(nj spanner.NullJSON) (map[string]string, error) {
	if !nj.Valid || nj.Value == nil {
		return nil, nil
	}

	obj, ok := nj.Value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("metadata column is not a JSON object")
	}

	metadata := make(map[string]string, len(obj))
	for k, v := range obj {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("metadata value for key %q is not a string", k)
		}
		metadata[k] = s
	}
	return metadata, nil
}
