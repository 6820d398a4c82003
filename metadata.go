package pipelinekit

import (
	"time"

	"github.com/google/uuid"
)

// Metadata is the execution identity record created once at dispatch time
// and never mutated afterward. It travels with the Context for the lifetime
// of a single execution.
type Metadata struct {
	ID            string
	CorrelationID string
	UserID        string
	Timestamp     time.Time
	Tags          map[string]string
}

// NewMetadata creates a Metadata record with a fresh ID and the current time.
// CorrelationID defaults to the ID itself when not supplied via With* options.
func NewMetadata(opts ...MetadataOption) Metadata {
	m := Metadata{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Tags:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.CorrelationID == "" {
		m.CorrelationID = m.ID
	}
	return m
}

// MetadataOption configures a Metadata record at construction time.
type MetadataOption func(*Metadata)

// WithCorrelationID sets an explicit correlation id, overriding the default
// of reusing the execution id.
func WithCorrelationID(id string) MetadataOption {
	return func(m *Metadata) { m.CorrelationID = id }
}

// WithUserID attaches the identity of the caller on whose behalf the command
// is being dispatched.
func WithUserID(id string) MetadataOption {
	return func(m *Metadata) { m.UserID = id }
}

// WithTag records a free-form name/tag pair on the metadata.
func WithTag(name, value string) MetadataOption {
	return func(m *Metadata) {
		if m.Tags == nil {
			m.Tags = make(map[string]string)
		}
		m.Tags[name] = value
	}
}
