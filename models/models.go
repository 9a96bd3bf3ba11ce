package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// EventsPerTransaction is how many events one /dosomething call publishes.
	EventsPerTransaction = 5
	// NoiseSequenceID marks events produced by the noise maker.
	NoiseSequenceID = -1
)

type Metadata struct {
	TraceID string `json:"traceId"`
}

// Event is the record value written to the eventsource topic.
type Event struct {
	Metadata      Metadata  `json:"metadata"`
	TransactionID uuid.UUID `json:"transactionId"`
	SequenceID    int       `json:"sequenceId"`
	Padding       string    `json:"padding"`
}

// NewEvent builds an event whose padding is paddingBytes 'a' characters.
func NewEvent(traceID string, txID uuid.UUID, seq, paddingBytes int) Event {
	if paddingBytes < 0 {
		paddingBytes = 0
	}
	return Event{
		Metadata:      Metadata{TraceID: traceID},
		TransactionID: txID,
		SequenceID:    seq,
		Padding:       strings.Repeat("a", paddingBytes),
	}
}

// IsNoise reports whether the event came from the noise maker.
func (e Event) IsNoise() bool { return e.SequenceID == NoiseSequenceID }

// Transaction is the /dosomething response body.
type Transaction struct {
	TransactionID uuid.UUID `json:"transactionId"`
}

// TransactionRecord is the journal entry kept for each transaction.
type TransactionRecord struct {
	TransactionID string    `json:"transactionId" bson:"transaction_id"`
	TraceID       string    `json:"traceId" bson:"trace_id"`
	Events        int       `json:"events" bson:"events"`
	CreatedAt     time.Time `json:"createdAt" bson:"created_at"`
}
