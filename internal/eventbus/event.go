package eventbus

import (
	"time"

	"github.com/grachmannico95/bank-ledger/internal/domain"
)

type EventType string

const (
	EventTypeImportFinished EventType = "import.finished"
)

type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
	Retries   int         `json:"retries"`
}

// ImportFinishedEvent carries the audit record of a committed or rolled
// back import.
type ImportFinishedEvent struct {
	Run domain.ImportRun `json:"run"`
}

func NewImportFinishedEvent(run domain.ImportRun) Event {
	return Event{
		ID:        "import-" + run.ID,
		Type:      EventTypeImportFinished,
		Payload:   ImportFinishedEvent{Run: run},
		Timestamp: time.Now(),
	}
}
