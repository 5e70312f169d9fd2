package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord stores the outcome of a start-registration request so a
// retried request with the same Idempotency-Key replays the original response
// instead of hitting the ledger again.
type IdempotencyRecord struct {
	Key          string    `json:"key"`
	UserID       uuid.UUID `json:"user_id"`
	RequestHash  string    `json:"request_hash"`
	ResponseBody string    `json:"response_body"`
	StatusCode   int       `json:"status_code"`
	ProcessedAt  time.Time `json:"processed_at"`
}
