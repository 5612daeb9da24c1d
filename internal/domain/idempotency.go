package domain

import "time"

// IdempotencyRecord caches the first committed response for a request key.
type IdempotencyRecord struct {
	ActorID        string    `json:"actor_id"`
	Endpoint       string    `json:"endpoint"`
	RequestID      string    `json:"request_id"`
	RequestHash    string    `json:"request_hash"`
	ResponseStatus int       `json:"response_status"`
	ResponseBody   []byte    `json:"response_body"`
	CreatedAt      time.Time `json:"created_at"`
}
