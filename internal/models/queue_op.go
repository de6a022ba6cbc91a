package models

import "encoding/json"

// Queue operation kinds.
const (
	OpCreate = "create"
	OpDelete = "delete"
)

// QueueOp is one pending remote write, persisted in the local queue
// table. Seq is the FIFO position; it is assigned by the store and never
// reused. EventTimestamp is the natural handle linking creates and
// deletes for the same event.
type QueueOp struct {
	Seq            int64           `db:"seq" json:"seq"`
	ID             string          `db:"id" json:"id"`
	Kind           string          `db:"kind" json:"kind"`
	EventTimestamp string          `db:"event_timestamp" json:"eventTimestamp"`
	Payload        json.RawMessage `db:"payload" json:"payload"`
	CreatedAt      int64           `db:"created_at" json:"createdAt"`
}

// Event decodes the payload carried by a create operation.
func (op *QueueOp) Event() (*Event, error) {
	var e Event
	if err := json.Unmarshal(op.Payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
