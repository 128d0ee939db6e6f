package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// SyncMessage tells the worker that a sync queue item is ready. It carries only
// the queue id, the worker reads the rest from the database.
type SyncMessage struct {
	QueueID   int64     `json:"queue_id"`
	OwnerID   string    `json:"owner_id"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSyncMessage(queueID int64, ownerID, operation string) *SyncMessage {
	return &SyncMessage{
		QueueID:   queueID,
		OwnerID:   ownerID,
		Operation: operation,
		Timestamp: time.Now(),
	}
}

func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncMessageFromJSON decodes a message and rejects ones without a queue id.
func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.QueueID <= 0 {
		return nil, fmt.Errorf("sync message without queue id")
	}
	return &msg, nil
}
