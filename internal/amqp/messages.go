package amqp

import (
	"encoding/json"
	"time"
)

// TxSyncMessage asks the export mirror worker to pick up one ledger
// transaction. It carries only the row ID; the worker reads the full row
// from the database so the queue never holds stale amounts.
type TxSyncMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTxSyncMessage(id int64) *TxSyncMessage {
	return &TxSyncMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *TxSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TxSyncMessageFromJSON(data []byte) (*TxSyncMessage, error) {
	var msg TxSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
