package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document is the persisted form of a Record. The table name is chosen
// per collection at query time, so Document has no TableName method.
type Document struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Body      datatypes.JSON `gorm:"type:jsonb;not null" json:"body"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// BeforeCreate GORM hook
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// NewDocument encodes record as a document body
func NewDocument(record Record) (Document, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode record: %w", err)
	}
	return Document{ID: uuid.New(), Body: datatypes.JSON(body)}, nil
}

// Record decodes the document body. Numbers stay json.Number so that
// large integer ids survive the round trip.
func (d Document) Record() (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(d.Body))
	dec.UseNumber()

	var record Record
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}
	return record, nil
}
