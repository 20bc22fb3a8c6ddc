package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Record is embedded by authoring rows (assessments, questions, options,
// rules) and results. They are archived, never deleted, so there is no
// soft-delete column.
type Record struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stamp is what the database would do on insert; used by stores that do not
// go through gorm.
func (r *Record) Stamp(id uint, now time.Time) {
	if r.ID == 0 {
		r.ID = id
	}
	r.CreatedAt = now
	r.UpdatedAt = now
}

// SubmissionKey gives an attempt a string id that is known before the row is
// written, so the deadline scheduler and the grading queue can key on it.
type SubmissionKey struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (k *SubmissionKey) BeforeCreate(*gorm.DB) error {
	k.EnsureID()
	return nil
}

// EnsureID assigns a random id unless the caller already chose one.
func (k *SubmissionKey) EnsureID() string {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	return k.ID
}
