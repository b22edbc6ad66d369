// model.go defines the data model for the breedscan service
package datastore

import "time"

// AnimalRecord is the durable per-(animal, user) classification record.
// It is created on first classification of a pair and overwritten on
// subsequent classifications; it is never deleted by this service.
type AnimalRecord struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	AnimalID           string    `gorm:"uniqueIndex:idx_animal_user;not null" json:"animal_id"`
	UserID             string    `gorm:"uniqueIndex:idx_animal_user;not null" json:"user_id"`
	AnimalType         string    `json:"animal_type"`
	PredictedBreed     string    `json:"predicted_breed"`
	ConfidenceScore    float64   `json:"confidence_score"`
	ImageURL           string    `json:"image_url"`
	VerificationStatus string    `gorm:"type:varchar(20)" json:"verification_status"` // reset to "pending" on every write
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// BreedPrediction is an append-only log entry recording the full ranked
// prediction list for one classification of an AnimalRecord. It is
// diagnostic, not authoritative; a crash between the record upsert and
// this insert is tolerated.
type BreedPrediction struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	AnimalRecordID   uint      `gorm:"index;not null" json:"animal_record_id"`
	ImageURL         string    `json:"image_url"`
	PredictedBreeds  string    `gorm:"type:text" json:"predicted_breeds"` // JSON-serialized ranked list
	ModelVersion     string    `json:"model_version"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

// VerificationPending is the status every write resets a record to.
const VerificationPending = "pending"
