// interfaces.go defines the interface for database operations
package datastore

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/innovyom/breedscan-go/internal/conf"
	"github.com/innovyom/breedscan-go/internal/errors"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error
	Ping() error
	// UpsertAnimalRecord inserts or overwrites the record keyed by
	// (animal_id, user_id) and reloads it, so the caller sees the
	// generated identifier.
	UpsertAnimalRecord(record *AnimalRecord) error
	// InsertBreedPrediction appends a prediction log entry.
	InsertBreedPrediction(prediction *BreedPrediction) error
	GetAnimalRecord(animalID, userID string) (AnimalRecord, error)
	GetBreedPredictions(animalRecordID uint) ([]BreedPrediction, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a DataStore instance based on the configured driver.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Datastore.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Datastore.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// upsertConflictColumns is the natural composite key for animal records.
var upsertConflictColumns = []clause.Column{{Name: "animal_id"}, {Name: "user_id"}}

// UpsertAnimalRecord writes the record, overwriting any existing row for
// the same (animal_id, user_id). The verification status is always reset
// to pending; a previously verified record goes back into review after a
// new classification.
func (ds *DataStore) UpsertAnimalRecord(record *AnimalRecord) error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	record.VerificationStatus = VerificationPending

	err := ds.DB.Clauses(clause.OnConflict{
		Columns: upsertConflictColumns,
		DoUpdates: clause.AssignmentColumns([]string{
			"animal_type",
			"predicted_breed",
			"confidence_score",
			"image_url",
			"verification_status",
			"updated_at",
		}),
	}).Create(record).Error
	if err != nil {
		return errors.New(fmt.Errorf("upserting animal record: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("animal_id", record.AnimalID).
			Context("user_id", record.UserID).
			Build()
	}

	// Reload so the caller gets the row identifier after a conflict
	// update, where Create does not populate the existing primary key
	// on every dialect.
	if err := ds.DB.Where("animal_id = ? AND user_id = ?", record.AnimalID, record.UserID).
		First(record).Error; err != nil {
		return errors.New(fmt.Errorf("reloading animal record: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("animal_id", record.AnimalID).
			Context("user_id", record.UserID).
			Build()
	}

	return nil
}

// InsertBreedPrediction appends one immutable prediction log entry.
func (ds *DataStore) InsertBreedPrediction(prediction *BreedPrediction) error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	if err := ds.DB.Create(prediction).Error; err != nil {
		return errors.New(fmt.Errorf("inserting breed prediction: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("animal_record_id", prediction.AnimalRecordID).
			Build()
	}
	return nil
}

// GetAnimalRecord retrieves the record for an (animal_id, user_id) pair.
func (ds *DataStore) GetAnimalRecord(animalID, userID string) (AnimalRecord, error) {
	var record AnimalRecord
	err := ds.DB.Where("animal_id = ? AND user_id = ?", animalID, userID).First(&record).Error
	if err != nil {
		category := errors.CategoryDatabase
		if errors.Is(err, gorm.ErrRecordNotFound) {
			category = errors.CategoryNotFound
		}
		return AnimalRecord{}, errors.New(fmt.Errorf("getting animal record: %w", err)).
			Component("datastore").
			Category(category).
			Context("animal_id", animalID).
			Context("user_id", userID).
			Build()
	}
	return record, nil
}

// GetBreedPredictions returns the prediction log for a record, most
// recent first.
func (ds *DataStore) GetBreedPredictions(animalRecordID uint) ([]BreedPrediction, error) {
	var predictions []BreedPrediction
	err := ds.DB.Where("animal_record_id = ?", animalRecordID).
		Order("created_at DESC, id DESC").
		Find(&predictions).Error
	if err != nil {
		return nil, errors.New(fmt.Errorf("getting breed predictions: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("animal_record_id", animalRecordID).
			Build()
	}
	return predictions, nil
}

// Ping verifies the underlying connection is alive.
func (ds *DataStore) Ping() error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
