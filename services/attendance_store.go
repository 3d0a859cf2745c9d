package services

import (
	"errors"

	"kindernest_go/models"

	"gorm.io/gorm"
)

// gormAttendanceStore is the MySQL-backed AttendanceStore.
type gormAttendanceStore struct {
	db *gorm.DB
}

// NewAttendanceStore wraps a gorm handle in the store interface used by the
// attendance service.
func NewAttendanceStore(db *gorm.DB) AttendanceStore {
	return &gormAttendanceStore{db: db}
}

func (s *gormAttendanceStore) GetRecord(groupID uint, dateKey string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := s.db.
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("child_name ASC")
		}).
		Where("class_group_id = ? AND date_key = ?", groupID, dateKey).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *gormAttendanceStore) CreateRecord(record *models.AttendanceRecord) error {
	return s.db.Create(record).Error
}

func (s *gormAttendanceStore) Roster(groupID uint) ([]models.Child, error) {
	var children []models.Child
	err := s.db.
		Where("class_group_id = ? AND active = ?", groupID, true).
		Order("first_name ASC, last_name ASC").
		Find(&children).Error
	return children, err
}

// UpdateEntry bumps the record version conditionally, then writes the one
// entry. Losing the version race rolls the transaction back and reports
// ErrVersionConflict so the service can retry from a fresh read.
func (s *gormAttendanceStore) UpdateEntry(recordID uint, expectVersion uint, entry *models.AttendanceEntry) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.AttendanceRecord{}).
			Where("id = ? AND version = ?", recordID, expectVersion).
			Update("version", gorm.Expr("version + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		return tx.Model(&models.AttendanceEntry{}).
			Where("record_id = ? AND child_id = ?", recordID, entry.ChildID).
			Updates(map[string]interface{}{
				"status":       entry.Status,
				"check_in_at":  entry.CheckInAt,
				"check_out_at": entry.CheckOutAt,
				"remark":       entry.Remark,
			}).Error
	})
}

// ReplaceHistory swaps the finalized snapshot inside one transaction. The
// old rows are hard-deleted so the (group, date_key) unique index accepts
// the replacement.
func (s *gormAttendanceStore) ReplaceHistory(history *models.AttendanceHistory) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.AttendanceHistory
		err := tx.Where("class_group_id = ? AND date_key = ?", history.ClassGroupID, history.DateKey).
			First(&existing).Error
		if err == nil {
			if err := tx.Unscoped().Where("history_id = ?", existing.ID).
				Delete(&models.AttendanceHistoryEntry{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Delete(&existing).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return tx.Create(history).Error
	})
}

func (s *gormAttendanceStore) GetHistory(groupID uint, dateKey string) (*models.AttendanceHistory, error) {
	var history models.AttendanceHistory
	err := s.db.
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("child_name ASC")
		}).
		Where("class_group_id = ? AND date_key = ?", groupID, dateKey).
		First(&history).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &history, nil
}
