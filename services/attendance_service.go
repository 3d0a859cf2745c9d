package services

import (
	"errors"
	"fmt"
	"time"

	"kindernest_go/config"
	"kindernest_go/models"

	"github.com/sirupsen/logrus"
)

// Attendance flow errors surfaced to controllers.
var (
	// ErrRecordNotReady means no daily record exists yet for the group/day.
	// Mutations never synthesize a record; reconciliation is the single
	// place that creates one.
	ErrRecordNotReady = errors.New("attendance record not available yet")
	// ErrEntryNotFound means the child has no entry in the daily record.
	ErrEntryNotFound = errors.New("child has no entry in today's record")
	// ErrVersionConflict means a concurrent writer bumped the record version
	// between our read and write.
	ErrVersionConflict = errors.New("attendance record was modified concurrently")
)

// AttendanceStore is the persistence surface the attendance service needs.
type AttendanceStore interface {
	// GetRecord loads the record with entries for (group, dateKey), or
	// (nil, nil) when none exists.
	GetRecord(groupID uint, dateKey string) (*models.AttendanceRecord, error)
	// CreateRecord inserts a new record with its entries. When a concurrent
	// creator already inserted one for the same (group, dateKey), the unique
	// index rejects the insert and the caller re-reads.
	CreateRecord(record *models.AttendanceRecord) error
	// Roster returns the active children of a group ordered by name.
	Roster(groupID uint) ([]models.Child, error)
	// UpdateEntry persists one entry's fields and bumps the record version,
	// conditional on expectVersion. Returns ErrVersionConflict when the
	// condition fails.
	UpdateEntry(recordID uint, expectVersion uint, entry *models.AttendanceEntry) error
	// ReplaceHistory upserts the finalized snapshot for (group, dateKey) in
	// a single transaction so readers never observe a missing record.
	ReplaceHistory(history *models.AttendanceHistory) error
	// GetHistory loads the finalized snapshot, or (nil, nil) when absent.
	GetHistory(groupID uint, dateKey string) (*models.AttendanceHistory, error)
}

// AttendanceBroadcaster pushes fresh record snapshots to subscribed clients.
type AttendanceBroadcaster interface {
	BroadcastAttendance(groupID uint, record *models.AttendanceRecord)
}

// AttendanceService owns the daily-roster reconciliation flow: it guarantees
// one record per (group, day) and applies check-in/out/remark mutations with
// an optimistic version check instead of whole-list rewrites.
type AttendanceService struct {
	store AttendanceStore
	hub   AttendanceBroadcaster
	now   func() time.Time
}

func NewAttendanceService(store AttendanceStore) *AttendanceService {
	return &AttendanceService{
		store: store,
		now:   time.Now,
	}
}

// SetBroadcaster wires the WebSocket hub used for live record updates.
func (s *AttendanceService) SetBroadcaster(hub AttendanceBroadcaster) {
	s.hub = hub
}

// DateKeyIn formats the canonical calendar-day key for t in loc.
func DateKeyIn(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// TodayKey returns the date key for the current instant in the school
// timezone. Every caller derives "today" through here so the store key never
// depends on the caller's locale.
func TodayKey() string {
	return DateKeyIn(time.Now(), config.AppConfig.SchoolLocation())
}

// SynthesizeEntries builds fresh absent entries from a roster snapshot.
func SynthesizeEntries(roster []models.Child) []models.AttendanceEntry {
	entries := make([]models.AttendanceEntry, 0, len(roster))
	for _, child := range roster {
		entries = append(entries, models.AttendanceEntry{
			ChildID:   child.ID,
			ChildName: child.FullName(),
			PhotoURL:  child.PhotoURL,
			Status:    models.AttendanceAbsent,
			Remark:    "",
		})
	}
	return entries
}

// Reconcile returns the daily record for (group, dateKey), synthesizing it
// from the current roster when none exists. An empty roster still yields a
// record with no entries. Calling it twice returns the same entry set.
func (s *AttendanceService) Reconcile(groupID uint, dateKey string) (*models.AttendanceRecord, error) {
	record, err := s.store.GetRecord(groupID, dateKey)
	if err != nil {
		return nil, fmt.Errorf("load attendance record: %w", err)
	}
	if record != nil {
		return record, nil
	}

	roster, err := s.store.Roster(groupID)
	if err != nil {
		return nil, fmt.Errorf("load roster for group %d: %w", groupID, err)
	}

	record = &models.AttendanceRecord{
		ClassGroupID: groupID,
		DateKey:      dateKey,
		Entries:      SynthesizeEntries(roster),
	}
	if err := s.store.CreateRecord(record); err != nil {
		// A concurrent first-access may have won the insert; the unique
		// (group, date_key) index collapses the race to one row.
		existing, readErr := s.store.GetRecord(groupID, dateKey)
		if readErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create attendance record: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"group_id": groupID,
		"date_key": dateKey,
		"entries":  len(record.Entries),
	}).Info("Synthesized daily attendance record")

	return record, nil
}

// CheckIn marks the child present and stamps the check-in time. The check-out
// time is cleared so a re-check-in after an early pickup starts clean.
func (s *AttendanceService) CheckIn(groupID, childID uint, dateKey string) (*models.AttendanceRecord, error) {
	return s.mutateEntry(groupID, childID, dateKey, func(entry *models.AttendanceEntry) {
		now := s.now()
		entry.Status = models.AttendancePresent
		entry.CheckInAt = &now
		entry.CheckOutAt = nil
	})
}

// CheckOut marks the child absent and stamps the check-out time. The
// check-in time is preserved so the day still shows when the child arrived.
func (s *AttendanceService) CheckOut(groupID, childID uint, dateKey string) (*models.AttendanceRecord, error) {
	return s.mutateEntry(groupID, childID, dateKey, func(entry *models.AttendanceEntry) {
		now := s.now()
		entry.Status = models.AttendanceAbsent
		entry.CheckOutAt = &now
	})
}

// SetRemark replaces the child's remark and touches nothing else.
func (s *AttendanceService) SetRemark(groupID, childID uint, dateKey, remark string) (*models.AttendanceRecord, error) {
	return s.mutateEntry(groupID, childID, dateKey, func(entry *models.AttendanceEntry) {
		entry.Remark = remark
	})
}

// mutateEntry runs the read-modify-write cycle for a single entry. The write
// is conditional on the record version observed at read time; one retry
// absorbs a losing race with another teacher client.
func (s *AttendanceService) mutateEntry(groupID, childID uint, dateKey string, mutate func(*models.AttendanceEntry)) (*models.AttendanceRecord, error) {
	const attempts = 2

	var lastErr error
	for i := 0; i < attempts; i++ {
		record, err := s.store.GetRecord(groupID, dateKey)
		if err != nil {
			return nil, fmt.Errorf("load attendance record: %w", err)
		}
		if record == nil {
			return nil, ErrRecordNotReady
		}

		entry := findEntry(record, childID)
		if entry == nil {
			return nil, ErrEntryNotFound
		}

		mutate(entry)

		if err := s.store.UpdateEntry(record.ID, record.Version, entry); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("update attendance entry: %w", err)
		}

		updated, err := s.store.GetRecord(groupID, dateKey)
		if err != nil || updated == nil {
			// The write itself succeeded; fall back to the in-memory view.
			updated = record
			updated.Version++
		}
		s.broadcast(updated)
		return updated, nil
	}
	return nil, lastErr
}

func findEntry(record *models.AttendanceRecord, childID uint) *models.AttendanceEntry {
	for i := range record.Entries {
		if record.Entries[i].ChildID == childID {
			return &record.Entries[i]
		}
	}
	return nil
}

// StripForHistory reduces working entries to the finalized form. Check-in
// and check-out times are intentionally dropped.
func StripForHistory(record *models.AttendanceRecord) []models.AttendanceHistoryEntry {
	entries := make([]models.AttendanceHistoryEntry, 0, len(record.Entries))
	for _, e := range record.Entries {
		entries = append(entries, models.AttendanceHistoryEntry{
			ChildID:   e.ChildID,
			ChildName: e.ChildName,
			Status:    e.Status,
			Remark:    e.Remark,
		})
	}
	return entries
}

// Finalize commits the working record into permanent history. Re-finalizing
// the same day replaces the previous snapshot atomically; the working record
// stays in place.
func (s *AttendanceService) Finalize(groupID uint, dateKey string, finalizedBy uint) (*models.AttendanceHistory, error) {
	record, err := s.store.GetRecord(groupID, dateKey)
	if err != nil {
		return nil, fmt.Errorf("load attendance record: %w", err)
	}
	if record == nil {
		return nil, ErrRecordNotReady
	}

	history := &models.AttendanceHistory{
		ClassGroupID: groupID,
		DateKey:      dateKey,
		FinalizedBy:  finalizedBy,
		Entries:      StripForHistory(record),
	}
	if err := s.store.ReplaceHistory(history); err != nil {
		return nil, fmt.Errorf("replace attendance history: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"group_id": groupID,
		"date_key": dateKey,
		"entries":  len(history.Entries),
	}).Info("Finalized daily attendance")

	return history, nil
}

// History returns the finalized snapshot for (group, dateKey).
func (s *AttendanceService) History(groupID uint, dateKey string) (*models.AttendanceHistory, error) {
	history, err := s.store.GetHistory(groupID, dateKey)
	if err != nil {
		return nil, fmt.Errorf("load attendance history: %w", err)
	}
	return history, nil
}

func (s *AttendanceService) broadcast(record *models.AttendanceRecord) {
	if s.hub == nil || record == nil {
		return
	}
	s.hub.BroadcastAttendance(record.ClassGroupID, record)
}
