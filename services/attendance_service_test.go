package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"kindernest_go/models"
)

// memAttendanceStore is an in-memory AttendanceStore used to exercise the
// service without a database. It copies records on read/write the way a real
// store would.
type memAttendanceStore struct {
	records   map[string]*models.AttendanceRecord
	histories map[string]*models.AttendanceHistory
	rosters   map[uint][]models.Child
	nextID    uint

	// failUpdates makes the next n UpdateEntry calls report a version
	// conflict regardless of the version passed.
	failUpdates int
	// hideReads makes the next n GetRecord calls miss, simulating a reader
	// that raced ahead of a concurrent insert.
	hideReads int
}

func newMemStore() *memAttendanceStore {
	return &memAttendanceStore{
		records:   make(map[string]*models.AttendanceRecord),
		histories: make(map[string]*models.AttendanceHistory),
		rosters:   make(map[uint][]models.Child),
		nextID:    1,
	}
}

func key(groupID uint, dateKey string) string {
	return fmt.Sprintf("%d:%s", groupID, dateKey)
}

func copyRecord(r *models.AttendanceRecord) *models.AttendanceRecord {
	cp := *r
	cp.Entries = make([]models.AttendanceEntry, len(r.Entries))
	copy(cp.Entries, r.Entries)
	return &cp
}

func (m *memAttendanceStore) GetRecord(groupID uint, dateKey string) (*models.AttendanceRecord, error) {
	if m.hideReads > 0 {
		m.hideReads--
		return nil, nil
	}
	r, ok := m.records[key(groupID, dateKey)]
	if !ok {
		return nil, nil
	}
	return copyRecord(r), nil
}

func (m *memAttendanceStore) CreateRecord(record *models.AttendanceRecord) error {
	k := key(record.ClassGroupID, record.DateKey)
	if _, ok := m.records[k]; ok {
		return errors.New("duplicate record")
	}
	record.ID = m.nextID
	m.nextID++
	m.records[k] = copyRecord(record)
	return nil
}

func (m *memAttendanceStore) Roster(groupID uint) ([]models.Child, error) {
	return m.rosters[groupID], nil
}

func (m *memAttendanceStore) UpdateEntry(recordID uint, expectVersion uint, entry *models.AttendanceEntry) error {
	if m.failUpdates > 0 {
		m.failUpdates--
		return ErrVersionConflict
	}
	for _, r := range m.records {
		if r.ID != recordID {
			continue
		}
		if r.Version != expectVersion {
			return ErrVersionConflict
		}
		r.Version++
		for i := range r.Entries {
			if r.Entries[i].ChildID == entry.ChildID {
				r.Entries[i].Status = entry.Status
				r.Entries[i].CheckInAt = entry.CheckInAt
				r.Entries[i].CheckOutAt = entry.CheckOutAt
				r.Entries[i].Remark = entry.Remark
				return nil
			}
		}
		return errors.New("entry not found")
	}
	return errors.New("record not found")
}

func (m *memAttendanceStore) ReplaceHistory(history *models.AttendanceHistory) error {
	m.histories[key(history.ClassGroupID, history.DateKey)] = history
	return nil
}

func (m *memAttendanceStore) GetHistory(groupID uint, dateKey string) (*models.AttendanceHistory, error) {
	h, ok := m.histories[key(groupID, dateKey)]
	if !ok {
		return nil, nil
	}
	return h, nil
}

func testChild(id uint, first, last string) models.Child {
	c := models.Child{FirstName: first, LastName: last}
	c.ID = id
	return c
}

func newTestService(store *memAttendanceStore) *AttendanceService {
	svc := NewAttendanceService(store)
	svc.now = func() time.Time {
		return time.Date(2025, 1, 14, 9, 3, 12, 0, time.UTC)
	}
	return svc
}

const testDay = "2025-01-14"

func TestReconcileSynthesizesFromRoster(t *testing.T) {
	store := newMemStore()
	store.rosters[1] = []models.Child{
		testChild(10, "Johnny", "Sin"),
		testChild(11, "Konny", "Tan"),
	}
	svc := newTestService(store)

	record, err := svc.Reconcile(1, testDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(record.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(record.Entries))
	}
	for _, e := range record.Entries {
		if e.Status != models.AttendanceAbsent {
			t.Errorf("entry %q: expected status absent, got %q", e.ChildName, e.Status)
		}
		if e.CheckInAt != nil || e.CheckOutAt != nil {
			t.Errorf("entry %q: expected nil check-in/out times", e.ChildName)
		}
		if e.Remark != "" {
			t.Errorf("entry %q: expected empty remark, got %q", e.ChildName, e.Remark)
		}
	}
	if record.Entries[0].ChildName != "Johnny Sin" || record.Entries[1].ChildName != "Konny Tan" {
		t.Errorf("unexpected entry names: %q, %q", record.Entries[0].ChildName, record.Entries[1].ChildName)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	store := newMemStore()
	store.rosters[1] = []models.Child{testChild(10, "Johnny", "Sin")}
	svc := newTestService(store)

	first, err := svc.Reconcile(1, testDay)
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	// Roster change after synthesis must not leak into the existing record.
	store.rosters[1] = append(store.rosters[1], testChild(11, "Konny", "Tan"))

	second, err := svc.Reconcile(1, testDay)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same record, got ids %d and %d", first.ID, second.ID)
	}
	if len(second.Entries) != len(first.Entries) {
		t.Fatalf("expected %d entries on second call, got %d", len(first.Entries), len(second.Entries))
	}
	if len(store.records) != 1 {
		t.Fatalf("expected exactly one stored record, got %d", len(store.records))
	}
}

func TestReconcileEmptyRoster(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	record, err := svc.Reconcile(7, testDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(record.Entries) != 0 {
		t.Fatalf("expected empty entry list, got %d entries", len(record.Entries))
	}
	if _, ok := store.records[key(7, testDay)]; !ok {
		t.Fatal("expected a record to be persisted even for an empty roster")
	}
}

func TestReconcileSurvivesCreationRace(t *testing.T) {
	store := newMemStore()
	store.rosters[1] = []models.Child{testChild(10, "Johnny", "Sin")}
	svc := newTestService(store)

	// A competing client inserts today's record between our existence check
	// and our insert; the unique key rejects ours and we re-read theirs.
	existing := &models.AttendanceRecord{
		ClassGroupID: 1,
		DateKey:      testDay,
		Entries:      SynthesizeEntries(store.rosters[1]),
	}
	if err := store.CreateRecord(existing); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	store.hideReads = 1

	record, err := svc.Reconcile(1, testDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.ID != existing.ID {
		t.Fatalf("expected the existing record %d, got %d", existing.ID, record.ID)
	}
}

func TestCheckInSetsFieldsAndIsolatesOthers(t *testing.T) {
	store := newMemStore()
	store.rosters[1] = []models.Child{
		testChild(10, "Johnny", "Sin"),
		testChild(11, "Konny", "Tan"),
	}
	svc := newTestService(store)
	if _, err := svc.Reconcile(1, testDay); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	record, err := svc.CheckIn(1, 10, testDay)
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}

	var johnny, konny *models.AttendanceEntry
	for i := range record.Entries {
		switch record.Entries[i].ChildID {
		case 10:
			johnny = &record.Entries[i]
		case 11:
			konny = &record.Entries[i]
		}
	}
	if johnny == nil || konny == nil {
		t.Fatal("expected both entries in record")
	}
	if johnny.Status != models.AttendancePresent {
		t.Errorf("expected present, got %q", johnny.Status)
	}
	if johnny.CheckInAt == nil {
		t.Error("expected check-in time to be set")
	}
	if johnny.CheckOutAt != nil {
		t.Error("expected check-out time to stay nil")
	}
	if konny.Status != models.AttendanceAbsent || konny.CheckInAt != nil || konny.CheckOutAt != nil || konny.Remark != "" {
		t.Error("check-in must not touch other entries")
	}
}

func TestCheckInCheckOutRoundTrip(t *testing.T) {
	store := newMemStore()
	store.rosters[1] = []models.Child{testChild(10, "Johnny", "Sin")}
	svc := newTestService(store)
	if _, err := svc.Reconcile(1, testDay); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if _, err := svc.CheckIn(1, 10, testDay); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	record, err := svc.CheckOut(1, 10, testDay)
	if err != nil {
		t.Fatalf("check-out: %v", err)
	}

	e := record.Entries[0]
	if e.Status != models.AttendanceAbsent {
		t.Errorf("expected absent after check-out, got %q", e.Status)
	}
	if e.CheckOutAt == nil {
		t.Error("expected check-out time to be set")
	}
	if e.CheckInAt == nil {
		t.Error("check-out must preserve the check-in time")
	}
}

func TestRemarkIsolation(t *testing.T) {
	store := newMemStore()
	store.rosters[1] = []models.Child{
		testChild(10, "Johnny", "Sin"),
		testChild(11, "Konny", "Tan"),
	}
	svc := newTestService(store)
	if _, err := svc.Reconcile(1, testDay); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if _, err := svc.CheckIn(1, 10, testDay); err != nil {
		t.Fatalf("check-in: %v", err)
	}

	record, err := svc.SetRemark(1, 11, testDay, "sick")
	if err != nil {
		t.Fatalf("set remark: %v", err)
	}

	for _, e := range record.Entries {
		switch e.ChildID {
		case 11:
			if e.Remark != "sick" {
				t.Errorf("expected remark %q, got %q", "sick", e.Remark)
			}
			if e.Status != models.AttendanceAbsent || e.CheckInAt != nil {
				t.Error("remark edit must not touch status or times")
			}
		case 10:
			if e.Status != models.AttendancePresent || e.CheckInAt == nil || e.Remark != "" {
				t.Error("remark edit must not touch other entries")
			}
		}
	}
}

func TestMutationsBeforeReconcile(t *testing.T) {
	store := newMemStore()
	store.rosters[1] = []models.Child{testChild(10, "Johnny", "Sin")}
	svc := newTestService(store)

	ops := []struct {
		name string
		run  func() error
	}{
		{"check-in", func() error { _, err := svc.CheckIn(1, 10, testDay); return err }},
		{"check-out", func() error { _, err := svc.CheckOut(1, 10, testDay); return err }},
		{"remark", func() error { _, err := svc.SetRemark(1, 10, testDay, "x"); return err }},
		{"finalize", func() error { _, err := svc.Finalize(1, testDay, 1); return err }},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			if err := op.run(); !errors.Is(err, ErrRecordNotReady) {
				t.Fatalf("expected ErrRecordNotReady, got %v", err)
			}
		})
	}
	if len(store.records) != 0 {
		t.Fatalf("mutations must not create records; found %d", len(store.records))
	}
}

func TestMutateUnknownChild(t *testing.T) {
	store := newMemStore()
	store.rosters[1] = []models.Child{testChild(10, "Johnny", "Sin")}
	svc := newTestService(store)
	if _, err := svc.Reconcile(1, testDay); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if _, err := svc.CheckIn(1, 999, testDay); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestVersionConflictRetries(t *testing.T) {
	store := newMemStore()
	store.rosters[1] = []models.Child{testChild(10, "Johnny", "Sin")}
	svc := newTestService(store)
	if _, err := svc.Reconcile(1, testDay); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	// First write loses the race, the retry succeeds.
	store.failUpdates = 1
	record, err := svc.CheckIn(1, 10, testDay)
	if err != nil {
		t.Fatalf("expected retry to absorb one conflict, got %v", err)
	}
	if record.Entries[0].Status != models.AttendancePresent {
		t.Error("expected entry updated after retried write")
	}

	// Persistent conflicts surface to the caller.
	store.failUpdates = 5
	if _, err := svc.CheckOut(1, 10, testDay); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestFinalizeStripsTimes(t *testing.T) {
	store := newMemStore()
	store.rosters[1] = []models.Child{
		testChild(10, "Johnny", "Sin"),
		testChild(11, "Konny", "Tan"),
	}
	svc := newTestService(store)
	if _, err := svc.Reconcile(1, testDay); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if _, err := svc.CheckIn(1, 10, testDay); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if _, err := svc.SetRemark(1, 11, testDay, "sick"); err != nil {
		t.Fatalf("set remark: %v", err)
	}

	history, err := svc.Finalize(1, testDay, 42)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if len(history.Entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history.Entries))
	}
	for _, e := range history.Entries {
		switch e.ChildID {
		case 10:
			if e.Status != models.AttendancePresent {
				t.Errorf("expected present, got %q", e.Status)
			}
		case 11:
			if e.Status != models.AttendanceAbsent || e.Remark != "sick" {
				t.Errorf("expected absent/sick, got %q/%q", e.Status, e.Remark)
			}
		default:
			t.Errorf("unexpected child %d in history", e.ChildID)
		}
	}
	if history.FinalizedBy != 42 {
		t.Errorf("expected finalized_by 42, got %d", history.FinalizedBy)
	}
}

func TestFinalizeReplacesPreviousSnapshot(t *testing.T) {
	store := newMemStore()
	store.rosters[1] = []models.Child{testChild(10, "Johnny", "Sin")}
	svc := newTestService(store)
	if _, err := svc.Reconcile(1, testDay); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if _, err := svc.Finalize(1, testDay, 1); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	if _, err := svc.CheckIn(1, 10, testDay); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if _, err := svc.Finalize(1, testDay, 1); err != nil {
		t.Fatalf("second finalize: %v", err)
	}

	history, err := svc.History(1, testDay)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if history == nil {
		t.Fatal("expected a history snapshot")
	}
	if len(history.Entries) != 1 {
		t.Fatalf("expected 1 entry after replacement, got %d", len(history.Entries))
	}
	if history.Entries[0].Status != models.AttendancePresent {
		t.Errorf("expected replacement to carry the new status, got %q", history.Entries[0].Status)
	}
}

func TestDateKeyAnchoredToSchoolTimezone(t *testing.T) {
	bangkok, err := time.LoadLocation("Asia/Bangkok")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	tests := []struct {
		name string
		t    time.Time
		loc  *time.Location
		want string
	}{
		{
			name: "utc evening is next day in bangkok",
			t:    time.Date(2025, 1, 14, 23, 30, 0, 0, time.UTC),
			loc:  bangkok,
			want: "2025-01-15",
		},
		{
			name: "local morning stays same day",
			t:    time.Date(2025, 1, 14, 8, 0, 0, 0, bangkok),
			loc:  bangkok,
			want: "2025-01-14",
		},
		{
			name: "utc anchor",
			t:    time.Date(2025, 1, 14, 23, 30, 0, 0, time.UTC),
			loc:  time.UTC,
			want: "2025-01-14",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := DateKeyIn(tc.t, tc.loc); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
