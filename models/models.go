package models

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	s, ok := value.([]byte)
	if !ok {
		return nil
	}
	*j = append((*j)[0:0], s...)
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// User model. Parents, teachers and admins all log in through the same table.
type User struct {
	BaseModel
	Username string `json:"username" gorm:"size:100;not null;uniqueIndex"`
	Password string `json:"-" gorm:"size:255;not null"`
	Email    string `json:"email" gorm:"size:255;uniqueIndex"`
	Phone    string `json:"phone" gorm:"size:20"`
	LineID   string `json:"line_id" gorm:"size:100"`
	Role     string `json:"role" gorm:"size:50;not null;default:'parent';type:enum('admin','teacher','parent')"` // admin, teacher, parent
	Status   string `json:"status" gorm:"size:50;not null;default:'active';type:enum('active','inactive','suspended')"`
	Avatar   string `json:"avatar" gorm:"size:500"`

	// Relationships
	Children []Child `json:"children,omitempty" gorm:"foreignKey:ParentID"`
}

// ClassGroup is a named cohort of children (K1, K2, ...).
type ClassGroup struct {
	BaseModel
	Name     string `json:"name" gorm:"size:100;not null;uniqueIndex"`
	Room     string `json:"room" gorm:"size:100"`
	Capacity int    `json:"capacity" gorm:"default:20"`
	Active   bool   `json:"active" gorm:"default:true"`

	// Relationships
	Children      []Child             `json:"children,omitempty" gorm:"foreignKey:ClassGroupID"`
	ScheduleSlots []ClassScheduleSlot `json:"schedule_slots,omitempty" gorm:"foreignKey:ClassGroupID"`
	Remarks       []ClassRemark       `json:"remarks,omitempty" gorm:"foreignKey:ClassGroupID"`
}

// ClassScheduleSlot is one subject block in a group's weekly timetable.
type ClassScheduleSlot struct {
	BaseModel
	ClassGroupID uint   `json:"class_group_id" gorm:"not null;index"`
	Weekday      int    `json:"weekday" gorm:"not null"` // 0 = Sunday ... 6 = Saturday
	Subject      string `json:"subject" gorm:"size:255;not null"`
	StartTime    string `json:"start_time" gorm:"size:10;not null"` // "09:00"
	EndTime      string `json:"end_time" gorm:"size:10;not null"`
	SortOrder    int    `json:"sort_order" gorm:"default:1"`

	// Relationships
	ClassGroup ClassGroup `json:"class_group,omitempty" gorm:"foreignKey:ClassGroupID"`
}

// ClassRemark is a free-text note attached to a group for a calendar day.
type ClassRemark struct {
	BaseModel
	ClassGroupID uint   `json:"class_group_id" gorm:"not null;uniqueIndex:idx_class_remark_day"`
	DateKey      string `json:"date_key" gorm:"size:10;not null;uniqueIndex:idx_class_remark_day"` // YYYY-MM-DD
	Note         string `json:"note" gorm:"type:text"`
}

// Child model. The stable ID is the join key used everywhere; the display
// name is carried along only for rendering.
type Child struct {
	BaseModel
	ParentID     uint       `json:"parent_id" gorm:"not null;index"`
	ClassGroupID uint       `json:"class_group_id" gorm:"index"`
	FirstName    string     `json:"first_name" gorm:"size:100;not null"`
	LastName     string     `json:"last_name" gorm:"size:100"`
	Nickname     string     `json:"nickname" gorm:"size:100"`
	Gender       string     `json:"gender" gorm:"size:20"`
	DateOfBirth  *time.Time `json:"date_of_birth"`
	PhotoURL     string     `json:"photo_url" gorm:"size:500"`
	AllergyNote  string     `json:"allergy_note" gorm:"type:text"`
	Active       bool       `json:"active" gorm:"default:true"`

	// Relationships
	Parent     User       `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	ClassGroup ClassGroup `json:"class_group,omitempty" gorm:"foreignKey:ClassGroupID"`
}

// FullName returns the child's display name.
func (c Child) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Attendance entry statuses
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
)

// AttendanceRecord is the working attendance state for one (group, day).
// The unique index makes concurrent first-access synthesis converge on a
// single row; Version guards the read-modify-write cycle of mutations.
type AttendanceRecord struct {
	BaseModel
	ClassGroupID uint   `json:"class_group_id" gorm:"not null;uniqueIndex:idx_attendance_group_day"`
	DateKey      string `json:"date_key" gorm:"size:10;not null;uniqueIndex:idx_attendance_group_day"` // YYYY-MM-DD in school timezone
	Version      uint   `json:"version" gorm:"not null;default:0"`

	// Relationships
	ClassGroup ClassGroup        `json:"class_group,omitempty" gorm:"foreignKey:ClassGroupID"`
	Entries    []AttendanceEntry `json:"entries,omitempty" gorm:"foreignKey:RecordID"`
}

// AttendanceEntry is one child's state within a daily record.
type AttendanceEntry struct {
	BaseModel
	RecordID   uint       `json:"record_id" gorm:"not null;uniqueIndex:idx_attendance_entry_child"`
	ChildID    uint       `json:"child_id" gorm:"not null;uniqueIndex:idx_attendance_entry_child"`
	ChildName  string     `json:"child_name" gorm:"size:200;not null"`
	PhotoURL   string     `json:"photo_url" gorm:"size:500"`
	Status     string     `json:"status" gorm:"size:20;not null;default:'absent';type:enum('present','absent')"`
	CheckInAt  *time.Time `json:"check_in_at"`
	CheckOutAt *time.Time `json:"check_out_at"`
	Remark     string     `json:"remark" gorm:"type:text"`
}

// AttendanceHistory is the finalized snapshot for a (group, day).
type AttendanceHistory struct {
	BaseModel
	ClassGroupID uint   `json:"class_group_id" gorm:"not null;uniqueIndex:idx_attendance_history_day"`
	DateKey      string `json:"date_key" gorm:"size:10;not null;uniqueIndex:idx_attendance_history_day"`
	FinalizedBy  uint   `json:"finalized_by"`

	// Relationships
	Entries []AttendanceHistoryEntry `json:"entries,omitempty" gorm:"foreignKey:HistoryID"`
}

// AttendanceHistoryEntry intentionally drops check-in/out times.
type AttendanceHistoryEntry struct {
	BaseModel
	HistoryID uint   `json:"history_id" gorm:"not null;index"`
	ChildID   uint   `json:"child_id" gorm:"not null"`
	ChildName string `json:"child_name" gorm:"size:200;not null"`
	Status    string `json:"status" gorm:"size:20;not null"`
	Remark    string `json:"remark" gorm:"type:text"`
}

// Event is a school-wide happening parents register children for.
type Event struct {
	BaseModel
	Title        string    `json:"title" gorm:"size:255;not null"`
	Detail       string    `json:"detail" gorm:"type:text"`
	EventDate    time.Time `json:"event_date" gorm:"not null"`
	Capacity     int       `json:"capacity" gorm:"default:0"` // 0 = unlimited
	RegisterFrom time.Time `json:"register_from"`
	RegisterTo   time.Time `json:"register_to"`
	CoverURL     string    `json:"cover_url" gorm:"size:500"`

	// Relationships
	Registrations []EventRegistration `json:"registrations,omitempty" gorm:"foreignKey:EventID"`
}

// EventRegistration ties a child to an event. One row per (event, child).
type EventRegistration struct {
	BaseModel
	EventID      uint `json:"event_id" gorm:"not null;uniqueIndex:idx_event_child"`
	ChildID      uint `json:"child_id" gorm:"not null;uniqueIndex:idx_event_child"`
	RegisteredBy uint `json:"registered_by" gorm:"not null"`

	// Relationships
	Event Event `json:"event,omitempty" gorm:"foreignKey:EventID"`
	Child Child `json:"child,omitempty" gorm:"foreignKey:ChildID"`
}

// EnrichmentProgram is a recurring paid extracurricular class.
type EnrichmentProgram struct {
	BaseModel
	Name         string    `json:"name" gorm:"size:255;not null"`
	Detail       string    `json:"detail" gorm:"type:text"`
	Weekday      int       `json:"weekday" gorm:"not null"`
	StartTime    string    `json:"start_time" gorm:"size:10"`
	EndTime      string    `json:"end_time" gorm:"size:10"`
	Term         string    `json:"term" gorm:"size:50"`
	Fee          int       `json:"fee"`
	Capacity     int       `json:"capacity" gorm:"default:0"`
	RegisterFrom time.Time `json:"register_from"`
	RegisterTo   time.Time `json:"register_to"`
	Active       bool      `json:"active" gorm:"default:true"`

	// Relationships
	Registrations []EnrichmentRegistration `json:"registrations,omitempty" gorm:"foreignKey:ProgramID"`
}

// EnrichmentRegistration ties a child to an enrichment program.
type EnrichmentRegistration struct {
	BaseModel
	ProgramID    uint `json:"program_id" gorm:"not null;uniqueIndex:idx_enrichment_child"`
	ChildID      uint `json:"child_id" gorm:"not null;uniqueIndex:idx_enrichment_child"`
	RegisteredBy uint `json:"registered_by" gorm:"not null"`

	// Relationships
	Program EnrichmentProgram `json:"program,omitempty" gorm:"foreignKey:ProgramID"`
	Child   Child             `json:"child,omitempty" gorm:"foreignKey:ChildID"`
}

// Album groups photos published to a class.
type Album struct {
	BaseModel
	ClassGroupID uint      `json:"class_group_id" gorm:"index"` // 0 = whole school
	Title        string    `json:"title" gorm:"size:255;not null"`
	EventDate    time.Time `json:"event_date"`
	CreatedBy    uint      `json:"created_by"`

	// Relationships
	Photos []AlbumPhoto `json:"photos,omitempty" gorm:"foreignKey:AlbumID"`
}

type AlbumPhoto struct {
	BaseModel
	AlbumID uint   `json:"album_id" gorm:"not null;index"`
	URL     string `json:"url" gorm:"size:500;not null"`
	Caption string `json:"caption" gorm:"size:500"`
}

// MedicalRecord is a parent-uploaded health document for a child.
type MedicalRecord struct {
	BaseModel
	ChildID     uint   `json:"child_id" gorm:"not null;index"`
	Kind        string `json:"kind" gorm:"size:50;not null;type:enum('vaccination','allergy','illness','other')"` // vaccination, allergy, illness, other
	Note        string `json:"note" gorm:"type:text"`
	DocumentURL string `json:"document_url" gorm:"size:500"`
	UploadedBy  uint   `json:"uploaded_by" gorm:"not null"`

	// Relationships
	Child Child `json:"child,omitempty" gorm:"foreignKey:ChildID"`
}

// LeaveRequest is a parent-submitted absence notice pending teacher review.
type LeaveRequest struct {
	BaseModel
	ChildID     uint       `json:"child_id" gorm:"not null;index"`
	StartDate   time.Time  `json:"start_date" gorm:"not null"`
	EndDate     time.Time  `json:"end_date" gorm:"not null"`
	Reason      string     `json:"reason" gorm:"type:text"`
	DocumentURL string     `json:"document_url" gorm:"size:500"`
	Status      string     `json:"status" gorm:"size:50;not null;default:'pending';type:enum('pending','approved','rejected')"`
	ReviewedBy  *uint      `json:"reviewed_by"`
	ReviewedAt  *time.Time `json:"reviewed_at"`

	// Relationships
	Child Child `json:"child,omitempty" gorm:"foreignKey:ChildID"`
}

// Notification model
type Notification struct {
	BaseModel
	UserID  uint       `json:"user_id" gorm:"not null"`
	Title   string     `json:"title" gorm:"size:255;not null"`
	Message string     `json:"message" gorm:"type:text;not null"`
	Type    string     `json:"type" gorm:"size:50;not null;type:enum('info','warning','error','success')"` // info, warning, error, success
	Read    bool       `json:"read" gorm:"default:false"`
	ReadAt  *time.Time `json:"read_at"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// LogArchive model for tracking archived logs
type LogArchive struct {
	BaseModel
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:50;not null;default:'pending';type:enum('pending','completed','failed')"` // pending, completed, failed
	Error       string    `json:"error" gorm:"type:text"`
}
