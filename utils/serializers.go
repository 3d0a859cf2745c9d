package utils

import (
	"time"

	"kindernest_go/models"
)

// Compact representations used across APIs

type ChildShort struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
}

type AttendanceEntryDTO struct {
	ChildID    uint       `json:"child_id"`
	ChildName  string     `json:"child_name"`
	PhotoURL   string     `json:"photo_url,omitempty"`
	Status     string     `json:"status"`
	CheckInAt  *time.Time `json:"check_in_at"`
	CheckOutAt *time.Time `json:"check_out_at"`
	Remark     string     `json:"remark"`
}

type AttendanceRecordDTO struct {
	ID           uint                 `json:"id"`
	ClassGroupID uint                 `json:"class_group_id"`
	DateKey      string               `json:"date_key"`
	Version      uint                 `json:"version"`
	Entries      []AttendanceEntryDTO `json:"entries"`
}

type NotificationDTO struct {
	ID        uint       `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UserID    uint       `json:"user_id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Type      string     `json:"type"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// ToChildShort maps a child to its compact form.
func ToChildShort(c models.Child) ChildShort {
	return ChildShort{
		ID:       c.ID,
		Name:     c.FullName(),
		Nickname: c.Nickname,
		PhotoURL: c.PhotoURL,
	}
}

func ToChildShorts(children []models.Child) []ChildShort {
	out := make([]ChildShort, 0, len(children))
	for _, c := range children {
		out = append(out, ToChildShort(c))
	}
	return out
}

// ToAttendanceRecordDTO maps a record with preloaded entries to the wire form
// clients render. Entry order follows the stored sort order.
func ToAttendanceRecordDTO(r models.AttendanceRecord) AttendanceRecordDTO {
	entries := make([]AttendanceEntryDTO, 0, len(r.Entries))
	for _, e := range r.Entries {
		entries = append(entries, AttendanceEntryDTO{
			ChildID:    e.ChildID,
			ChildName:  e.ChildName,
			PhotoURL:   e.PhotoURL,
			Status:     e.Status,
			CheckInAt:  e.CheckInAt,
			CheckOutAt: e.CheckOutAt,
			Remark:     e.Remark,
		})
	}
	return AttendanceRecordDTO{
		ID:           r.ID,
		ClassGroupID: r.ClassGroupID,
		DateKey:      r.DateKey,
		Version:      r.Version,
		Entries:      entries,
	}
}

// ToNotificationDTO maps a models.Notification to the compact DTO.
func ToNotificationDTO(n models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		CreatedAt: n.CreatedAt,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
	}
}

func ToNotificationDTOs(ns []models.Notification) []NotificationDTO {
	out := make([]NotificationDTO, 0, len(ns))
	for _, n := range ns {
		out = append(out, ToNotificationDTO(n))
	}
	return out
}
