package services

import (
	"fmt"
	"strconv"
	"strings"

	"kindernest_go/config"
	"kindernest_go/database"
	"kindernest_go/models"
	"kindernest_go/services/notifications"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SchedulerService runs the recurring background jobs: the morning roster
// prewarm (so teachers never hit the missing-record path), the end-of-day
// finalize reminder, and hourly activity-log maintenance.
type SchedulerService struct {
	cron       *cron.Cron
	attendance *AttendanceService
	notifier   *notifications.Service
	logArchive *LogArchiveService
}

func NewSchedulerService(attendance *AttendanceService, notifier *notifications.Service) *SchedulerService {
	loc := config.AppConfig.SchoolLocation()
	return &SchedulerService{
		cron:       cron.New(cron.WithLocation(loc)),
		attendance: attendance,
		notifier:   notifier,
		logArchive: NewLogArchiveService(),
	}
}

// cronSpecAt converts "07:30" into a daily cron spec.
func cronSpecAt(hhmm string) (string, error) {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, want HH:MM", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q, want HH:MM", hhmm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q, want HH:MM", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Start registers and launches all jobs. Invalid configured times disable
// the affected job rather than aborting startup.
func (s *SchedulerService) Start() {
	if spec, err := cronSpecAt(config.AppConfig.SchoolOpenAt); err == nil {
		if _, err := s.cron.AddFunc(spec, s.PrewarmDailyRecords); err != nil {
			logrus.WithError(err).Error("Failed to schedule roster prewarm")
		}
	} else {
		logrus.WithError(err).Error("Invalid SCHOOL_OPEN_AT; roster prewarm disabled")
	}

	if spec, err := cronSpecAt(config.AppConfig.SchoolCloseAt); err == nil {
		if _, err := s.cron.AddFunc(spec, s.SendFinalizeReminder); err != nil {
			logrus.WithError(err).Error("Failed to schedule finalize reminder")
		}
	} else {
		logrus.WithError(err).Error("Invalid SCHOOL_CLOSE_AT; finalize reminder disabled")
	}

	if _, err := s.cron.AddFunc("@hourly", s.runLogMaintenance); err != nil {
		logrus.WithError(err).Error("Failed to schedule log maintenance")
	}

	s.cron.Start()
	logrus.Info("Scheduler started")
}

// Stop halts the cron runner.
func (s *SchedulerService) Stop() {
	s.cron.Stop()
}

// PrewarmDailyRecords reconciles today's record for every active group.
func (s *SchedulerService) PrewarmDailyRecords() {
	dateKey := TodayKey()

	var groups []models.ClassGroup
	if err := database.DB.Where("active = ?", true).Find(&groups).Error; err != nil {
		logrus.WithError(err).Error("Prewarm: failed to list class groups")
		return
	}

	for _, group := range groups {
		if _, err := s.attendance.Reconcile(group.ID, dateKey); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"group_id": group.ID,
				"date_key": dateKey,
			}).Error("Prewarm: reconcile failed")
		}
	}

	logrus.WithFields(logrus.Fields{
		"groups":   len(groups),
		"date_key": dateKey,
	}).Info("Prewarmed daily attendance records")
}

// SendFinalizeReminder nudges teachers whose groups still have an
// unfinalized record for today.
func (s *SchedulerService) SendFinalizeReminder() {
	dateKey := TodayKey()

	var groups []models.ClassGroup
	if err := database.DB.Where("active = ?", true).Find(&groups).Error; err != nil {
		logrus.WithError(err).Error("Finalize reminder: failed to list class groups")
		return
	}

	pending := make([]string, 0)
	for _, group := range groups {
		var count int64
		database.DB.Model(&models.AttendanceHistory{}).
			Where("class_group_id = ? AND date_key = ?", group.ID, dateKey).
			Count(&count)
		if count == 0 {
			pending = append(pending, group.Name)
		}
	}
	if len(pending) == 0 {
		return
	}

	var teacherIDs []uint
	if err := database.DB.Model(&models.User{}).
		Where("role = ? AND status = ?", "teacher", "active").
		Pluck("id", &teacherIDs).Error; err != nil {
		logrus.WithError(err).Error("Finalize reminder: failed to list teachers")
		return
	}
	if len(teacherIDs) == 0 {
		return
	}

	message := fmt.Sprintf("Attendance for %s has not been finalized yet: %s",
		dateKey, strings.Join(pending, ", "))
	if err := s.notifier.EnqueueOrCreate(teacherIDs, notifications.Queued(
		"Attendance finalize reminder", message, "warning")); err != nil {
		logrus.WithError(err).Error("Finalize reminder: failed to enqueue notification")
	}
}

func (s *SchedulerService) runLogMaintenance() {
	if err := s.logArchive.FlushCachedLogsToDatabase(); err != nil {
		logrus.WithError(err).Warn("periodic FlushCachedLogsToDatabase failed")
	}
	if err := s.logArchive.ArchiveOldLogs(30); err != nil {
		logrus.WithError(err).Warn("periodic ArchiveOldLogs failed")
	}
}
