package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceRecord is a single attendance row. At most one record exists per
// enrollment per date; writes use upsert semantics.
type AttendanceRecord struct {
	ID           string           `db:"id" json:"id"`
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	Date         time.Time        `db:"attendance_date" json:"attendance_date"`
	Status       AttendanceStatus `db:"status" json:"status"`
	CheckInTime  *time.Time       `db:"check_in_time" json:"check_in_time,omitempty"`
	Notes        *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceDay is the projection consumed by the feature calculator.
type AttendanceDay struct {
	Date   time.Time        `db:"attendance_date"`
	Status AttendanceStatus `db:"status"`
}

// UpsertAttendanceRequest records or corrects attendance for one date.
type UpsertAttendanceRequest struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	Date         string  `json:"date" validate:"required,datetime=2006-01-02"`
	Status       string  `json:"status" validate:"required,oneof=present absent late excused"`
	CheckInTime  *string `json:"check_in_time,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}
