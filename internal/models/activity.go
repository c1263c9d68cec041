package models

import "time"

// LMSActivity is an append-only interaction event logged per enrollment. Rows
// are never mutated after insert; they exist only as pipeline input.
type LMSActivity struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Timestamp    time.Time `db:"activity_timestamp" json:"activity_timestamp"`
	ActivityType string    `db:"activity_type" json:"activity_type"`
	ResourceID   *string   `db:"resource_id" json:"resource_id,omitempty"`
}

// ActivityRollup is the per-(date, type, resource) aggregate the feature
// calculator consumes.
type ActivityRollup struct {
	ActivityDate time.Time `db:"activity_date"`
	ActivityType string    `db:"activity_type"`
	ResourceID   *string   `db:"resource_id"`
	ClickCount   int       `db:"click_count"`
}
