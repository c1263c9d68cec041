package models

import "time"

// Student carries the demographic attributes consumed by the feature
// calculator alongside identity fields.
type Student struct {
	ID               string    `db:"id" json:"id"`
	FirstName        string    `db:"first_name" json:"first_name"`
	LastName         string    `db:"last_name" json:"last_name"`
	AgeBand          *string   `db:"age_band" json:"age_band,omitempty"`
	HighestEducation *string   `db:"highest_education" json:"highest_education,omitempty"`
	NumPrevAttempts  *int      `db:"num_of_prev_attempts" json:"num_of_prev_attempts,omitempty"`
	StudiedCredits   *int      `db:"studied_credits" json:"studied_credits,omitempty"`
	HasDisability    *bool     `db:"has_disability" json:"has_disability,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// FullName joins the student's name parts for display payloads.
func (s Student) FullName() string {
	if s.FirstName == "" {
		return s.LastName
	}
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}
