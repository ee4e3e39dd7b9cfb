package models

import "time"

// Submission is a user's claim of having completed a task, evidenced by
// an uploaded screenshot. Approved flips false to true at most once and
// never back.
type Submission struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	TaskID      string     `db:"task_id" json:"task_id"`
	Screenshot  string     `db:"screenshot" json:"screenshot"`
	Approved    bool       `db:"approved" json:"approved"`
	VerifiedAt  *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	SubmittedAt time.Time  `db:"submitted_at" json:"submitted_at"`
}

// SubmissionDetail is a submission joined with user and task metadata
// for admin review listings. ScreenshotURL is filled in by the service
// with a signed download link.
type SubmissionDetail struct {
	ID            string     `db:"id" json:"id"`
	UserID        string     `db:"user_id" json:"user_id"`
	Username      string     `db:"username" json:"username"`
	UserFullName  string     `db:"user_name" json:"user_name"`
	TaskID        string     `db:"task_id" json:"task_id"`
	TaskName      string     `db:"task_name" json:"task_name"`
	TaskPoints    int        `db:"task_points" json:"task_points"`
	Screenshot    string     `db:"screenshot" json:"-"`
	ScreenshotURL string     `db:"-" json:"screenshot_url"`
	Approved      bool       `db:"approved" json:"approved"`
	VerifiedAt    *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	SubmittedAt   time.Time  `db:"submitted_at" json:"submitted_at"`
}
