package models

import "time"

// Task is a unit of work assigned to one or more users.
type Task struct {
	BaseModel

	Title         string     `gorm:"type:varchar(255);not null" json:"title"`
	Description   string     `gorm:"type:text" json:"description"`
	Deadline      *time.Time `gorm:"index" json:"deadline,omitempty"`
	AttachmentRef *string    `gorm:"type:text" json:"attachment_ref,omitempty"`
	CreatedBy     string     `gorm:"type:varchar(64);index" json:"created_by"`

	// Completed is derived from Assignees and recomputed on every ledger write.
	Completed bool `gorm:"default:false;index" json:"completed"`

	Assignees   []TaskAssignee   `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"assignees"`
	Submissions []TaskSubmission `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"submissions"`
}

// TaskAssignee tracks one user's completion state for a task.
type TaskAssignee struct {
	TaskID      string     `gorm:"primaryKey;type:uuid" json:"task_id"`
	UserID      string     `gorm:"primaryKey;type:varchar(64);index" json:"user_id"`
	Position    int        `gorm:"not null;default:0" json:"position"`
	Completed   bool       `gorm:"default:false" json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	AssignedAt  time.Time  `json:"assigned_at"`
}

// TaskSubmission is the latest submission of one assignee.
type TaskSubmission struct {
	TaskID        string    `gorm:"primaryKey;type:uuid" json:"task_id"`
	UserID        string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	AttachmentRef *string   `gorm:"type:text" json:"attachment_ref,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// AssigneeIDs returns assignee user identifiers in insertion order.
func (t Task) AssigneeIDs() []string {
	ids := make([]string, 0, len(t.Assignees))
	for _, assignee := range t.Assignees {
		ids = append(ids, assignee.UserID)
	}
	return ids
}

// Assignee returns the assignment record for userID.
func (t Task) Assignee(userID string) (TaskAssignee, bool) {
	for _, assignee := range t.Assignees {
		if assignee.UserID == userID {
			return assignee, true
		}
	}
	return TaskAssignee{}, false
}

// Submission returns the submission recorded for userID.
func (t Task) Submission(userID string) (TaskSubmission, bool) {
	for _, submission := range t.Submissions {
		if submission.UserID == userID {
			return submission, true
		}
	}
	return TaskSubmission{}, false
}
