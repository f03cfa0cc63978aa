package models

import "time"

// Task is a client's request to have a set of files staged.
type Task struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Status       TaskStatus `gorm:"not null;size:32;index;default:New" json:"status"`
	Source       string     `gorm:"not null;size:255;index" json:"source"`
	SubmitTime   time.Time  `gorm:"not null" json:"submit_time"`
	LastUpdate   time.Time  `gorm:"not null" json:"last_update"`
	CompleteTime *time.Time `json:"complete_time,omitempty"`
	CallbackID   string     `gorm:"column:callback_id;size:255" json:"callback_id"`

	// SourceTaskID references the task of an upstream system that issued
	// this request, if any.
	SourceTaskID *string `gorm:"column:source_task_id;size:255" json:"source_task_id,omitempty"`
}

// TableName returns the table name for Task.
func (Task) TableName() string {
	return "tasks"
}

// TaskRef is the projection returned to pollers looking for tasks in a
// given status.
type TaskRef struct {
	ID           string  `json:"id"`
	Source       string  `json:"source"`
	CallbackID   string  `json:"callback_id"`
	SourceTaskID *string `json:"source_task_id,omitempty"`
}

// Ref returns the poller projection of t.
func (t *Task) Ref() TaskRef {
	return TaskRef{
		ID:           t.ID,
		Source:       t.Source,
		CallbackID:   t.CallbackID,
		SourceTaskID: t.SourceTaskID,
	}
}

// TaskInfo joins a task with every replica it depends on.
type TaskInfo struct {
	Task     Task           `json:"task"`
	Replicas []CacheReplica `json:"replicas"`
}

// FileSummary is the per-file part of a task summary.
type FileSummary struct {
	StorageElement string        `json:"storage_element"`
	PFN            string        `json:"pfn,omitempty"`
	Size           int64         `json:"size"`
	Status         ReplicaStatus `json:"status"`
	Reason         string        `json:"reason,omitempty"`
}

// TaskSummary is a client-facing view of a task keyed by logical file name.
type TaskSummary struct {
	TaskID     string                 `json:"task_id"`
	Status     TaskStatus             `json:"status"`
	Source     string                 `json:"source"`
	CallbackID string                 `json:"callback_id"`
	Files      map[string]FileSummary `json:"files"`
}
