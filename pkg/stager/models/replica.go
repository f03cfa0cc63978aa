package models

import "time"

// CacheReplica is one physical file copy tracked for staging. At most one
// exists per (storage element, logical file name).
type CacheReplica struct {
	ID             string        `gorm:"primaryKey;size:36" json:"id"`
	Kind           ReplicaKind   `gorm:"not null;size:32;default:Stage" json:"kind"`
	Status         ReplicaStatus `gorm:"not null;size:32;index;default:New" json:"status"`
	StorageElement string        `gorm:"column:storage_element;not null;size:255;uniqueIndex:idx_replica_key,priority:1" json:"storage_element"`
	LFN            string        `gorm:"column:lfn;not null;size:1024;uniqueIndex:idx_replica_key,priority:2" json:"lfn"`
	PFN            string        `gorm:"column:pfn;size:1024" json:"pfn,omitempty"`
	Size           int64         `gorm:"not null;default:0" json:"size"`
	Checksum       string        `gorm:"size:255" json:"checksum,omitempty"`
	GUID           string        `gorm:"column:guid;size:255" json:"guid,omitempty"`
	SubmitTime     time.Time     `gorm:"not null" json:"submit_time"`
	LastUpdate     time.Time     `gorm:"not null" json:"last_update"`
	Reason         *string       `gorm:"size:1024" json:"reason,omitempty"`

	// Links counts the tasks currently depending on this replica.
	Links int `gorm:"not null;default:0;index" json:"links"`
}

// TableName returns the table name for CacheReplica.
func (CacheReplica) TableName() string {
	return "cache_replicas"
}

// GetReason returns the failure reason or an empty string.
func (r *CacheReplica) GetReason() string {
	if r.Reason == nil {
		return ""
	}
	return *r.Reason
}

// TaskReplica links one task to one cache replica.
type TaskReplica struct {
	TaskID    string `gorm:"primaryKey;size:36" json:"task_id"`
	ReplicaID string `gorm:"primaryKey;size:36;index" json:"replica_id"`
}

// TableName returns the table name for TaskReplica.
func (TaskReplica) TableName() string {
	return "task_replicas"
}

// ReplicaRef is a replica as seen by resolve: its id and the status it had
// when it was looked up.
type ReplicaRef struct {
	ID     string        `json:"id"`
	Status ReplicaStatus `json:"status"`
}

// ReplicaResolution carries catalog information learned for a New replica.
type ReplicaResolution struct {
	ReplicaID string `json:"replica_id"`
	PFN       string `json:"pfn"`
	Size      int64  `json:"size"`
	Checksum  string `json:"checksum,omitempty"`
	GUID      string `json:"guid,omitempty"`
}

// WaitingReplica is a replica eligible for stage submission together with
// the task that made it eligible.
type WaitingReplica struct {
	TaskID  string       `json:"task_id"`
	Replica CacheReplica `json:"replica"`
}
