package models

import "time"

// StageRequest records the physical recall issued for a cache replica.
type StageRequest struct {
	ReplicaID     string      `gorm:"primaryKey;size:36" json:"replica_id"`
	StageStatus   StageStatus `gorm:"not null;size:32;index;default:StageSubmitted" json:"stage_status"`
	RequestID     string      `gorm:"column:request_id;not null;size:255;index" json:"request_id"`
	SubmitTime    time.Time   `gorm:"not null" json:"submit_time"`
	CompleteTime  *time.Time  `json:"complete_time,omitempty"`
	PinLength     int64       `gorm:"not null;default:0" json:"pin_length"`
	PinExpiryTime *time.Time  `json:"pin_expiry_time,omitempty"`
}

// TableName returns the table name for StageRequest.
func (StageRequest) TableName() string {
	return "stage_requests"
}

// PinLifetime returns the requested pin length as a duration.
func (r *StageRequest) PinLifetime() time.Duration {
	return time.Duration(r.PinLength) * time.Second
}

// Pinned reports whether the recalled copy is still protected at now.
// A request that has not completed yet counts as pinned.
func (r *StageRequest) Pinned(now time.Time) bool {
	if r.StageStatus == StageFailed {
		return false
	}
	return r.PinExpiryTime == nil || r.PinExpiryTime.After(now)
}

// PinUsage aggregates pinned replicas of one storage element.
type PinUsage struct {
	StorageElement string `json:"storage_element"`
	Replicas       int64  `json:"replicas"`
	TotalSize      int64  `json:"total_size"`
}
