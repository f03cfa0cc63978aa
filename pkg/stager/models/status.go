// Package models provides the persistent domain types of the staging
// coordinator.
//
// Tasks, cache replicas, their associations and stage requests are plain
// GORM models. Task and replica statuses are distinct string-backed types:
// the two vocabularies overlap in name but not in topology, and the only
// bridge between them is lifecycle.TaskStatusFor.
package models

import (
	"fmt"
	"strings"
)

// TaskStatus is the aggregate state of a client stage task.
type TaskStatus string

const (
	TaskNew             TaskStatus = "New"
	TaskWaiting         TaskStatus = "Waiting"
	TaskStageSubmitted  TaskStatus = "StageSubmitted"
	TaskStageCompleting TaskStatus = "StageCompleting"
	TaskDone            TaskStatus = "Done"
	TaskFailed          TaskStatus = "Failed"

	// TaskStaged marks a task whose every file was already staged when it was
	// submitted. It is terminal and only reachable from TaskNew.
	TaskStaged TaskStatus = "Staged"
)

// AllTaskStatuses lists task statuses in lifecycle order.
func AllTaskStatuses() []TaskStatus {
	return []TaskStatus{
		TaskNew, TaskWaiting, TaskStageSubmitted, TaskStageCompleting,
		TaskDone, TaskStaged, TaskFailed,
	}
}

// IsValid returns true if s is a known task status.
func (s TaskStatus) IsValid() bool {
	for _, v := range AllTaskStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no forward transition leaves s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskDone || s == TaskStaged || s == TaskFailed
}

// IsComplete reports whether the task's files are all available.
func (s TaskStatus) IsComplete() bool {
	return s == TaskDone || s == TaskStaged
}

func (s TaskStatus) String() string {
	return string(s)
}

// ParseTaskStatus parses a status name case-insensitively.
func ParseTaskStatus(name string) (TaskStatus, error) {
	for _, v := range AllTaskStatuses() {
		if strings.EqualFold(name, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: task status %q", ErrInvalidStatus, name)
}

// ReplicaStatus is the state of a single cache replica.
type ReplicaStatus string

const (
	ReplicaNew            ReplicaStatus = "New"
	ReplicaWaiting        ReplicaStatus = "Waiting"
	ReplicaStageSubmitted ReplicaStatus = "StageSubmitted"
	ReplicaStaged         ReplicaStatus = "Staged"
	ReplicaFailed         ReplicaStatus = "Failed"

	// ReplicaCancelled is set only by explicit cancellation and is never
	// produced by status propagation.
	ReplicaCancelled ReplicaStatus = "Cancelled"
)

// AllReplicaStatuses lists replica statuses in lifecycle order.
func AllReplicaStatuses() []ReplicaStatus {
	return []ReplicaStatus{
		ReplicaNew, ReplicaWaiting, ReplicaStageSubmitted, ReplicaStaged,
		ReplicaFailed, ReplicaCancelled,
	}
}

// IsValid returns true if s is a known replica status.
func (s ReplicaStatus) IsValid() bool {
	for _, v := range AllReplicaStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

func (s ReplicaStatus) String() string {
	return string(s)
}

// ParseReplicaStatus parses a status name case-insensitively.
func ParseReplicaStatus(name string) (ReplicaStatus, error) {
	for _, v := range AllReplicaStatuses() {
		if strings.EqualFold(name, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: replica status %q", ErrInvalidStatus, name)
}

// StageStatus is the state of a physical recall.
type StageStatus string

const (
	StageSubmitted StageStatus = "StageSubmitted"
	StageStaged    StageStatus = "Staged"
	StageFailed    StageStatus = "Failed"
)

// IsValid returns true if s is a known stage status.
func (s StageStatus) IsValid() bool {
	switch s {
	case StageSubmitted, StageStaged, StageFailed:
		return true
	default:
		return false
	}
}

func (s StageStatus) String() string {
	return string(s)
}

// ParseStageStatus parses a stage status name case-insensitively.
func ParseStageStatus(name string) (StageStatus, error) {
	for _, v := range []StageStatus{StageSubmitted, StageStaged, StageFailed} {
		if strings.EqualFold(name, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: stage status %q", ErrInvalidStatus, name)
}

// ReplicaKind is the purpose a cache replica was created for.
type ReplicaKind string

// KindStage is the only kind in use.
const KindStage ReplicaKind = "Stage"
