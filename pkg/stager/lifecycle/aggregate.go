package lifecycle

import (
	"slices"

	"github.com/marmos91/stager/pkg/stager/models"
)

// progression is the forward path every task walks through one step at a
// time. Failed and Staged sit outside of it.
var progression = []models.TaskStatus{
	models.TaskNew,
	models.TaskWaiting,
	models.TaskStageSubmitted,
	models.TaskStageCompleting,
	models.TaskDone,
}

func rank(s models.TaskStatus) int {
	return slices.Index(progression, s)
}

// TaskStatusFor maps a replica status onto the task vocabulary. A staged
// replica is done from the point of view of a task, and a cancelled one can
// never satisfy it.
func TaskStatusFor(s models.ReplicaStatus) models.TaskStatus {
	switch s {
	case models.ReplicaNew:
		return models.TaskNew
	case models.ReplicaWaiting:
		return models.TaskWaiting
	case models.ReplicaStageSubmitted:
		return models.TaskStageSubmitted
	case models.ReplicaStaged:
		return models.TaskDone
	case models.ReplicaFailed, models.ReplicaCancelled:
		return models.TaskFailed
	default:
		return models.TaskNew
	}
}

// DeriveTaskStatus computes the status a task should have given the current
// status of all of its replicas.
//
// Any failed replica fails the task. Otherwise the task is as far along as
// its least advanced replica, except that a task whose replicas are all
// submitted and some already staged is StageCompleting.
func DeriveTaskStatus(replicas []models.ReplicaStatus) models.TaskStatus {
	if len(replicas) == 0 {
		return models.TaskNew
	}

	lowest, highest := len(progression)-1, 0
	for _, rs := range replicas {
		ts := TaskStatusFor(rs)
		if ts == models.TaskFailed {
			return models.TaskFailed
		}
		r := rank(ts)
		lowest = min(lowest, r)
		highest = max(highest, r)
	}

	if progression[lowest] == models.TaskStageSubmitted && progression[highest] == models.TaskDone {
		return models.TaskStageCompleting
	}
	return progression[lowest]
}

// Path returns the statuses a task must pass through to get from one status
// to another, each step permitted by the task table. It returns nil when to
// is not ahead of from.
func Path(from, to models.TaskStatus) []models.TaskStatus {
	if from == to {
		return nil
	}
	if to == models.TaskFailed || to == models.TaskStaged {
		if Allowed(from, to) {
			return []models.TaskStatus{to}
		}
		return nil
	}

	fi, ti := rank(from), rank(to)
	if fi < 0 || ti < 0 || ti <= fi {
		return nil
	}
	return slices.Clone(progression[fi+1 : ti+1])
}
