// Package lifecycle holds the transition tables for tasks and cache replicas
// and the rules that derive a task's status from its replicas.
//
// Both tables go through the same validator so that every caller, whether a
// store query building its precondition or a handler checking input, sees
// one definition of what is permitted.
package lifecycle

import (
	"fmt"
	"slices"

	"github.com/marmos91/stager/pkg/stager/models"
)

// Status is implemented by the two status vocabularies.
type Status interface {
	models.TaskStatus | models.ReplicaStatus
}

// table maps a target status to the statuses it may be entered from.
type table[S Status] map[S][]S

func (t table[S]) allowed(from, to S) bool {
	return slices.Contains(t[to], from)
}

// allExcept returns every status of all except the listed ones.
func allExcept[S Status](all []S, except ...S) []S {
	out := make([]S, 0, len(all))
	for _, s := range all {
		if !slices.Contains(except, s) {
			out = append(out, s)
		}
	}
	return out
}

var replicaTable = table[models.ReplicaStatus]{
	models.ReplicaWaiting:        {models.ReplicaNew},
	models.ReplicaStageSubmitted: {models.ReplicaWaiting},
	models.ReplicaStaged:         {models.ReplicaStageSubmitted},
	models.ReplicaFailed: allExcept(models.AllReplicaStatuses(),
		models.ReplicaFailed, models.ReplicaCancelled),
	// Cancelled has no entry: it is never the target of a transition.
}

var taskTable = table[models.TaskStatus]{
	models.TaskWaiting:         {models.TaskNew},
	models.TaskStageSubmitted:  {models.TaskWaiting},
	models.TaskStageCompleting: {models.TaskStageSubmitted},
	models.TaskDone:            {models.TaskStageCompleting},
	models.TaskStaged:          {models.TaskNew},
	models.TaskFailed:          allExcept(models.AllTaskStatuses(), models.TaskFailed),
}

// Predecessors returns the statuses from which to may be entered. The
// result never contains to itself and must not be modified.
func Predecessors[S Status](to S) []S {
	switch v := any(to).(type) {
	case models.TaskStatus:
		return any(taskTable[v]).([]S)
	case models.ReplicaStatus:
		return any(replicaTable[v]).([]S)
	}
	return nil
}

// Allowed reports whether a record may move from one status to another.
func Allowed[S Status](from, to S) bool {
	switch f := any(from).(type) {
	case models.TaskStatus:
		return taskTable.allowed(f, any(to).(models.TaskStatus))
	case models.ReplicaStatus:
		return replicaTable.allowed(f, any(to).(models.ReplicaStatus))
	}
	return false
}

// Validate returns ErrInvalidTransition when from -> to is not permitted.
func Validate[S Status](from, to S) error {
	if !Allowed(from, to) {
		return fmt.Errorf("%w: %v -> %v", models.ErrInvalidTransition, from, to)
	}
	return nil
}

// IsStatusTarget reports whether any transition leads into to. Statuses
// such as New are only ever assigned at creation.
func IsStatusTarget[S Status](to S) bool {
	return len(Predecessors(to)) > 0
}
