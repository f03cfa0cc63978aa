package models

import (
	"fmt"
	"slices"
	"strings"
)

// TaskRequest is a caller's request to stage files, grouped by storage
// element.
type TaskRequest struct {
	Source       string              `json:"source"`
	CallbackID   string              `json:"callback_id"`
	SourceTaskID *string             `json:"source_task_id,omitempty"`
	Files        map[string][]string `json:"files"`
}

// Validate rejects requests that would create an empty or unnamed task.
func (r *TaskRequest) Validate() error {
	if strings.TrimSpace(r.Source) == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidArgument)
	}
	if len(r.Files) == 0 {
		return ErrEmptyRequest
	}
	for se, lfns := range r.Files {
		if strings.TrimSpace(se) == "" {
			return fmt.Errorf("%w: storage element name is empty", ErrInvalidArgument)
		}
		if len(lfns) == 0 {
			return fmt.Errorf("%w: no files for storage element %q", ErrEmptyRequest, se)
		}
		for _, lfn := range lfns {
			if strings.TrimSpace(lfn) == "" {
				return fmt.Errorf("%w: empty file name for storage element %q", ErrInvalidArgument, se)
			}
		}
	}
	return nil
}

// StorageElements returns the requested storage elements in sorted order.
func (r *TaskRequest) StorageElements() []string {
	ses := make([]string, 0, len(r.Files))
	for se := range r.Files {
		ses = append(ses, se)
	}
	slices.Sort(ses)
	return ses
}

// FileCount returns the number of requested files.
func (r *TaskRequest) FileCount() int {
	n := 0
	for _, lfns := range r.Files {
		n += len(lfns)
	}
	return n
}
