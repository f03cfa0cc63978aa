package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseTaskStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    TaskStatus
		wantErr bool
	}{
		{"New", TaskNew, false},
		{"waiting", TaskWaiting, false},
		{"STAGECOMPLETING", TaskStageCompleting, false},
		{"Staged", TaskStaged, false},
		{"Cancelled", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTaskStatus(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidStatus) {
					t.Fatalf("ParseTaskStatus(%q) error = %v, want ErrInvalidStatus", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTaskStatus(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTaskStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseReplicaStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    ReplicaStatus
		wantErr bool
	}{
		{"Cancelled", ReplicaCancelled, false},
		{"stagesubmitted", ReplicaStageSubmitted, false},
		{"StageCompleting", "", true},
		{"Done", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseReplicaStatus(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseReplicaStatus(%q) expected error", tt.input)
				}
				if !IsValidationError(err) {
					t.Errorf("ParseReplicaStatus(%q) error should be a validation error", tt.input)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseReplicaStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
		complete bool
	}{
		{TaskNew, false, false},
		{TaskStageCompleting, false, false},
		{TaskDone, true, true},
		{TaskStaged, true, true},
		{TaskFailed, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.status.IsComplete(); got != tt.complete {
				t.Errorf("IsComplete() = %v, want %v", got, tt.complete)
			}
		})
	}
}

func TestStageRequest_Pinned(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		req  StageRequest
		want bool
	}{
		{"in flight", StageRequest{StageStatus: StageSubmitted}, true},
		{"expired", StageRequest{StageStatus: StageStaged, PinExpiryTime: &past}, false},
		{"still pinned", StageRequest{StageStatus: StageStaged, PinExpiryTime: &future}, true},
		{"failed", StageRequest{StageStatus: StageFailed}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.Pinned(now); got != tt.want {
				t.Errorf("Pinned() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStageRequest_PinLifetime(t *testing.T) {
	req := StageRequest{PinLength: 86400}
	if got := req.PinLifetime(); got != 24*time.Hour {
		t.Errorf("PinLifetime() = %v, want 24h", got)
	}
}
