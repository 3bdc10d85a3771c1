package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBackupCreate snapshots the database.
	TaskBackupCreate = "backup:create"
	// TaskBackupPrune removes backups beyond the retention count.
	TaskBackupPrune = "backup:prune"
	// TaskReportFinalize finalizes a daily balance report as the scheduler.
	TaskReportFinalize = "report:finalize"
)

// BackupPayload carries the correlation id of a backup run.
type BackupPayload struct {
	RequestID string `json:"request_id,omitempty"`
}

// FinalizePayload selects the report to finalize. An empty date means the
// day before the task runs.
type FinalizePayload struct {
	Date string `json:"date,omitempty"`
}

// NewBackupTask constructs a backup:create task.
func NewBackupTask(requestID string) (*asynq.Task, error) {
	return newTask(TaskBackupCreate, BackupPayload{RequestID: requestID})
}

// NewPruneTask constructs a backup:prune task.
func NewPruneTask() (*asynq.Task, error) {
	return newTask(TaskBackupPrune, BackupPayload{})
}

// NewFinalizeTask constructs a report:finalize task. A zero date defers the
// choice of day to the handler.
func NewFinalizeTask(date time.Time) (*asynq.Task, error) {
	payload := FinalizePayload{}
	if !date.IsZero() {
		payload.Date = date.Format("2006-01-02")
	}
	return newTask(TaskReportFinalize, payload)
}

// NewTaskByName builds a task with its default payload.
func NewTaskByName(name string) (*asynq.Task, error) {
	switch name {
	case TaskBackupCreate:
		return NewBackupTask("")
	case TaskBackupPrune:
		return NewPruneTask()
	case TaskReportFinalize:
		return NewFinalizeTask(time.Time{})
	default:
		return nil, fmt.Errorf("jobs: unsupported task %s", name)
	}
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, body, asynq.Queue(QueueDefault)), nil
}
