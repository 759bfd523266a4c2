package scheduler

import (
	"github.com/hibiken/asynq"
)

// TaskEventRebind recomputes every ticket's winter event binding. The task
// carries no payload: the rebind pass always runs against the current set
// of storm windows, so coalesced deliveries are harmless.
const TaskEventRebind = "winterevents.rebind"

func NewEventRebindTask() *asynq.Task {
	return asynq.NewTask(TaskEventRebind, nil)
}
