package model

import "time"

// TaskStatus is the state of a help request.
type TaskStatus string

const (
	TaskPending  TaskStatus = "PENDING"
	TaskAccepted TaskStatus = "ACCEPTED"
	TaskDone     TaskStatus = "DONE"
)

// Task is a help request posted by a user and accepted by at most one helper.
type Task struct {
	ID          uint64     // tasks.id
	RequesterID uint64     // tasks.requester_id
	HelperID    *uint64    // tasks.helper_id (nullable until accepted)
	Title       string     // tasks.title
	Content     string     // tasks.content
	Reward      int64      // tasks.reward
	Status      TaskStatus // tasks.status
	CreatedAt   time.Time  // tasks.created_at
}
