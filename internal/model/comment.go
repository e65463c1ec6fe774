package model

import "time"

// Comment is a free-text reply attached to a supply post or a task.
type Comment struct {
	ID         uint64
	ParentID   uint64 // supply_comments.post_id or task_comments.task_id
	UserID     uint64
	AuthorName string // filled by list queries
	Content    string
	CreatedAt  time.Time
}
