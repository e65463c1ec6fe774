// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

// Routing keys on the supply.events exchange.
const (
	Exchange             = "supply.events"
	RoutingJoined        = "supply.joined"
	RoutingStatusChanged = "supply.status_changed"
)

// SupplyJoinedEvent is published after a join commits, both for new
// participations and for idempotent re-joins.
type SupplyJoinedEvent struct {
	EventID         string `json:"event_id"`
	PostID          uint64 `json:"post_id"`
	ParticipationID uint64 `json:"participation_id"`
	UserID          uint64 `json:"user_id"`
	UnitAmount      int64  `json:"unit_amount"`
	Created         bool   `json:"created"`
	JoinedAt        string `json:"joined_at"`
}

// SupplyStatusChangedEvent is published whenever a post's status is
// written, including lazy EXPIRED and FILLED transitions that accompany a
// failed join.
type SupplyStatusChangedEvent struct {
	EventID   string `json:"event_id"`
	PostID    uint64 `json:"post_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Reason    string `json:"reason"`
	ChangedAt string `json:"changed_at"`
}
