package realtime

// NotificationMessage is the change event published whenever a
// notification feed's denormalized counts move.
type NotificationMessage struct {
	Target      string `json:"target"`
	UnreadCount int    `json:"unread_count"`
	UnseenCount int    `json:"unseen_count"`
}
