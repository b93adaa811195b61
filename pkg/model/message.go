package model

// Message is one entry in a user's message queue. IDs are store-assigned
// and strictly positive once persisted; a negative ID marks a message that
// has been created in the cache but not yet durably inserted (§3's
// invariant: id < 0 ⇔ isPending).
type Message struct {
	ID          int64
	RecipientID int64
	CreatedAtMs int64
	IsRead      bool
	Text        string
	IsPending   bool
}
