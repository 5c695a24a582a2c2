package model

// Conversation is the derived grouping of all messages between the querying
// user and one partner. It is materialized on demand, never persisted.
type Conversation struct {
	PartnerKey   string   `json:"partnerKey"`
	LastMessage  *Message `json:"lastMessage"`
	MessageCount int64    `json:"messageCount"`
	UnreadCount  int64    `json:"unreadCount"`
}
