package models

import "time"

// ConversationSummary is the derived per-partner view shown in the
// inbox: latest message, unread total, and the partner's display info.
// It is fully recomputable from the message set; Partner points into
// the resolver cache and may be a placeholder until resolution lands.
type ConversationSummary struct {
	PartnerID            string           `json:"partner_id"`
	LastMessageContent   string           `json:"last_message_content"`
	LastMessageTimestamp time.Time        `json:"last_message_timestamp"`
	UnreadCount          int              `json:"unread_count"`
	Partner              *PartnerMetadata `json:"partner"`
}
