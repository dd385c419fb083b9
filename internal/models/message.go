package models

import (
	"errors"
	"time"
)

var (
	// ErrMalformedMessage marks records missing required fields.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrNotParticipant marks records that do not involve the scoped
	// user exactly once (sender==receiver, or neither side matches).
	ErrNotParticipant = errors.New("user is not exactly one participant")
)

// Message is the canonical chat message record. Immutable once
// created except for the Viewed flag, which the receiver's client
// flips to true.
type Message struct {
	ID         string    `bson:"_id" json:"id"`
	SenderID   string    `bson:"sender_id" json:"sender_id"`
	ReceiverID string    `bson:"receiver_id" json:"receiver_id"`
	Content    string    `bson:"content" json:"content"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
	Viewed     bool      `bson:"viewed" json:"viewed"`
}

// PartnerOf returns the other participant of the conversation relative
// to userID. Exactly one of sender/receiver must equal userID.
func (m *Message) PartnerOf(userID string) (string, error) {
	if m.ID == "" || m.SenderID == "" || m.ReceiverID == "" {
		return "", ErrMalformedMessage
	}
	sent := m.SenderID == userID
	received := m.ReceiverID == userID
	if sent == received {
		return "", ErrNotParticipant
	}
	if sent {
		return m.ReceiverID, nil
	}
	return m.SenderID, nil
}

// Inbound reports whether the message was sent to userID.
func (m *Message) Inbound(userID string) bool {
	return m.ReceiverID == userID
}
