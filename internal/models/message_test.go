package models

import (
	"errors"
	"testing"
	"time"
)

func TestPartnerOf(t *testing.T) {
	base := Message{ID: "m1", Content: "hi", Timestamp: time.Now()}

	tests := []struct {
		name     string
		sender   string
		receiver string
		want     string
		wantErr  error
	}{
		{name: "inbound", sender: "A", receiver: "U", want: "A"},
		{name: "outbound", sender: "U", receiver: "A", want: "A"},
		{name: "self message", sender: "U", receiver: "U", wantErr: ErrNotParticipant},
		{name: "foreign message", sender: "A", receiver: "B", wantErr: ErrNotParticipant},
		{name: "missing sender", sender: "", receiver: "U", wantErr: ErrMalformedMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base
			m.SenderID, m.ReceiverID = tt.sender, tt.receiver
			got, err := m.PartnerOf("U")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("PartnerOf() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("PartnerOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPartnerOfMissingID(t *testing.T) {
	m := Message{SenderID: "A", ReceiverID: "U"}
	if _, err := m.PartnerOf("U"); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
}
