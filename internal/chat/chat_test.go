package chat

import (
	"testing"
)

func TestNewTurn_RejectsEmpty(t *testing.T) {
	_, err := NewTurn(RoleUser, nil)
	if err != ErrEmptyTurn {
		t.Errorf("Expected ErrEmptyTurn, got %v", err)
	}
}

func TestNewTurn_SetsFields(t *testing.T) {
	turn, err := NewTurn(RoleUser, []Part{TextPart("hello")})
	if err != nil {
		t.Fatalf("NewTurn failed: %v", err)
	}
	if turn.ID == "" {
		t.Error("Expected generated turn ID")
	}
	if turn.Role != RoleUser {
		t.Errorf("Expected user role, got %s", turn.Role)
	}
	if turn.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}

func TestPart_IsMedia(t *testing.T) {
	cases := []struct {
		name string
		part Part
		want bool
	}{
		{"text", TextPart("hi"), false},
		{"image", BlobPart("image/png", "AAAA"), false},
		{"audio", BlobPart("audio/mp3", "AAAA"), true},
		{"video", BlobPart("video/mp4", "AAAA"), true},
	}
	for _, tc := range cases {
		if got := tc.part.IsMedia(); got != tc.want {
			t.Errorf("%s: IsMedia() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTurn_FirstText(t *testing.T) {
	turn, _ := NewTurn(RoleUser, []Part{
		BlobPart("image/png", "AAAA"),
		TextPart("caption"),
	})
	if got := turn.FirstText(); got != "caption" {
		t.Errorf("Expected 'caption', got %q", got)
	}

	blobOnly, _ := NewTurn(RoleUser, []Part{BlobPart("image/png", "AAAA")})
	if got := blobOnly.FirstText(); got != "" {
		t.Errorf("Expected empty string, got %q", got)
	}
}
