package domain

import (
	"strings"
	"testing"
)

func TestNewPost(t *testing.T) {
	post, err := NewPost(1, "hello world")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if post.ID != 0 {
		t.Errorf("Expected zero ID before insert, got %d", post.ID)
	}

	if post.UserID != 1 {
		t.Errorf("Expected user ID 1, got %d", post.UserID)
	}

	if post.Text != "hello world" {
		t.Errorf("Expected text %q, got %q", "hello world", post.Text)
	}

	if post.CreatedAt.IsZero() {
		t.Error("Expected non-zero CreatedAt time")
	}

	// Test missing owner
	_, err = NewPost(0, "hello world")
	if err != ErrEmptyPostUserID {
		t.Errorf("Expected error %v, got %v", ErrEmptyPostUserID, err)
	}

	// Test empty text
	_, err = NewPost(1, "")
	if err != ErrEmptyPostText {
		t.Errorf("Expected error %v, got %v", ErrEmptyPostText, err)
	}

	// Test text at and over the length limit
	_, err = NewPost(1, strings.Repeat("a", 512))
	if err != nil {
		t.Errorf("Expected 512-character text to be valid, got %v", err)
	}

	_, err = NewPost(1, strings.Repeat("a", 513))
	if err != ErrPostTextTooLong {
		t.Errorf("Expected error %v, got %v", ErrPostTextTooLong, err)
	}
}
