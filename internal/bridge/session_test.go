package bridge

import "testing"

func TestSessionLifecycle(t *testing.T) {
	s := NewSession()

	if _, ok := s.Header(); ok {
		t.Fatal("new session should have no header")
	}

	// First issuance.
	s.Update("abc123")
	if sid, ok := s.Header(); !ok || sid != "abc123" {
		t.Fatalf("Header() = %q, %v after Update", sid, ok)
	}

	// Renewal replaces the token.
	s.Update("def456")
	if sid, _ := s.Header(); sid != "def456" {
		t.Errorf("Header() = %q after renewal, want def456", sid)
	}

	// Responses without the header leave it untouched.
	s.Update("")
	if sid, _ := s.Header(); sid != "def456" {
		t.Errorf("empty Update changed token to %q", sid)
	}

	// 404 path: cleared, next request omits the header.
	s.Clear()
	if _, ok := s.Header(); ok {
		t.Error("Header() still set after Clear")
	}

	// Re-issuance after a clear starts a fresh session.
	s.Update("ghi789")
	if sid, _ := s.Header(); sid != "ghi789" {
		t.Errorf("Header() = %q after re-issuance, want ghi789", sid)
	}
}

func TestSessionClearWhenEmpty(t *testing.T) {
	s := NewSession()
	s.Clear()
	if _, ok := s.Header(); ok {
		t.Error("Clear on empty session should stay empty")
	}
}
