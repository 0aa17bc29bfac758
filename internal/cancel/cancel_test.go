package cancel

import "testing"

func TestCancelPropagatesToToken(t *testing.T) {
	source, token := New()
	if token.IsCancelled() {
		t.Fatalf("expected fresh token to not be cancelled")
	}
	source.Cancel()
	if !token.IsCancelled() {
		t.Fatalf("expected token to observe cancellation")
	}
	if !source.IsCancelled() {
		t.Fatalf("expected source to report itself cancelled")
	}
}

func TestCancelIsSticky(t *testing.T) {
	source, token := New()
	source.Cancel()
	source.Cancel()
	if !token.IsCancelled() {
		t.Fatalf("expected repeated cancel to remain cancelled")
	}
}

func TestZeroValueTokenIsNotCancelled(t *testing.T) {
	var token Token
	if token.IsCancelled() {
		t.Fatalf("expected zero-value token to report not cancelled")
	}
}
