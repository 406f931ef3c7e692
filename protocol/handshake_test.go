package protocol

import "testing"

// Example from RFC 6455 section 1.3.
func TestComputeAcceptKeyMatchesRFCExample(t *testing.T) {
	got := ComputeAcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("ComputeAcceptKey() = %q, want %q", got, want)
	}
}
