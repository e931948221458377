package app

import (
	"strings"
	"testing"
)

func TestTraceQuery(t *testing.T) {
	got := traceQuery(" SELECT payload_hash\n  FROM raw_feed_payloads \t WHERE endpoint = $1 ")
	want := "SELECT payload_hash FROM raw_feed_payloads WHERE endpoint = $1"
	if got != want {
		t.Fatalf("unexpected traced query: %q", got)
	}
}

func TestTraceQueryTruncates(t *testing.T) {
	long := "INSERT INTO raw_feed_payloads VALUES " + strings.Repeat("($1, $2), ", 100)

	got := traceQuery(long)
	if len(got) != maxTracedQuerySize+len("...") {
		t.Fatalf("expected truncated length %d, got %d", maxTracedQuerySize+3, len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got[len(got)-10:])
	}
}
