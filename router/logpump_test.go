package router

import "testing"

func TestParseStdoutLine_ValidJSON(t *testing.T) {
	ll := parseStdoutLine([]byte(`{"level":"WARN","fields":{"message":"hello"},"extra":true}`))
	if ll.Level != LogWarn || ll.Message != "hello" {
		t.Fatalf("unexpected parse result: %+v", ll)
	}
	if ll.Banner {
		t.Fatalf("did not expect a banner for a plain message")
	}
}

func TestParseStdoutLine_NonJSONSurfacedAsWarning(t *testing.T) {
	ll := parseStdoutLine([]byte("not json at all"))
	if ll.Level != LogWarn {
		t.Fatalf("expected non-JSON line to surface as WARN, got %+v", ll)
	}
	if ll.Message != "not json at all" {
		t.Fatalf("expected message to be the raw line, got %q", ll.Message)
	}
}

func TestParseStdoutLine_BannerExtractsURL(t *testing.T) {
	ll := parseStdoutLine([]byte(`{"level":"INFO","fields":{"message":"GraphQL endpoint exposed at http://127.0.0.1:4000/graphql over http"}}`))
	if !ll.Banner {
		t.Fatalf("expected banner to be detected")
	}
	if ll.URL != "http://127.0.0.1:4000/graphql" {
		t.Fatalf("expected extracted url, got %q", ll.URL)
	}
}

func TestExtractBannerURL_NoSchemeReturnsEmpty(t *testing.T) {
	if got := extractBannerURL("exposed at some non-url text"); got != "" {
		t.Fatalf("expected empty extraction when no scheme is present, got %q", got)
	}
}
