package router

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/goccy/go-json"
)

// bannerNeedle is the substring that promotes a log line to a user-visible
// startup banner (spec.md §4.6: `a message matching "exposed at http" is
// promoted to a user-visible banner`).
const bannerNeedle = "exposed at http"

// rawLogLine is the router binary's own NDJSON shape (spec.md §6):
// `{ "level": "INFO|DEBUG|TRACE|WARN|ERROR", "fields": { "message": "..." }, ... }`.
type rawLogLine struct {
	Level  string `json:"level"`
	Fields struct {
		Message string `json:"message"`
	} `json:"fields"`
}

// pumpStdout scans r line by line, decoding each as router NDJSON and
// emitting a LogLine on out. Non-JSON lines are surfaced as WARN (spec.md
// §6: "non-JSON stdout lines are surfaced as warnings"). Returns when r is
// closed or ctx is cancelled.
func pumpStdout(ctx context.Context, r io.Reader, out chan<- LogLine) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		emitLogLine(ctx, out, parseStdoutLine(line))
	}
}

// pumpStderr scans r line by line, surfacing every non-empty line as an
// ERROR LogLine verbatim (spec.md §6: "stderr is surfaced as errors
// verbatim").
func pumpStderr(ctx context.Context, r io.Reader, out chan<- LogLine) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		emitLogLine(ctx, out, LogLine{Level: LogError, Message: line, Raw: line})
	}
}

func parseStdoutLine(line []byte) LogLine {
	var raw rawLogLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return LogLine{Level: LogWarn, Message: string(line), Raw: string(line)}
	}
	ll := LogLine{Level: LogLevel(raw.Level), Message: raw.Fields.Message, Raw: string(line)}
	if strings.Contains(ll.Message, bannerNeedle) {
		ll.Banner = true
		ll.URL = extractBannerURL(ll.Message)
	}
	return ll
}

// extractBannerURL returns the first `http://` or `https://` token in the
// banner message, up to whitespace or a quote and path included, or "" if
// there is none.
func extractBannerURL(message string) string {
	idx := strings.Index(message, "http://")
	if idx < 0 {
		idx = strings.Index(message, "https://")
	}
	if idx < 0 {
		return ""
	}
	rest := message[idx:]
	end := strings.IndexAny(rest, " \t\"'")
	if end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func emitLogLine(ctx context.Context, out chan<- LogLine, ll LogLine) {
	select {
	case out <- ll:
	case <-ctx.Done():
	}
}
