package logparse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parsePayload parses the embedded JSON payload of a scan line. On failure
// it makes exactly one repair attempt (close a missing brace, strip bytes
// that can never appear in the terminal's payloads) and retries. The repair
// is lossy by construction, so the repaired flag is surfaced on the event.
func parsePayload(text string) (map[string]interface{}, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false, fmt.Errorf("empty payload")
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(text), &payload); err == nil {
		return payload, false, nil
	}

	repairedText := repairJSON(text)
	if err := json.Unmarshal([]byte(repairedText), &payload); err != nil {
		return nil, false, fmt.Errorf("payload unparseable after repair: %w", err)
	}
	return payload, true, nil
}

// repairJSON applies the best-effort fixups for the malformed payloads the
// terminal is known to emit: truncated objects missing the closing brace,
// and stray control bytes spliced into the line.
func repairJSON(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 1)

	depth := 0
	for i := 0; i < len(text); i++ {
		ch := text[i]
		// Strip control bytes only; multibyte text in payload values
		// must survive the repair.
		if (ch < 0x20 && ch != '\t') || ch == 0x7f {
			continue
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
		}
		b.WriteByte(ch)
	}

	for ; depth > 0; depth-- {
		b.WriteByte('}')
	}
	return b.String()
}
