package logparse

import (
	"regexp"
	"strings"
	"time"

	"gatewatch/pkg/models"

	"go.uber.org/zap"
)

// Line markers written by the port scanning terminal.
const (
	markerCenterResponse = "center response:"
	markerResponseText   = "response text:"
	markerSuccessCode    = "response code: 200"
	markerFtp            = "**FTP**"
	markerUpload         = "UPLOAD"
	markerUploadTo       = "---TO:"
	markerUploadFrom     = "---FROM:"
)

// defaultUploadIP is assumed when an upload line carries no ---TO: target;
// the terminal only ever ships images to its paired scanner head.
const defaultUploadIP = "10.226.62.31"

const defaultUploadFile = "Unknown file"

// timestampPattern matches the terminal's line prefix, with or without the
// millisecond part: "2024-01-15 10:22:05,123".
var timestampPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})(?:,(\d{3}))?`)

// connectionKeywords mark FTP session chatter that is wrapped verbatim.
var connectionKeywords = []string{
	"login", "logout", "connected", "disconnected", "ftp connection",
}

// imageExtensions the upload notices reference.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff"}

// rule is one predicate+extractor evaluated in priority order. It returns
// (event, true) when the line belongs to it; a matched rule may still return
// a nil event to skip the line (irreparable scan payloads).
type rule func(line string, ts time.Time) (*models.LogEvent, bool)

// Classifier turns raw operational log lines into typed events. It is total:
// any input yields at most one event and never an error.
type Classifier struct {
	logger *zap.Logger
	rules  []rule
}

// NewClassifier creates a classifier with the standard rule chain:
// scan confirmation, FTP upload, connection chatter, then the system default.
func NewClassifier(logger *zap.Logger) *Classifier {
	c := &Classifier{logger: logger}
	c.rules = []rule{
		c.classifyScan,
		c.classifyUpload,
		c.classifyConnection,
	}
	return c
}

// Classify maps one raw line to its event variant. The fallback timestamp is
// used when the line carries no parseable time prefix. A nil return means
// the line matched the scan rule but its payload could not be repaired; such
// lines are expected and must not abort the stream.
func (c *Classifier) Classify(line string, fallback time.Time) *models.LogEvent {
	ts := extractTimestamp(line, fallback)

	for _, r := range c.rules {
		if ev, ok := r(line, ts); ok {
			return ev
		}
	}

	// Everything else is kept for audit but never actioned.
	return &models.LogEvent{
		Type:      models.EventSystem,
		Timestamp: ts,
		RawLine:   line,
	}
}

// classifyScan handles center-response confirmations. Upload lines can also
// contain the word "response", so the upload marker explicitly disqualifies.
func (c *Classifier) classifyScan(line string, ts time.Time) (*models.LogEvent, bool) {
	if !strings.Contains(line, markerCenterResponse) ||
		!strings.Contains(line, markerSuccessCode) ||
		!strings.Contains(line, markerResponseText) ||
		strings.Contains(line, markerFtp) {
		return nil, false
	}

	scanID := tokenAfter(line, markerCenterResponse)

	payloadText := jsonBlockAfter(line, markerResponseText)
	payload, repaired, err := parsePayload(payloadText)
	if err != nil {
		c.logger.Warn("Dropping scan line with irreparable payload",
			zap.String("scan_id", scanID),
			zap.Error(err))
		return nil, true
	}

	return &models.LogEvent{
		Type:       models.EventScan,
		Timestamp:  ts,
		RawLine:    line,
		ScanID:     scanID,
		ResultCode: "200",
		Payload:    payload,
		Repaired:   repaired,
	}, true
}

// classifyUpload handles file-transfer notices.
func (c *Classifier) classifyUpload(line string, ts time.Time) (*models.LogEvent, bool) {
	if !strings.Contains(line, markerFtp) || !strings.Contains(line, markerUpload) {
		return nil, false
	}

	ip := defaultUploadIP
	if after, ok := cutAfter(line, markerUploadTo); ok {
		if end := strings.IndexAny(after, `\/ `); end > 0 {
			ip = after[:end]
		} else if end < 0 && after != "" {
			ip = after
		}
	}

	file := defaultUploadFile
	if after, ok := cutAfter(line, markerUploadFrom); ok {
		if name := trailingImageName(after); name != "" {
			file = name
		}
	}

	return &models.LogEvent{
		Type:       models.EventFtpUpload,
		Timestamp:  ts,
		RawLine:    line,
		UploadIP:   ip,
		UploadFile: file,
	}, true
}

// classifyConnection wraps session chatter verbatim.
func (c *Classifier) classifyConnection(line string, ts time.Time) (*models.LogEvent, bool) {
	lower := strings.ToLower(line)
	for _, kw := range connectionKeywords {
		if strings.Contains(lower, kw) {
			return &models.LogEvent{
				Type:      models.EventConnection,
				Timestamp: ts,
				RawLine:   line,
			}, true
		}
	}
	return nil, false
}

// extractTimestamp parses the leading time prefix shared by all variants.
func extractTimestamp(line string, fallback time.Time) time.Time {
	m := timestampPattern.FindStringSubmatch(line)
	if m == nil {
		return fallback
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", m[1], time.Local)
	if err != nil {
		return fallback
	}
	if m[2] != "" {
		// Millisecond suffix after the comma.
		ms := int(m[2][0]-'0')*100 + int(m[2][1]-'0')*10 + int(m[2][2]-'0')
		ts = ts.Add(time.Duration(ms) * time.Millisecond)
	}
	return ts
}

// tokenAfter extracts the token following a marker, up to the next comma or
// whitespace.
func tokenAfter(line, marker string) string {
	after, ok := cutAfter(line, marker)
	if !ok {
		return ""
	}
	after = strings.TrimLeft(after, " ")
	if end := strings.IndexAny(after, ", \t"); end >= 0 {
		return after[:end]
	}
	return after
}

func cutAfter(s, marker string) (string, bool) {
	idx := strings.Index(s, marker)
	if idx < 0 {
		return "", false
	}
	return s[idx+len(marker):], true
}

// jsonBlockAfter finds the balanced-looking {...} substring following the
// marker. Balance tracking is byte-level and ignores string escapes; the
// repair pass covers the cases where that is wrong.
func jsonBlockAfter(line, marker string) string {
	after, ok := cutAfter(line, marker)
	if !ok {
		return ""
	}
	start := strings.Index(after, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(after); i++ {
		switch after[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return after[start : i+1]
			}
		}
	}
	// Never balanced: take the rest and let the repair pass close it.
	return after[start:]
}

// trailingImageName returns the last path segment of a Windows or POSIX
// path when it carries a known image extension.
func trailingImageName(path string) string {
	path = strings.TrimSpace(path)
	if end := strings.IndexAny(path, " \t"); end >= 0 {
		path = path[:end]
	}
	if idx := strings.LastIndexAny(path, `\/`); idx >= 0 {
		path = path[idx+1:]
	}
	lower := strings.ToLower(path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return path
		}
	}
	return ""
}
