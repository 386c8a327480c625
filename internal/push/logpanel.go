package push

import "time"

// LogPanelCap is the number of lines the log panel keeps.
const LogPanelCap = 30

// LogEntry is one line of the log panel.
type LogEntry struct {
	At      time.Time
	Message string
}

// Timestamp renders At as UTC RFC 3339 with milliseconds.
func (e LogEntry) Timestamp() string {
	return e.At.UTC().Format("2006-01-02T15:04:05.000Z")
}

// String renders the entry as shown in the panel.
func (e LogEntry) String() string {
	return e.Timestamp() + " " + e.Message
}

// LogPanel keeps the newest log lines, oldest first.
type LogPanel struct {
	entries []LogEntry
	limit   int
}

// NewLogPanel creates a panel holding at most limit lines.
func NewLogPanel(limit int) *LogPanel {
	if limit <= 0 {
		limit = LogPanelCap
	}
	return &LogPanel{limit: limit}
}

// Add appends a line, dropping the oldest when full.
func (p *LogPanel) Add(at time.Time, message string) {
	p.entries = append(p.entries, LogEntry{At: at, Message: message})
	if over := len(p.entries) - p.limit; over > 0 {
		p.entries = append(p.entries[:0], p.entries[over:]...)
	}
}

// Entries returns a copy of the lines, oldest first.
func (p *LogPanel) Entries() []LogEntry {
	return append([]LogEntry(nil), p.entries...)
}

// Len returns the number of lines held.
func (p *LogPanel) Len() int { return len(p.entries) }
