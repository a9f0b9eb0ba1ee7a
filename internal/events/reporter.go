// Package events accumulates detection reports and backlog entries
// during a plan run and flushes them to the user-facing summarizer.
package events

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hallgrim/golem/internal/notify"
	"github.com/hallgrim/golem/internal/plan"
)

// Level grades how loud a report is.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelAlert   Level = "alert"
)

// Detection is one observed world-state report (a scan result, a
// hostile sighting, an externally raised alert).
type Detection struct {
	Step    string    `json:"step,omitempty"`
	Summary string    `json:"summary"`
	Level   Level     `json:"level"`
	Time    time.Time `json:"time"`
}

// Reporter buffers detections and backlog entries until Flush. Backlog
// entries are never silently dropped: everything added is either
// flushed to the notifier or handed to recovery first.
type Reporter struct {
	notifier notify.Notifier
	logger   *slog.Logger

	mu         sync.Mutex
	detections []Detection
	backlog    []plan.BacklogEntry
}

// NewReporter creates a reporter over the given notifier.
func NewReporter(notifier notify.Notifier, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{notifier: notifier, logger: logger}
}

// AddDetection records a world-state report.
func (r *Reporter) AddDetection(step, summary string, level Level) {
	if level == "" {
		level = LevelInfo
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detections = append(r.detections, Detection{
		Step:    step,
		Summary: summary,
		Level:   level,
		Time:    time.Now(),
	})
}

// AddBacklog records deferred or unimplemented work.
func (r *Reporter) AddBacklog(entries ...plan.BacklogEntry) {
	if len(entries) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backlog = append(r.backlog, entries...)
}

// Detections returns a copy of the buffered detections.
func (r *Reporter) Detections() []Detection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Detection(nil), r.detections...)
}

// Backlog returns a copy of the buffered backlog.
func (r *Reporter) Backlog() []plan.BacklogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]plan.BacklogEntry(nil), r.backlog...)
}

// Flush renders everything buffered as one human summary, says it, and
// clears the buffers. A flush with nothing buffered says nothing.
func (r *Reporter) Flush() {
	r.mu.Lock()
	detections := r.detections
	backlog := r.backlog
	r.detections = nil
	r.backlog = nil
	r.mu.Unlock()

	if len(detections) == 0 && len(backlog) == 0 {
		return
	}

	var sb strings.Builder
	if len(detections) > 0 {
		sb.WriteString("What I noticed:\n")
		for _, d := range detections {
			fmt.Fprintf(&sb, "- %s\n", d.Summary)
		}
	}
	if len(backlog) > 0 {
		sb.WriteString("Still on my list:\n")
		for _, b := range backlog {
			fmt.Fprintf(&sb, "- %s\n", b.String())
		}
	}

	r.logger.Info("flushing run reports",
		"detections", len(detections),
		"backlog", len(backlog))
	r.notifier.Say(strings.TrimRight(sb.String(), "\n"))
}
