// Package genstats derives timing and throughput metrics from timestamped
// token arrival events during a generation.
package genstats

import (
	"math"
	"time"

	"llamadeskd/pkg/types"
)

// Stop reasons reported when the caller does not supply one.
const (
	StopReasonEOS       = "EOS Token Found"
	StopReasonNoTokens  = "No tokens generated"
	StopReasonCancelled = "Cancelled by user"
	StopReasonConnError = "Connection Error"
)

// charsPerToken is the rough chars-to-tokens estimate applied per delta until
// the server reports an authoritative completion token count.
const charsPerToken = 0.75

// Tracker records token arrival instants for one generation. It moves from
// idle to running on Start and produces immutable stats on Finalize. All
// methods are total; events before Start are ignored.
type Tracker struct {
	now func() time.Time

	started        bool
	startTime      time.Time
	firstTokenTime time.Time
	hasFirstToken  bool
	lastTokenTime  time.Time

	estimatedTokens   int
	reportedTokens    int
	hasReportedTokens bool
}

// NewTracker returns an idle tracker using the wall clock.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Start transitions the tracker to running.
func (t *Tracker) Start() {
	t.startTime = t.now()
	t.started = true
}

// AddDelta records the arrival of a content fragment, estimating its token
// count as ceil(chars * 0.75).
func (t *Tracker) AddDelta(content string) {
	if !t.started || content == "" {
		return
	}
	now := t.now()
	if !t.hasFirstToken {
		t.firstTokenTime = now
		t.hasFirstToken = true
	}
	t.lastTokenTime = now
	t.estimatedTokens += int(math.Ceil(float64(len([]rune(content))) * charsPerToken))
}

// SetCompletionTokens records an authoritative token count from the server,
// which overwrites (not accumulates with) the running estimate.
func (t *Tracker) SetCompletionTokens(n int) {
	if n < 0 {
		return
	}
	t.reportedTokens = n
	t.hasReportedTokens = true
}

// TokenCount returns the best current token count.
func (t *Tracker) TokenCount() int {
	if t.hasReportedTokens {
		return t.reportedTokens
	}
	return t.estimatedTokens
}

// Finalize computes the stats for the run. stopReason overrides the derived
// reason when non-empty. The second return is false when Start was never
// called; callers must check it before display.
func (t *Tracker) Finalize(stopReason string) (types.GenerationStats, bool) {
	if !t.started {
		return types.GenerationStats{}, false
	}
	now := t.now()
	totalTime := now.Sub(t.startTime).Seconds()
	timeToFirst := 0.0
	if t.hasFirstToken {
		timeToFirst = t.firstTokenTime.Sub(t.startTime).Seconds()
	}
	generationTime := totalTime - timeToFirst
	tokens := t.TokenCount()
	tps := 0.0
	if generationTime > 0 {
		tps = float64(tokens) / generationTime
	}
	if stopReason == "" {
		if tokens > 0 {
			stopReason = StopReasonEOS
		} else {
			stopReason = StopReasonNoTokens
		}
	}
	return types.GenerationStats{
		TokensPerSecond:         tps,
		TotalTokens:             tokens,
		TimeToFirstTokenSeconds: timeToFirst,
		StopReason:              stopReason,
	}, true
}
