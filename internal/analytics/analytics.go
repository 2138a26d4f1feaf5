// Package analytics records RAG queries, detects recurring unanswered
// questions and aggregates dashboard statistics.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spigell/talentcore/internal/logger"
	"github.com/spigell/talentcore/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Classification of a RAG exchange.
type Classification string

const (
	Unanswered      Classification = "UNANSWERED"
	AnsweredPartial Classification = "ANSWERED_PARTIAL"
	AnsweredFull    Classification = "ANSWERED_FULL"
	PurchaseIntent  Classification = "PURCHASE_INTENT"
	Error           Classification = "ERROR"
)

// GapClassifications are the outcomes that count towards a content gap.
var GapClassifications = []Classification{Unanswered, AnsweredPartial}

var ErrInvalidPeriod = errors.New("invalid period")

// Entry is one append-only query log record.
type Entry struct {
	ID             string         `json:"id"`
	QueryText      string         `json:"query_text"`
	QueryHash      string         `json:"query_hash"`
	TenantID       *int64         `json:"tenant_id,omitempty"`
	Classification Classification `json:"classification"`
	Confidence     float64        `json:"confidence"`
	ResponseTimeMs int64          `json:"response_time_ms"`
	SourcesCount   int            `json:"sources_count"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Store persists query log entries. A nil tenant selects anonymous entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	CountSince(ctx context.Context, hash string, tenantID *int64, classes []Classification, since time.Time) (int, error)
	ListSince(ctx context.Context, tenantID *int64, since time.Time) ([]Entry, error)
}

// GapSignal reports a recurring poorly answered query.
type GapSignal struct {
	QueryHash   string        `json:"query_hash"`
	SampleQuery string        `json:"sample_query"`
	TenantID    *int64        `json:"tenant_id,omitempty"`
	Count       int           `json:"count"`
	Window      time.Duration `json:"window"`
	DetectedAt  time.Time     `json:"detected_at"`
}

// GapNotifier receives content gap signals.
type GapNotifier interface {
	NotifyGap(ctx context.Context, signal GapSignal) error
}

// LogNotifier reports gaps as warnings.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named(log, "content-gap")}
}

func (n *LogNotifier) NotifyGap(_ context.Context, signal GapSignal) error {
	n.logger.Warn("content gap detected",
		zap.String("query_hash", signal.QueryHash),
		zap.String("sample_query", utils.TruncateForLog(signal.SampleQuery, 200)),
		zap.String(logger.FieldTenant, tenantLabel(signal.TenantID)),
		zap.Int("count", signal.Count),
		zap.Duration("window", signal.Window),
	)
	return nil
}

// Options tune gap detection and statistics.
type Options struct {
	GapThreshold  int           `mapstructure:"gap-threshold"`
	GapWindow     time.Duration `mapstructure:"gap-window"`
	TopUnanswered int           `mapstructure:"top-unanswered"`
}

func (o Options) withDefaults() Options {
	if o.GapThreshold <= 0 {
		o.GapThreshold = 5
	}
	if o.GapWindow <= 0 {
		o.GapWindow = 24 * time.Hour
	}
	if o.TopUnanswered <= 0 {
		o.TopUnanswered = 10
	}
	return o
}

// Analytics is the query analytics service.
type Analytics struct {
	store    Store
	notifier GapNotifier
	opts     Options
	now      func() time.Time
	logger   *zap.Logger

	mu       sync.Mutex
	notified map[string]time.Time
}

// New builds an Analytics service. A nil notifier logs gaps.
func New(store Store, notifier GapNotifier, opts Options, log *zap.Logger) *Analytics {
	if notifier == nil {
		notifier = NewLogNotifier(log)
	}
	return &Analytics{
		store:    store,
		notifier: notifier,
		opts:     opts.withDefaults(),
		now:      time.Now,
		logger:   logger.Named(log, "analytics"),
		notified: make(map[string]time.Time),
	}
}

// Log hashes and appends an entry, then checks gap classifications for a
// content gap. The stored entry is returned.
func (a *Analytics) Log(ctx context.Context, entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.QueryHash == "" {
		entry.QueryHash = Hash(entry.QueryText)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.now().UTC()
	}

	if err := a.store.Append(ctx, entry); err != nil {
		return entry, fmt.Errorf("append query log: %w", err)
	}

	a.logger.Debug("query logged",
		zap.String("id", entry.ID),
		zap.String("query_hash", entry.QueryHash),
		zap.String("classification", string(entry.Classification)),
		zap.String(logger.FieldTenant, tenantLabel(entry.TenantID)),
	)

	if isGapClassification(entry.Classification) {
		if _, err := a.checkGap(ctx, entry.QueryHash, entry.TenantID, entry.QueryText); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

// CheckGap reports whether hash reached the gap threshold for tenantID within
// the window, notifying at most once per window.
func (a *Analytics) CheckGap(ctx context.Context, hash string, tenantID *int64) (bool, error) {
	return a.checkGap(ctx, hash, tenantID, "")
}

func (a *Analytics) checkGap(ctx context.Context, hash string, tenantID *int64, sample string) (bool, error) {
	now := a.now()
	count, err := a.store.CountSince(ctx, hash, tenantID, GapClassifications, now.Add(-a.opts.GapWindow))
	if err != nil {
		return false, fmt.Errorf("count query %s: %w", hash, err)
	}
	if count < a.opts.GapThreshold {
		return false, nil
	}

	key := hash + "|" + tenantLabel(tenantID)
	a.mu.Lock()
	last, seen := a.notified[key]
	fresh := !seen || now.Sub(last) >= a.opts.GapWindow
	if fresh {
		a.pruneNotified(now)
		a.notified[key] = now
	}
	a.mu.Unlock()

	if !fresh {
		return true, nil
	}

	signal := GapSignal{
		QueryHash:   hash,
		SampleQuery: sample,
		TenantID:    tenantID,
		Count:       count,
		Window:      a.opts.GapWindow,
		DetectedAt:  now.UTC(),
	}
	if err := a.notifier.NotifyGap(ctx, signal); err != nil {
		a.logger.Warn("failed to notify content gap", zap.String("query_hash", hash), zap.Error(err))
	}
	return true, nil
}

// pruneNotified drops dedupe marks whose window has passed. Callers hold a.mu.
func (a *Analytics) pruneNotified(now time.Time) {
	for key, at := range a.notified {
		if now.Sub(at) >= a.opts.GapWindow {
			delete(a.notified, key)
		}
	}
}

// QueryCount is a query hash with its occurrences.
type QueryCount struct {
	QueryHash   string `json:"query_hash"`
	SampleQuery string `json:"sample_query"`
	Count       int    `json:"count"`
}

// Stats aggregates the query log of a tenant over a period.
type Stats struct {
	Total              int                    `json:"total"`
	ByClassification   map[Classification]int `json:"by_classification"`
	AnsweredRate       float64                `json:"answered_rate"`
	MeanConfidence     float64                `json:"mean_confidence"`
	MeanResponseTimeMs float64                `json:"mean_response_time_ms"`
	TopUnanswered      []QueryCount           `json:"top_unanswered"`
}

// GetStats aggregates entries of tenantID created within period.
func (a *Analytics) GetStats(ctx context.Context, tenantID *int64, period time.Duration) (Stats, error) {
	if period <= 0 {
		return Stats{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
	}

	entries, err := a.store.ListSince(ctx, tenantID, a.now().Add(-period))
	if err != nil {
		return Stats{}, fmt.Errorf("list query log: %w", err)
	}

	stats := Stats{
		Total:            len(entries),
		ByClassification: make(map[Classification]int),
		TopUnanswered:    []QueryCount{},
	}
	if len(entries) == 0 {
		return stats, nil
	}

	var confidence, latency float64
	answered := 0
	gaps := make(map[string]*QueryCount)
	latest := make(map[string]time.Time)

	for _, e := range entries {
		stats.ByClassification[e.Classification]++
		confidence += e.Confidence
		latency += float64(e.ResponseTimeMs)

		switch e.Classification {
		case AnsweredFull, AnsweredPartial, PurchaseIntent:
			answered++
		}

		if !isGapClassification(e.Classification) {
			continue
		}
		qc, ok := gaps[e.QueryHash]
		if !ok {
			qc = &QueryCount{QueryHash: e.QueryHash}
			gaps[e.QueryHash] = qc
		}
		qc.Count++
		if e.CreatedAt.After(latest[e.QueryHash]) || qc.SampleQuery == "" {
			qc.SampleQuery = e.QueryText
			latest[e.QueryHash] = e.CreatedAt
		}
	}

	n := float64(len(entries))
	stats.AnsweredRate = float64(answered) / n
	stats.MeanConfidence = confidence / n
	stats.MeanResponseTimeMs = latency / n

	for _, qc := range gaps {
		stats.TopUnanswered = append(stats.TopUnanswered, *qc)
	}
	sort.Slice(stats.TopUnanswered, func(i, j int) bool {
		if stats.TopUnanswered[i].Count != stats.TopUnanswered[j].Count {
			return stats.TopUnanswered[i].Count > stats.TopUnanswered[j].Count
		}
		return stats.TopUnanswered[i].QueryHash < stats.TopUnanswered[j].QueryHash
	})
	if len(stats.TopUnanswered) > a.opts.TopUnanswered {
		stats.TopUnanswered = stats.TopUnanswered[:a.opts.TopUnanswered]
	}

	return stats, nil
}

// ParsePeriod accepts Go durations plus a day suffix, e.g. "7d".
func ParsePeriod(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
	return d, nil
}

func isGapClassification(c Classification) bool {
	for _, g := range GapClassifications {
		if c == g {
			return true
		}
	}
	return false
}

// SameTenant compares optional tenant ids.
func SameTenant(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func tenantLabel(tenantID *int64) string {
	if tenantID == nil {
		return "anonymous"
	}
	return strconv.FormatInt(*tenantID, 10)
}
