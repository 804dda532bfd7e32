// Package monitoring evaluates harvest health after a run and sends alerts
// to a webhook.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dcat-harvester/internal/ledger"
	"github.com/sells-group/dcat-harvester/internal/linkcheck"
	"github.com/sells-group/dcat-harvester/internal/model"
	"github.com/sells-group/dcat-harvester/internal/pipeline"
)

// MetricsSnapshot holds a point-in-time view of harvest health.
type MetricsSnapshot struct {
	// Run history over the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunFailRate  float64 `json:"run_fail_rate"`
	LastError    string  `json:"last_error,omitempty"`

	// The run just finished. Empty when it failed.
	ActionDate     string   `json:"action_date,omitempty"`
	Portals        int      `json:"portals"`
	SkippedPortals []string `json:"skipped_portals,omitempty"`
	NoDataStates   []string `json:"no_data_states,omitempty"`
	LinksChecked   int      `json:"links_checked"`
	DeadLinks      int      `json:"dead_links"`
	DeadLinkRate   float64  `json:"dead_link_rate"`
	TimedOutLinks  int      `json:"timed_out_links"`
	Rejected       int      `json:"rejected_boxes"`

	Statuses []model.PortalStatus `json:"-"`

	LookbackRuns int       `json:"lookback_runs"`
	CollectedAt  time.Time `json:"collected_at"`
}

// RunHistory is the part of the ledger the collector reads.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]ledger.Run, error)
}

// Collector gathers metrics from the run ledger.
type Collector struct {
	history RunHistory
}

// NewCollector creates a new metrics collector.
func NewCollector(history RunHistory) *Collector {
	return &Collector{history: history}
}

// Collect summarizes the last lookbackRuns runs. Runs still in progress are
// counted in the total only.
func (c *Collector) Collect(ctx context.Context, lookbackRuns int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackRuns: lookbackRuns,
		CollectedAt:  time.Now().UTC(),
	}

	runs, err := c.history.Recent(ctx, lookbackRuns)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}
	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case ledger.StatusComplete:
			snap.RunsComplete++
		case ledger.StatusFailed:
			snap.RunsFailed++
			if snap.LastError == "" {
				snap.LastError = r.Error
			}
		}
	}
	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}
	return snap, nil
}

// AddHarvest folds the outcome of the run just finished into snap.
func (snap *MetricsSnapshot) AddHarvest(date string, res *pipeline.Result) {
	if res == nil {
		return
	}
	snap.ActionDate = date
	snap.Portals = len(res.Statuses) + len(res.SkippedPortals)
	snap.SkippedPortals = res.SkippedPortals
	snap.NoDataStates = res.SkippedStates
	snap.Rejected = len(res.Rejected)
	snap.Statuses = res.Statuses
	if s := res.LinkSummary; s != nil {
		snap.LinksChecked = s.Total
		snap.DeadLinks = res.DeadLinks
		if s.Total > 0 {
			snap.DeadLinkRate = float64(res.DeadLinks) / float64(s.Total)
		}
		snap.TimedOutLinks = s.Counts[linkcheck.Timeout]
	}
}
