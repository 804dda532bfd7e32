package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
)

const namespace = "dcat_harvest"

// WriteTextfile writes snap in the Prometheus text format for the
// node_exporter textfile collector. The file is replaced atomically.
func WriteTextfile(path string, snap *MetricsSnapshot) error {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	gauge := func(name, help string, v float64) {
		f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}).Set(v)
	}
	gauge("last_run_timestamp_seconds", "Unix time the last harvest finished.", float64(snap.CollectedAt.Unix()))
	gauge("last_run_success", "1 if the last harvest completed, 0 if it failed.", boolGauge(snap.ActionDate != ""))
	gauge("portals", "Portals in the last harvest.", float64(snap.Portals))
	gauge("portals_skipped", "Portals whose catalog could not be used in the last harvest.", float64(len(snap.SkippedPortals)))
	gauge("states_without_boundaries", "States with no reference boundaries in the last harvest.", float64(len(snap.NoDataStates)))
	gauge("links_checked", "Download links checked in the last harvest.", float64(snap.LinksChecked))
	gauge("dead_links", "Rows dropped for dead download links in the last harvest.", float64(snap.DeadLinks))
	gauge("timed_out_links", "Download links that timed out in the last harvest.", float64(snap.TimedOutLinks))
	gauge("rejected_boxes", "Rows withheld for unusable bounding boxes in the last harvest.", float64(snap.Rejected))

	runs := f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "recent_runs",
		Help:      "Runs in the lookback window by status.",
	}, []string{"status"})
	runs.WithLabelValues("complete").Set(float64(snap.RunsComplete))
	runs.WithLabelValues("failed").Set(float64(snap.RunsFailed))

	portal := f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "portal_records",
		Help:      "Per-portal counts from the last harvest.",
	}, []string{"portal", "kind"})
	for _, s := range snap.Statuses {
		portal.WithLabelValues(s.PortalName, "total").Set(float64(s.Total))
		portal.WithLabelValues(s.PortalName, "new").Set(float64(s.Added))
		portal.WithLabelValues(s.PortalName, "deleted").Set(float64(s.Removed))
	}

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return eris.Wrapf(err, "monitoring: write textfile %s", path)
	}
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
