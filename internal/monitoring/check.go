package monitoring

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/config"
	"github.com/sells-group/dcat-harvester/internal/pipeline"
)

// AfterHarvest collects run metrics, folds in res (nil when the run
// failed), writes the metrics textfile and sends any alerts. It returns the
// alerts that triggered. Monitoring never fails a harvest; errors are
// logged.
func AfterHarvest(ctx context.Context, cfg config.MonitoringConfig, history RunHistory, date string, res *pipeline.Result) []Alert {
	log := zap.L().With(zap.String("component", "monitoring"))
	if cfg.WebhookURL == "" && cfg.TextfilePath == "" {
		return nil
	}

	snap, err := NewCollector(history).Collect(ctx, cfg.LookbackRuns)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return nil
	}
	snap.AddHarvest(date, res)

	if cfg.TextfilePath != "" {
		if err := WriteTextfile(cfg.TextfilePath, snap); err != nil {
			log.Error("monitoring: failed to write metrics", zap.Error(err))
		}
	}
	if cfg.WebhookURL == "" {
		return nil
	}

	alerter := NewAlerter(cfg)
	alerts := alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return nil
	}
	sent := alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}
