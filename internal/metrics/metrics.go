package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sensu_asset_builder"

// Recorder holds the metrics of one run.
type Recorder struct {
	// registry only contains this run's collectors.
	registry *prometheus.Registry

	assetsBuilt    prometheus.Counter
	targetsBuilt   *prometheus.CounterVec
	targetsSkipped *prometheus.CounterVec
	runDuration    prometheus.Gauge
	lastRun        prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		assetsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_built_total",
			Help:      "Assets whose manifest was written.",
		}),
		targetsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "targets_built_total",
			Help:      "Platform targets archived and hashed.",
		}, []string{"asset", "platform", "arch"}),
		targetsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "targets_skipped_total",
			Help:      "Platform targets left out of the build matrix.",
		}, []string{"asset", "arch"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run succeeded, 0 otherwise.",
		}),
	}

	r.registry.MustRegister(r.assetsBuilt, r.targetsBuilt, r.targetsSkipped, r.runDuration, r.lastRun, r.lastSuccess)

	return r
}

// AssetBuilt counts a written manifest.
func (r *Recorder) AssetBuilt() {
	r.assetsBuilt.Inc()
}

// TargetBuilt counts an archived target.
func (r *Recorder) TargetBuilt(assetName, platform, arch string) {
	r.targetsBuilt.WithLabelValues(assetName, platform, arch).Inc()
}

// TargetSkipped counts a skipped target.
func (r *Recorder) TargetSkipped(assetName, arch string) {
	r.targetsSkipped.WithLabelValues(assetName, arch).Inc()
}

// Finish records the outcome of a run that started at start.
func (r *Recorder) Finish(start time.Time, err error) {
	now := time.Now()

	r.runDuration.Set(now.Sub(start).Seconds())
	r.lastRun.Set(float64(now.Unix()))

	if err == nil {
		r.lastSuccess.Set(1)
	} else {
		r.lastSuccess.Set(0)
	}
}

// WriteFile atomically writes the metrics to path in the text exposition format.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}

	return nil
}
