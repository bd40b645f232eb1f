package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	awspkg "github.com/yousufaayman/barcode-manage-cpc-sub000/pkg/aws"
)

var (
	rowsClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_rows_classified_total",
		Help: "Imported rows by final classification",
	}, []string{"status"})

	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_submissions_total",
		Help: "Bulk submissions by outcome",
	}, []string{"outcome"})

	scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_scans_total",
		Help: "Decoded scans by source and outcome",
	}, []string{"source", "outcome"})

	printJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_print_jobs_total",
		Help: "Print dispatches by outcome",
	}, []string{"outcome"})

	storeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_store_call_duration_seconds",
		Help:    "Latency of remote store calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_http_requests_total",
		Help: "HTTP requests by method, route and status class",
	}, []string{"method", "route", "status"})
)

// Recorder fans business metrics out to Prometheus and, when configured,
// CloudWatch. A nil *Recorder is valid and records to Prometheus only.
type Recorder struct {
	cloudwatch *awspkg.MetricsClient
	service    string
}

func NewRecorder(cw *awspkg.MetricsClient, service string) *Recorder {
	return &Recorder{cloudwatch: cw, service: service}
}

func (r *Recorder) RowsClassified(success, errs, duplicates int) {
	rowsClassified.WithLabelValues("success").Add(float64(success))
	rowsClassified.WithLabelValues("error").Add(float64(errs))
	rowsClassified.WithLabelValues("duplicate").Add(float64(duplicates))
	r.push(awspkg.MetricRowsImported, float64(success+errs+duplicates), map[string]string{})
}

func (r *Recorder) Submission(outcome string, committed int) {
	submissions.WithLabelValues(outcome).Inc()
	r.push(awspkg.MetricBatchesCommitted, float64(committed), map[string]string{"Outcome": outcome})
}

func (r *Recorder) Scan(source, outcome string) {
	scans.WithLabelValues(source, outcome).Inc()
	r.push(awspkg.MetricScansDecoded, 1, map[string]string{"Source": source, "Outcome": outcome})
}

func (r *Recorder) PrintJob(outcome string) {
	printJobs.WithLabelValues(outcome).Inc()
	r.push(awspkg.MetricLabelsPrinted, 1, map[string]string{"Outcome": outcome})
}

func (r *Recorder) StoreCall(operation string, d time.Duration) {
	storeLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// HTTPRequest is called by the HTTP middleware for every request.
func HTTPRequest(method, route, status string) {
	httpRequests.WithLabelValues(method, route, status).Inc()
}

func (r *Recorder) push(name string, value float64, dims map[string]string) {
	if r == nil || r.cloudwatch == nil || !r.cloudwatch.IsEnabled() {
		return
	}
	dims["Service"] = r.service
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.cloudwatch.RecordValue(ctx, name, value, dims)
	}()
}
