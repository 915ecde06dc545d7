// Package observability provides application metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImageScansTotal counts image moderation scans by outcome
	// (approved, rejected, failed, disabled).
	ImageScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modmixx_image_scans_total",
		Help: "Total number of image moderation scans by outcome",
	}, []string{"outcome"})

	// ToxicityChecksTotal counts toxicity checks by outcome
	// (passed, rejected, failed_open, disabled).
	ToxicityChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modmixx_toxicity_checks_total",
		Help: "Total number of text toxicity checks by outcome",
	}, []string{"outcome"})

	// StorageCleanupFailures counts best-effort blob deletions that failed.
	// Cleanup failures never fail the owning mutation, so this counter is the
	// only place orphaned blobs become visible.
	StorageCleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modmixx_storage_cleanup_failures_total",
		Help: "Total number of failed object-store cleanup deletions",
	})

	// UploadRejections counts upload validation failures by kind and reason.
	UploadRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modmixx_upload_rejections_total",
		Help: "Total number of rejected file uploads by kind and reason",
	}, []string{"kind", "reason"})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modmixx_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})
)

// Image scan outcome label values.
const (
	ScanOutcomeApproved = "approved"
	ScanOutcomeRejected = "rejected"
	ScanOutcomeFailed   = "failed"
	ScanOutcomeDisabled = "disabled"
)

// Toxicity check outcome label values.
const (
	ToxicityOutcomePassed     = "passed"
	ToxicityOutcomeRejected   = "rejected"
	ToxicityOutcomeFailedOpen = "failed_open"
	ToxicityOutcomeDisabled   = "disabled"
)
