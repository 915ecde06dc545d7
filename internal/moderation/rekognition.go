// Package moderation wraps the third-party content moderation services: image
// classification (AWS Rekognition) and text toxicity scoring (Perspective API).
package moderation

import (
	"context"
	"log/slog"
	"time"

	"modmixx/internal/config"
	"modmixx/internal/featureflags"
	"modmixx/internal/models"
	"modmixx/internal/observability"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/rekognition"
)

// ScanResult is the outcome of one image moderation scan.
type ScanResult struct {
	// Allowed is false only when a completed scan matched a blocking label.
	Allowed bool
	// Labels holds detected labels from a completed scan, nil when Failed.
	Labels models.ModerationLabels
	// Failed marks a scan that could not complete. The image is allowed
	// through (fail-open) but the caller must record PENDING, not APPROVED.
	Failed bool
}

// ImageScanner classifies image bytes into an allow/reject decision.
type ImageScanner interface {
	Scan(ctx context.Context, imageBytes []byte) ScanResult
}

// Confidence bars for blocking label categories. Drug-adjacent labels need a
// near-certain match because Rekognition flags innocuous imagery (supplement
// bottles, medicine cabinets) under them far too eagerly.
const (
	drugBlockConfidence   = 99
	severeBlockConfidence = 85
)

var drugLabels = map[string]struct{}{
	"Pills":           {},
	"Products":        {},
	"Drugs & Tobacco": {},
}

var severeLabels = map[string]struct{}{
	"Explicit Nudity": {},
	"Sexual Activity": {},
	"Violence":        {},
	"Hate Symbols":    {},
	"Smoking":         {},
}

// rekognitionAPI is the subset of the Rekognition client used by the scanner.
type rekognitionAPI interface {
	DetectModerationLabelsWithContext(ctx aws.Context, input *rekognition.DetectModerationLabelsInput, opts ...request.Option) (*rekognition.DetectModerationLabelsOutput, error)
}

// RekognitionScanner is an ImageScanner backed by AWS Rekognition. Every
// failure mode of the remote call is converted to a fail-open result; the
// scanner never returns an error.
type RekognitionScanner struct {
	api           rekognitionAPI
	minConfidence float64
	timeout       time.Duration
	flags         *featureflags.Manager
	logger        *slog.Logger
}

// NewRekognitionScanner builds a scanner from configuration. Dedicated
// Rekognition credentials are used when configured, otherwise the default AWS
// credential chain applies.
func NewRekognitionScanner(cfg *config.Config, flags *featureflags.Manager, logger *slog.Logger) (*RekognitionScanner, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.AWSRegion)}
	if cfg.RekognitionAccessKey != "" && cfg.RekognitionSecret != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.RekognitionAccessKey, cfg.RekognitionSecret, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}

	return &RekognitionScanner{
		api:           rekognition.New(sess),
		minConfidence: float64(cfg.RekognitionMinConfidence),
		timeout:       time.Duration(cfg.ModerationTimeout()) * time.Second,
		flags:         flags,
		logger:        logger,
	}, nil
}

// Scan classifies imageBytes. Blocking rules, first match wins:
// drug/tobacco labels block at >=99 confidence, severe labels (explicit
// nudity, sexual activity, violence, hate symbols, smoking) at >=85.
func (s *RekognitionScanner) Scan(ctx context.Context, imageBytes []byte) ScanResult {
	if s.flags != nil && !s.flags.ImageModerationEnabled() {
		observability.ImageScansTotal.WithLabelValues(observability.ScanOutcomeDisabled).Inc()
		return ScanResult{Allowed: true, Labels: models.ModerationLabels{}, Failed: false}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.api.DetectModerationLabelsWithContext(ctx, &rekognition.DetectModerationLabelsInput{
		Image:         &rekognition.Image{Bytes: imageBytes},
		MinConfidence: aws.Float64(s.minConfidence),
	})
	if err != nil {
		// Fail-open: the asset is not rejected, but the caller must treat
		// the status as unknown and persist PENDING.
		observability.ImageScansTotal.WithLabelValues(observability.ScanOutcomeFailed).Inc()
		s.logger.WarnContext(ctx, "image moderation scan failed (fail-open)",
			slog.String("error", err.Error()))
		return ScanResult{Allowed: true, Labels: nil, Failed: true}
	}

	labels := make(models.ModerationLabels, 0, len(resp.ModerationLabels))
	for _, lbl := range resp.ModerationLabels {
		labels = append(labels, models.ModerationLabel{
			Name:       aws.StringValue(lbl.Name),
			Confidence: aws.Float64Value(lbl.Confidence),
		})
	}

	allowed := true
	for _, lbl := range labels {
		if _, ok := drugLabels[lbl.Name]; ok && lbl.Confidence >= drugBlockConfidence {
			allowed = false
			break
		}
		if _, ok := severeLabels[lbl.Name]; ok && lbl.Confidence >= severeBlockConfidence {
			allowed = false
			break
		}
	}

	outcome := observability.ScanOutcomeApproved
	if !allowed {
		outcome = observability.ScanOutcomeRejected
	}
	observability.ImageScansTotal.WithLabelValues(outcome).Inc()

	return ScanResult{Allowed: allowed, Labels: labels, Failed: false}
}
