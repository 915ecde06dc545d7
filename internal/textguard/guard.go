// Package textguard validates user-supplied text before it is persisted.
package textguard

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"modmixx/internal/config"
	"modmixx/internal/featureflags"
	"modmixx/internal/models"
	"modmixx/internal/moderation"
	"modmixx/internal/observability"
)

// htmlTagPattern matches anything that looks like an HTML tag. Text fields are
// plain text; embedded markup is rejected rather than stripped.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// denylist holds substrings that are never acceptable in user text,
// matched case-insensitively. The order matters only for which term gets
// named in the error.
var denylist = []string{
	"javascript:",
	"vbscript:",
	"onclick=",
	"onerror=",
	"onload=",
	"onmouseover=",
	"onfocus=",
	"data:",
	"script",
}

// Guard runs the full text validation pipeline: markup and injection checks
// first, then toxicity scoring, then length. The structural checks run even
// when the scorer is down, so a broken third-party API never lets markup
// through.
type Guard struct {
	scorer    moderation.ToxicityScorer
	flags     *featureflags.Manager
	threshold float64
	logger    *slog.Logger
}

// NewGuard builds a Guard. scorer may be nil when toxicity checking is not
// configured; structural checks still apply.
func NewGuard(scorer moderation.ToxicityScorer, flags *featureflags.Manager, cfg *config.Config, logger *slog.Logger) *Guard {
	threshold := cfg.ToxicityThreshold
	if threshold <= 0 {
		threshold = 0.7
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		scorer:    scorer,
		flags:     flags,
		threshold: threshold,
		logger:    logger,
	}
}

// Check validates one free-text field and returns the trimmed value. field is
// the user-facing field name used in error messages ("bio", "comment", ...).
// An empty trimmed value is returned as-is; required-ness is the caller's
// concern.
func (g *Guard) Check(ctx context.Context, field, text string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", nil
	}

	if htmlTagPattern.MatchString(trimmed) {
		return "", models.NewValidationError(
			fmt.Sprintf("HTML is not allowed in %s", field))
	}

	lowered := strings.ToLower(trimmed)
	for _, term := range denylist {
		if strings.Contains(lowered, term) {
			return "", models.NewValidationError(
				fmt.Sprintf("%s contains a disallowed term: %s", field, term))
		}
	}

	if err := g.checkToxicity(ctx, field, trimmed); err != nil {
		return "", err
	}

	if len(trimmed) > maxLen {
		return "", models.NewValidationError(
			fmt.Sprintf("%s is too long (max %d characters)", field, maxLen))
	}

	return trimmed, nil
}

// CheckUsername runs the standard pipeline plus username-specific rules:
// no internal whitespace, and the stored value is lowercased.
func (g *Guard) CheckUsername(ctx context.Context, text string, maxLen int) (string, error) {
	cleaned, err := g.Check(ctx, "username", text, maxLen)
	if err != nil {
		return "", err
	}
	if cleaned == "" {
		return "", models.NewValidationError("username is required")
	}
	for _, r := range cleaned {
		if unicode.IsSpace(r) {
			return "", models.NewValidationError("username cannot contain spaces")
		}
	}
	return strings.ToLower(cleaned), nil
}

// checkToxicity scores text and rejects above the threshold. Scorer failures
// pass the text through: blocking every user because a third-party API is down
// is worse than letting a few toxic strings briefly slip by.
func (g *Guard) checkToxicity(ctx context.Context, field, text string) error {
	if g.scorer == nil {
		return nil
	}
	if g.flags != nil && !g.flags.TextModerationEnabled() {
		observability.ToxicityChecksTotal.WithLabelValues(observability.ToxicityOutcomeDisabled).Inc()
		return nil
	}

	score, err := g.scorer.Score(ctx, text)
	if err != nil {
		g.logger.WarnContext(ctx, "toxicity check failed, allowing text",
			"field", field, "error", err)
		observability.ToxicityChecksTotal.WithLabelValues(observability.ToxicityOutcomeFailedOpen).Inc()
		return nil
	}

	if score > g.threshold {
		observability.ToxicityChecksTotal.WithLabelValues(observability.ToxicityOutcomeRejected).Inc()
		return models.NewValidationError(
			fmt.Sprintf("Your %s may be hurtful to others. Please rephrase it.", field))
	}

	observability.ToxicityChecksTotal.WithLabelValues(observability.ToxicityOutcomePassed).Inc()
	return nil
}
