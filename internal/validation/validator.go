// Package validation scores uploaded documents against per-step profiles.
//
// A score is the share of a profile's checks the document satisfies:
// checklist keywords found in its text, expected visual labels and the face
// requirement. Name-gated profiles first require the applicant's name to
// appear on the document. Collaborator faults never surface as errors here;
// they score zero and carry a reason.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"intake/internal/validation/metrics"
	"intake/internal/vision"
)

const (
	// PassThreshold is the minimum score for a document to be accepted.
	PassThreshold = 70.0
	// NameGateThreshold is the minimum name match ratio on gated profiles.
	NameGateThreshold = 50.0

	defaultTimeout = 20 * time.Second
)

// GatingMode controls whether name-gated profiles enforce the name check.
type GatingMode string

const (
	GatingOff      GatingMode = "off"
	GatingEnforced GatingMode = "enforced"
)

// ParseGatingMode accepts "off" or "enforced".
func ParseGatingMode(s string) (GatingMode, error) {
	switch GatingMode(s) {
	case GatingOff, GatingEnforced:
		return GatingMode(s), nil
	default:
		return "", fmt.Errorf("unknown gating mode %q", s)
	}
}

// Reason explains why a score was forced to zero.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonNameGate       Reason = "name_gate"
	ReasonAnalysisFailed Reason = "analysis_failed"
	ReasonNoContent      Reason = "no_content"
	ReasonUnknownStep    Reason = "unknown_step"
)

// Document is an uploaded file. Locator is the stored blob; Content is the
// raw bytes when the caller still holds them.
type Document struct {
	Locator     string
	Content     []byte
	ContentType string
}

// Outcome is the result of validating one document.
type Outcome struct {
	Step   StepCode
	Score  float64
	Passed bool
	Reason Reason
}

func newOutcome(step StepCode, score float64, reason Reason) Outcome {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return Outcome{Step: step, Score: score, Passed: score >= PassThreshold, Reason: reason}
}

// Validator runs document analysis and scores the result.
type Validator struct {
	registry *Registry
	analyzer vision.Analyzer
	pdf      vision.TextExtractor
	gating   GatingMode
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Option configures a Validator.
type Option func(*Validator)

func WithGating(mode GatingMode) Option {
	return func(v *Validator) { v.gating = mode }
}

// WithTimeout bounds each provider call. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(v *Validator) { v.tracer = t }
}

// New creates a Validator. Gating defaults to enforced.
func New(registry *Registry, analyzer vision.Analyzer, pdf vision.TextExtractor, opts ...Option) *Validator {
	v := &Validator{
		registry: registry,
		analyzer: analyzer,
		pdf:      pdf,
		gating:   GatingEnforced,
		timeout:  defaultTimeout,
		logger:   slog.Default(),
		tracer:   otel.Tracer("intake/validation"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate scores doc against the profile for step. expectedName is the
// applicant's full name, used by name-gated profiles.
func (v *Validator) Validate(ctx context.Context, step StepCode, doc Document, expectedName string) Outcome {
	start := time.Now()
	ctx, span := v.tracer.Start(ctx, "validation.Validate",
		trace.WithAttributes(attribute.Int("step", int(step))))
	defer span.End()

	out := v.validate(ctx, step, doc, expectedName)

	span.SetAttributes(
		attribute.Float64("score", out.Score),
		attribute.Bool("passed", out.Passed),
	)
	if out.Reason != ReasonNone {
		span.SetAttributes(attribute.String("reason", string(out.Reason)))
	}
	if v.metrics != nil {
		result := "failed"
		switch {
		case out.Reason != ReasonNone:
			result = string(out.Reason)
		case out.Passed:
			result = "passed"
		}
		v.metrics.ObserveOutcome(strconv.Itoa(int(out.Step)), out.Score, result)
		v.metrics.ObserveDuration(start)
	}
	return out
}

func (v *Validator) validate(ctx context.Context, step StepCode, doc Document, expectedName string) Outcome {
	profile, ok := v.registry.Resolve(step)
	if !ok {
		v.logger.WarnContext(ctx, "validation requested for unknown step", "step", int(step))
		return newOutcome(step, 0, ReasonUnknownStep)
	}
	step = profile.Code

	ann, reason := v.annotate(ctx, profile, doc)
	if reason != ReasonNone {
		return newOutcome(step, 0, reason)
	}

	if profile.Binary {
		if faceSatisfied(profile.Face, ann.FaceCount) {
			return newOutcome(step, 100, ReasonNone)
		}
		return newOutcome(step, 0, ReasonNone)
	}

	if profile.NameGated && v.gating == GatingEnforced {
		if ratio := NameGate(ann.FullText, expectedName); ratio < NameGateThreshold {
			v.logger.InfoContext(ctx, "document rejected by name gate",
				"step", int(step),
				"ratio", ratio,
			)
			return newOutcome(step, 0, ReasonNameGate)
		}
	}

	return newOutcome(step, Score(profile, ann), ReasonNone)
}

// annotate produces the annotation the profile is scored from.
func (v *Validator) annotate(ctx context.Context, profile Profile, doc Document) (*vision.Annotation, Reason) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if profile.Source == SourcePDFReversed {
		if len(doc.Content) == 0 {
			return nil, ReasonNoContent
		}
		text, err := v.pdf.ExtractText(ctx, doc.Content)
		if err != nil {
			v.logger.WarnContext(ctx, "pdf text extraction failed",
				"step", int(profile.Code),
				"error", err,
			)
			return nil, ReasonAnalysisFailed
		}
		return &vision.Annotation{FullText: reverseRunes(text)}, ReasonNone
	}

	if doc.Locator == "" && len(doc.Content) == 0 {
		return nil, ReasonNoContent
	}
	ann, err := v.analyzer.Analyze(ctx, vision.Source{Locator: doc.Locator, Content: doc.Content}, profile.Features())
	if err != nil {
		v.logger.WarnContext(ctx, "document analysis failed",
			"step", int(profile.Code),
			"category", string(vision.Category(err)),
			"error", err,
		)
		return nil, ReasonAnalysisFailed
	}
	if ann == nil {
		ann = &vision.Annotation{}
	}
	return ann, ReasonNone
}

// Score computes a profile's score for an annotation without gating.
func Score(profile Profile, ann *vision.Annotation) float64 {
	den := profile.Denominator()
	if den == 0 {
		return 0
	}
	points := KeywordScore(ann.FullText, profile.Keywords)
	if profile.Face != FaceNone && faceSatisfied(profile.Face, ann.FaceCount) {
		points++
	}
	for _, rule := range profile.Labels {
		if c, ok := ann.LabelConfidence(rule.Name); ok && c >= rule.Min {
			points++
		}
	}
	score := float64(points) / float64(den) * 100
	if score > 100 {
		return 100
	}
	return score
}

func faceSatisfied(req FaceRequirement, count int) bool {
	switch req {
	case FaceExactlyOne:
		return count == 1
	default:
		return true
	}
}
