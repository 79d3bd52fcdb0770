package validation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"intake/internal/vision"
)

type fakeAnalyzer struct {
	ann      *vision.Annotation
	err      error
	calls    int
	features vision.Features
	src      vision.Source
	block    bool
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, src vision.Source, features vision.Features) (*vision.Annotation, error) {
	f.calls++
	f.features = features
	f.src = src
	if f.block {
		<-ctx.Done()
		return nil, vision.NewError(vision.ErrorTimeout, "fake", "deadline", ctx.Err())
	}
	return f.ann, f.err
}

type fakePDF struct {
	text  string
	err   error
	calls int
}

func (f *fakePDF) ExtractText(context.Context, []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

type ValidatorSuite struct {
	suite.Suite
	analyzer *fakeAnalyzer
	pdf      *fakePDF
	ctx      context.Context
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) SetupTest() {
	s.analyzer = &fakeAnalyzer{ann: &vision.Annotation{}}
	s.pdf = &fakePDF{}
	s.ctx = context.Background()
}

func (s *ValidatorSuite) newValidator(opts ...Option) *Validator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithLogger(logger)}, opts...)
	return New(DefaultRegistry(), s.analyzer, s.pdf, opts...)
}

func imageDoc() Document {
	return Document{Locator: "gs://bucket/doc.jpg", ContentType: "image/jpeg"}
}

const applicant = "محمد احمد"

// =============================================================================
// Photo presence
// =============================================================================

func (s *ValidatorSuite) TestPhotoPresence() {
	v := s.newValidator()

	s.Run("exactly one face scores 100", func() {
		s.analyzer.ann = &vision.Annotation{FaceCount: 1}
		out := v.Validate(s.ctx, StepPhoto, imageDoc(), applicant)
		s.Equal(100.0, out.Score)
		s.True(out.Passed)
	})

	s.Run("no face scores zero", func() {
		s.analyzer.ann = &vision.Annotation{FaceCount: 0}
		out := v.Validate(s.ctx, StepPhoto, imageDoc(), applicant)
		s.Zero(out.Score)
		s.False(out.Passed)
		s.Equal(ReasonNone, out.Reason)
	})

	s.Run("two faces score zero", func() {
		s.analyzer.ann = &vision.Annotation{FaceCount: 2}
		s.Zero(v.Validate(s.ctx, StepPhoto, imageDoc(), applicant).Score)
	})

	s.Run("only face detection is requested", func() {
		s.analyzer.ann = &vision.Annotation{FaceCount: 1}
		v.Validate(s.ctx, StepPhoto, imageDoc(), applicant)
		s.True(s.analyzer.features.Has(vision.FeatureFace))
		s.False(s.analyzer.features.Has(vision.FeatureText))
		s.False(s.analyzer.features.Has(vision.FeatureLabel))
	})
}

// =============================================================================
// Identity card back
// =============================================================================

func (s *ValidatorSuite) TestIDBack() {
	v := s.newValidator()

	s.Run("full keyword set and labels scores 100", func() {
		s.analyzer.ann = &vision.Annotation{
			FullText: strings.Join(idBackKeywords, " "),
			Labels:   []vision.Label{{Name: "Font", Confidence: 0.9}, {Name: "Rectangle", Confidence: 0.6}},
		}
		out := v.Validate(s.ctx, StepIDBack, imageDoc(), "")
		s.Equal(100.0, out.Score)
		s.True(out.Passed)
	})

	s.Run("label below threshold is not awarded", func() {
		s.analyzer.ann = &vision.Annotation{
			FullText: strings.Join(idBackKeywords, " "),
			Labels:   []vision.Label{{Name: "Font", Confidence: 0.59}, {Name: "Rectangle", Confidence: 0.61}},
		}
		out := v.Validate(s.ctx, StepIDBack, imageDoc(), "")
		s.InDelta(10.0/11.0*100, out.Score, 1e-9)
	})

	s.Run("alias code resolves to the canonical step", func() {
		s.analyzer.ann = &vision.Annotation{FullText: strings.Join(idBackKeywords, " ")}
		out := v.Validate(s.ctx, StepIDBackAlias, imageDoc(), "")
		s.Equal(StepIDBack, out.Step)
		s.InDelta(9.0/11.0*100, out.Score, 1e-9)
	})

	s.Run("id back ignores the applicant name", func() {
		s.analyzer.ann = &vision.Annotation{FullText: strings.Join(idBackKeywords, " ")}
		out := v.Validate(s.ctx, StepIDBack, imageDoc(), "someone else entirely")
		s.NotEqual(ReasonNameGate, out.Reason)
	})
}

// =============================================================================
// Name gate
// =============================================================================

func (s *ValidatorSuite) TestNameGate() {
	s.Run("gated profile without the name scores zero", func() {
		v := s.newValidator()
		s.analyzer.ann = &vision.Annotation{
			FullText:  strings.Join(idFrontKeywords, " "),
			FaceCount: 1,
			Labels:    []vision.Label{{Name: "Paper", Confidence: 1}, {Name: "Font", Confidence: 1}, {Name: "Rectangle", Confidence: 1}},
		}
		out := v.Validate(s.ctx, StepIDFrontBound, imageDoc(), applicant)
		s.Zero(out.Score)
		s.Equal(ReasonNameGate, out.Reason)
	})

	s.Run("gated profile with the name is scored", func() {
		v := s.newValidator()
		s.analyzer.ann = &vision.Annotation{
			FullText:  applicant + "\n" + strings.Join(idFrontKeywords, " "),
			FaceCount: 1,
			Labels:    []vision.Label{{Name: "Paper", Confidence: 1}, {Name: "Font", Confidence: 1}, {Name: "Rectangle", Confidence: 1}},
		}
		out := v.Validate(s.ctx, StepIDFrontBound, imageDoc(), applicant)
		s.Equal(100.0, out.Score)
	})

	s.Run("gating off skips the check", func() {
		v := s.newValidator(WithGating(GatingOff))
		s.analyzer.ann = &vision.Annotation{
			FullText:  strings.Join(idFrontKeywords, " "),
			FaceCount: 1,
			Labels:    []vision.Label{{Name: "Paper", Confidence: 1}, {Name: "Font", Confidence: 1}, {Name: "Rectangle", Confidence: 1}},
		}
		out := v.Validate(s.ctx, StepIDFrontBound, imageDoc(), applicant)
		s.Equal(100.0, out.Score)
		s.Equal(ReasonNone, out.Reason)
	})
}

// =============================================================================
// Nomination letter
// =============================================================================

func (s *ValidatorSuite) TestNomination() {
	v := s.newValidator()
	pdfDoc := Document{Content: []byte("%PDF-1.7"), ContentType: "application/pdf"}

	s.Run("reversed text is gated and scored", func() {
		text := applicant + " " + strings.Join(nominationKeywords, " ")
		s.pdf.text = reverseRunes(text)
		out := v.Validate(s.ctx, StepNomination, pdfDoc, applicant)
		s.Equal(100.0, out.Score)
		s.Zero(s.analyzer.calls)
	})

	s.Run("unreversed text fails the gate", func() {
		s.pdf.text = applicant + " " + strings.Join(nominationKeywords, " ")
		out := v.Validate(s.ctx, StepNomination, pdfDoc, applicant)
		s.Equal(ReasonNameGate, out.Reason)
	})

	s.Run("extraction failure scores zero", func() {
		s.pdf.err = errors.New("broken xref")
		out := v.Validate(s.ctx, StepNomination, pdfDoc, applicant)
		s.Zero(out.Score)
		s.Equal(ReasonAnalysisFailed, out.Reason)
		s.pdf.err = nil
	})

	s.Run("missing bytes scores zero", func() {
		out := v.Validate(s.ctx, StepNomination, Document{Locator: "gs://b/o.pdf"}, applicant)
		s.Equal(ReasonNoContent, out.Reason)
	})
}

// =============================================================================
// Faults
// =============================================================================

func (s *ValidatorSuite) TestFaults() {
	s.Run("provider error scores zero", func() {
		v := s.newValidator()
		s.analyzer.err = vision.NewError(vision.ErrorProviderOutage, "fake", "down", nil)
		out := v.Validate(s.ctx, StepIDBack, imageDoc(), "")
		s.Zero(out.Score)
		s.Equal(ReasonAnalysisFailed, out.Reason)
		s.analyzer.err = nil
	})

	s.Run("timeout scores zero", func() {
		v := s.newValidator(WithTimeout(10 * time.Millisecond))
		s.analyzer.block = true
		out := v.Validate(s.ctx, StepIDBack, imageDoc(), "")
		s.Equal(ReasonAnalysisFailed, out.Reason)
		s.analyzer.block = false
	})

	s.Run("unknown step scores zero", func() {
		v := s.newValidator()
		out := v.Validate(s.ctx, StepCode(42), imageDoc(), "")
		s.Equal(ReasonUnknownStep, out.Reason)
		s.False(out.Passed)
	})

	s.Run("document without source scores zero", func() {
		v := s.newValidator()
		calls := s.analyzer.calls
		out := v.Validate(s.ctx, StepIDBack, Document{}, "")
		s.Equal(ReasonNoContent, out.Reason)
		s.Equal(calls, s.analyzer.calls)
	})
}

// =============================================================================
// Score bounds
// =============================================================================

func TestScoreWithinBounds(t *testing.T) {
	texts := []string{
		"",
		strings.Repeat(strings.Join(secondaryCertificateKeywords, " ")+"\n", 5),
		strings.Join(birthCertificateKeywords, "\n"),
	}
	for _, p := range DefaultProfiles() {
		profile, ok := DefaultRegistry().Resolve(p.Code)
		require.True(t, ok)
		for _, text := range texts {
			for _, faces := range []int{0, 1, 3} {
				ann := &vision.Annotation{FullText: text, FaceCount: faces, Labels: []vision.Label{{Name: "Paper", Confidence: 1}}}
				score := Score(profile, ann)
				assert.GreaterOrEqual(t, score, 0.0)
				assert.LessOrEqual(t, score, 100.0)
			}
		}
	}
}

func TestPassedMatchesThreshold(t *testing.T) {
	assert.True(t, newOutcome(StepIDBack, 70, ReasonNone).Passed)
	assert.False(t, newOutcome(StepIDBack, 69.99, ReasonNone).Passed)
	assert.Equal(t, 100.0, newOutcome(StepIDBack, 140, ReasonNone).Score)
}

func TestParseGatingMode(t *testing.T) {
	mode, err := ParseGatingMode("off")
	require.NoError(t, err)
	assert.Equal(t, GatingOff, mode)

	_, err = ParseGatingMode("lenient")
	assert.Error(t, err)
}
