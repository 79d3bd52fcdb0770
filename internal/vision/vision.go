// Package vision is the boundary to the external document-analysis provider.
//
// It converts a document into a fixed Annotation contract (text, face count
// and labels) so scoring code never sees the provider's response shape.
// Unlike the validation layer, everything here propagates provider faults as
// *Error values.
package vision

import (
	"context"
	"strings"
)

// Feature is one kind of analysis the provider can run.
type Feature string

const (
	FeatureText  Feature = "TEXT"
	FeatureFace  Feature = "FACE"
	FeatureLabel Feature = "LABEL"
)

// Features is a set of requested analyses.
type Features map[Feature]struct{}

// NewFeatures builds a feature set.
func NewFeatures(fs ...Feature) Features {
	out := make(Features, len(fs))
	for _, f := range fs {
		out[f] = struct{}{}
	}
	return out
}

func (f Features) Has(feature Feature) bool {
	_, ok := f[feature]
	return ok
}

// Label is a detected visual feature with the provider's confidence in [0,1].
type Label struct {
	Name       string
	Confidence float64
}

// Annotation is the result of one analysis call.
type Annotation struct {
	FullText  string
	FaceCount int
	Labels    []Label
}

// LabelConfidence returns the highest confidence reported for name,
// compared case-insensitively.
func (a *Annotation) LabelConfidence(name string) (float64, bool) {
	best, found := 0.0, false
	for _, l := range a.Labels {
		if strings.EqualFold(l.Name, name) && (!found || l.Confidence > best) {
			best, found = l.Confidence, true
		}
	}
	return best, found
}

// Source identifies the document to analyse. Locator is preferred when the
// provider can read it in place; Content is sent inline otherwise.
type Source struct {
	Locator string
	Content []byte
}

// Analyzer runs the requested analyses over a document.
type Analyzer interface {
	Analyze(ctx context.Context, src Source, features Features) (*Annotation, error)
}

// TextExtractor pulls embedded text out of a PDF.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}
