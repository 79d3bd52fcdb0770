package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"
)

const providerGoogle = "google-vision"

// GoogleClient calls the Cloud Vision images:annotate endpoint.
type GoogleClient struct {
	svc *visionapi.Service
}

// NewGoogleClient builds a client from Google API client options, for example
// option.WithCredentialsFile or option.WithEndpoint.
func NewGoogleClient(ctx context.Context, opts ...option.ClientOption) (*GoogleClient, error) {
	svc, err := visionapi.NewService(ctx, opts...)
	if err != nil {
		return nil, NewError(ErrorAuthentication, providerGoogle, "create vision service", err)
	}
	return &GoogleClient{svc: svc}, nil
}

// Analyze requests exactly the features asked for in a single annotate call.
func (c *GoogleClient) Analyze(ctx context.Context, src Source, features Features) (*Annotation, error) {
	if len(features) == 0 {
		return &Annotation{}, nil
	}
	image, err := buildImage(src)
	if err != nil {
		return nil, err
	}

	req := &visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{{
			Image:    image,
			Features: buildFeatures(features),
		}},
	}
	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, classify(providerGoogle, err)
	}
	if len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, NewError(ErrorBadData, providerGoogle, "empty annotate response", nil)
	}
	r := resp.Responses[0]
	if r.Error != nil && r.Error.Code != 0 {
		return nil, NewError(ErrorBadData, providerGoogle, r.Error.Message, nil)
	}
	return toAnnotation(r, features), nil
}

func buildImage(src Source) (*visionapi.Image, error) {
	switch {
	case strings.HasPrefix(src.Locator, "gs://"):
		return &visionapi.Image{Source: &visionapi.ImageSource{GcsImageUri: src.Locator}}, nil
	case len(src.Content) > 0:
		return &visionapi.Image{Content: base64.StdEncoding.EncodeToString(src.Content)}, nil
	case strings.HasPrefix(src.Locator, "https://"), strings.HasPrefix(src.Locator, "http://"):
		return &visionapi.Image{Source: &visionapi.ImageSource{ImageUri: src.Locator}}, nil
	default:
		return nil, NewError(ErrorBadData, providerGoogle, "document has no readable source", errors.New("empty source"))
	}
}

func buildFeatures(features Features) []*visionapi.Feature {
	var out []*visionapi.Feature
	if features.Has(FeatureText) {
		out = append(out, &visionapi.Feature{Type: "TEXT_DETECTION"})
	}
	if features.Has(FeatureFace) {
		out = append(out, &visionapi.Feature{Type: "FACE_DETECTION"})
	}
	if features.Has(FeatureLabel) {
		out = append(out, &visionapi.Feature{Type: "LABEL_DETECTION"})
	}
	return out
}

func toAnnotation(r *visionapi.AnnotateImageResponse, features Features) *Annotation {
	a := &Annotation{}
	if features.Has(FeatureText) {
		switch {
		case r.FullTextAnnotation != nil:
			a.FullText = r.FullTextAnnotation.Text
		case len(r.TextAnnotations) > 0 && r.TextAnnotations[0] != nil:
			a.FullText = r.TextAnnotations[0].Description
		}
	}
	if features.Has(FeatureFace) {
		a.FaceCount = len(r.FaceAnnotations)
	}
	if features.Has(FeatureLabel) {
		for _, l := range r.LabelAnnotations {
			if l == nil {
				continue
			}
			a.Labels = append(a.Labels, Label{Name: l.Description, Confidence: l.Score})
		}
	}
	return a
}
