package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"intake/pkg/platform/circuit"
)

type annotateCapture struct {
	Requests []struct {
		Image struct {
			Content string `json:"content"`
			Source  struct {
				GcsImageURI string `json:"gcsImageUri"`
				ImageURI    string `json:"imageUri"`
			} `json:"source"`
		} `json:"image"`
		Features []struct {
			Type string `json:"type"`
		} `json:"features"`
	} `json:"requests"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *GoogleClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewGoogleClient(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestGoogleClient_Analyze(t *testing.T) {
	t.Run("maps text faces and labels", func(t *testing.T) {
		var captured annotateCapture
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			writeJSON(w, http.StatusOK, `{"responses":[{
				"fullTextAnnotation":{"text":"جمهورية مصر العربية\nبطاقة تحقيق الشخصية"},
				"faceAnnotations":[{"detectionConfidence":0.98}],
				"labelAnnotations":[{"description":"Font","score":0.91},{"description":"Paper","score":0.55}]
			}]}`)
		})

		a, err := c.Analyze(context.Background(),
			Source{Locator: "gs://intake-docs/front.jpg"},
			NewFeatures(FeatureText, FeatureFace, FeatureLabel))
		require.NoError(t, err)

		assert.Equal(t, "جمهورية مصر العربية\nبطاقة تحقيق الشخصية", a.FullText)
		assert.Equal(t, 1, a.FaceCount)
		conf, ok := a.LabelConfidence("font")
		assert.True(t, ok)
		assert.InDelta(t, 0.91, conf, 1e-9)

		require.Len(t, captured.Requests, 1)
		assert.Equal(t, "gs://intake-docs/front.jpg", captured.Requests[0].Image.Source.GcsImageURI)
		var types []string
		for _, f := range captured.Requests[0].Features {
			types = append(types, f.Type)
		}
		assert.ElementsMatch(t, []string{"TEXT_DETECTION", "FACE_DETECTION", "LABEL_DETECTION"}, types)
	})

	t.Run("requests only the asked features and sends inline content", func(t *testing.T) {
		var captured annotateCapture
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			writeJSON(w, http.StatusOK, `{"responses":[{"faceAnnotations":[{},{}]}]}`)
		})

		a, err := c.Analyze(context.Background(), Source{Locator: "mem://x", Content: []byte("jpeg")}, NewFeatures(FeatureFace))
		require.NoError(t, err)
		assert.Equal(t, 2, a.FaceCount)
		assert.Empty(t, a.FullText)

		require.Len(t, captured.Requests[0].Features, 1)
		assert.Equal(t, "FACE_DETECTION", captured.Requests[0].Features[0].Type)
		assert.Equal(t, "anBlZw==", captured.Requests[0].Image.Content)
	})

	t.Run("per-image error status is bad data", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`)
		})
		_, err := c.Analyze(context.Background(), Source{Locator: "gs://b/o"}, NewFeatures(FeatureText))
		require.Error(t, err)
		assert.Equal(t, ErrorBadData, Category(err))
	})

	t.Run("server errors are provider outages", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, `{"error":{"code":503,"message":"unavailable"}}`)
		})
		_, err := c.Analyze(context.Background(), Source{Locator: "gs://b/o"}, NewFeatures(FeatureText))
		require.Error(t, err)
		assert.Equal(t, ErrorProviderOutage, Category(err))
	})

	t.Run("quota errors are rate limited", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota"}}`)
		})
		_, err := c.Analyze(context.Background(), Source{Locator: "gs://b/o"}, NewFeatures(FeatureLabel))
		assert.Equal(t, ErrorRateLimited, Category(err))
	})

	t.Run("deadline maps to timeout", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := c.Analyze(ctx, Source{Locator: "gs://b/o"}, NewFeatures(FeatureText))
		assert.Equal(t, ErrorTimeout, Category(err))
	})

	t.Run("no source is rejected before calling out", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		})
		_, err := c.Analyze(context.Background(), Source{}, NewFeatures(FeatureText))
		assert.Equal(t, ErrorBadData, Category(err))
		assert.Zero(t, calls.Load())
	})
}

type failingAnalyzer struct {
	err   error
	calls int
}

func (f *failingAnalyzer) Analyze(context.Context, Source, Features) (*Annotation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Annotation{FaceCount: 1}, nil
}

func TestGuarded(t *testing.T) {
	t.Run("opens after outages and fails fast", func(t *testing.T) {
		inner := &failingAnalyzer{err: NewError(ErrorProviderOutage, "test", "down", nil)}
		g := NewGuarded(inner, circuit.New("vision", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour)), nil)

		for i := 0; i < 2; i++ {
			_, err := g.Analyze(context.Background(), Source{}, nil)
			assert.Equal(t, ErrorProviderOutage, Category(err))
		}
		_, err := g.Analyze(context.Background(), Source{}, nil)
		assert.Equal(t, ErrorCircuitOpen, Category(err))
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("bad data does not trip the breaker", func(t *testing.T) {
		inner := &failingAnalyzer{err: NewError(ErrorBadData, "test", "corrupt", nil)}
		g := NewGuarded(inner, circuit.New("vision", circuit.WithFailureThreshold(1)), nil)

		for i := 0; i < 3; i++ {
			_, err := g.Analyze(context.Background(), Source{}, nil)
			assert.Equal(t, ErrorBadData, Category(err))
		}
		assert.Equal(t, 3, inner.calls)
	})
}
