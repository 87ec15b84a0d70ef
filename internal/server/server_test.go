// SPDX-License-Identifier: MPL-2.0

package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeWeights(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yolov8n.pt")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestServer(t *testing.T, weightsPath string) *httptest.Server {
	t.Helper()
	s, err := New(Options{
		Host:     "127.0.0.1",
		Port:     8000,
		Detector: NewStubDetector(weightsPath),
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postDetect(t *testing.T, ts *httptest.Server, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	res, err := http.Post(ts.URL+"/v1/detect", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, writeWeights(t, []byte("weights")))
	res, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", res.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestDetect_ReturnsZoneCounts(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, writeWeights(t, []byte("weights")))
	image := base64.StdEncoding.EncodeToString([]byte("frame-bytes"))

	res := postDetect(t, ts, map[string]any{"image": image, "width": 640, "height": 480})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	var analysis Analysis
	if err := json.NewDecoder(res.Body).Decode(&analysis); err != nil {
		t.Fatal(err)
	}
	if len(analysis.ZoneCounts) != 3 {
		t.Errorf("zone_counts = %v, want 3 zones", analysis.ZoneCounts)
	}
	switch analysis.Command {
	case "1", "2", "3":
	default:
		t.Errorf("command = %q, want a zone id", analysis.Command)
	}

	total := 0
	for _, c := range analysis.ZoneCounts {
		total += c
	}
	if total != len(analysis.Detections) {
		t.Errorf("zone totals %d != detections %d", total, len(analysis.Detections))
	}
}

func TestDetect_Deterministic(t *testing.T) {
	t.Parallel()

	detector := NewStubDetector(writeWeights(t, []byte("weights")))
	frame := Frame{Data: []byte("same-bytes"), Width: 640, Height: 480}

	first, err := detector.Detect(frame)
	if err != nil {
		t.Fatal(err)
	}
	second, err := detector.Detect(frame)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical frames must produce identical analyses")
	}
}

func TestDetect_BadRequests(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, writeWeights(t, []byte("weights")))

	tests := []struct {
		name string
		body any
	}{
		{name: "missing image", body: map[string]any{}},
		{name: "invalid base64", body: map[string]any{"image": "not-base64!!!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := postDetect(t, ts, tt.body)
			if res.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", res.StatusCode)
			}
		})
	}
}

func TestDetect_MissingWeightsIsServiceFault(t *testing.T) {
	t.Parallel()

	missing, err := New(Options{Detector: NewStubDetector(filepath.Join(t.TempDir(), "absent.pt"))})
	if err != nil {
		t.Fatal(err)
	}
	missingTS := httptest.NewServer(missing.Handler())
	t.Cleanup(missingTS.Close)

	image := base64.StdEncoding.EncodeToString([]byte("frame"))
	payload, _ := json.Marshal(map[string]any{"image": image})
	res, err := http.Post(missingTS.URL+"/v1/detect", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", res.StatusCode)
	}
}

func TestStubDetector_Verify(t *testing.T) {
	t.Parallel()

	if err := NewStubDetector(writeWeights(t, []byte("w"))).Verify(); err != nil {
		t.Errorf("Verify() error = %v", err)
	}

	err := NewStubDetector(writeWeights(t, nil)).Verify()
	if !errors.Is(err, ErrWeightsEmpty) {
		t.Errorf("error = %v, want ErrWeightsEmpty", err)
	}

	err = NewStubDetector(filepath.Join(t.TempDir(), "absent.pt")).Verify()
	if !errors.Is(err, ErrWeightsMissing) {
		t.Errorf("error = %v, want ErrWeightsMissing", err)
	}
}
