// SPDX-License-Identifier: MPL-2.0

package server

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strconv"
)

const (
	// zoneCount is the number of vertical zones the frame is split into.
	zoneCount = 3

	// defaultFrameWidth/Height are assumed when the request does not carry
	// frame dimensions.
	defaultFrameWidth  = 640
	defaultFrameHeight = 480
)

// vehicleLabels are the detection classes that count toward zone totals.
var vehicleLabels = []string{"car", "truck", "bus", "motorbike"}

var (
	// ErrWeightsMissing is returned when the weights asset is absent.
	ErrWeightsMissing = errors.New("weights asset missing")
	// ErrWeightsEmpty is returned when the weights asset is an empty file.
	ErrWeightsEmpty = errors.New("weights asset is empty")
)

type (
	// Detection is one detected object: bounding box, label, confidence.
	Detection struct {
		X1         int     `json:"x1"`
		Y1         int     `json:"y1"`
		X2         int     `json:"x2"`
		Y2         int     `json:"y2"`
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}

	// Frame is one decoded input image.
	Frame struct {
		Data   []byte
		Width  int
		Height int
	}

	// Analysis is the detector output: detections, per-zone vehicle
	// counts, and the busiest zone as a command string.
	Analysis struct {
		Detections []Detection    `json:"detections"`
		ZoneCounts map[string]int `json:"zone_counts"`
		Command    string         `json:"command"`
	}

	// Detector turns frames into analyses.
	Detector interface {
		Detect(frame Frame) (*Analysis, error)
	}

	// StubDetector is the deterministic reference detector. It is keyed to
	// the weights file only by existence and size; the same frame bytes
	// always produce the same analysis.
	StubDetector struct {
		weightsPath string
	}
)

// NewStubDetector creates a detector bound to a weights file. The file
// must exist and be non-empty or Detect fails, mirroring how a real model
// cannot serve without its weights.
func NewStubDetector(weightsPath string) *StubDetector {
	return &StubDetector{weightsPath: weightsPath}
}

// Verify checks the weights asset without running a detection.
func (d *StubDetector) Verify() error {
	info, err := os.Stat(d.weightsPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrWeightsMissing, d.weightsPath)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrWeightsEmpty, d.weightsPath)
	}
	return nil
}

// Detect produces a stable pseudo analysis for the frame. The digest of
// the frame bytes seeds box positions and labels, so tests and demos get
// repeatable output.
func (d *StubDetector) Detect(frame Frame) (*Analysis, error) {
	if err := d.Verify(); err != nil {
		return nil, err
	}

	width := frame.Width
	if width <= 0 {
		width = defaultFrameWidth
	}
	height := frame.Height
	if height <= 0 {
		height = defaultFrameHeight
	}

	digest := sha256.Sum256(frame.Data)
	// 0 to 4 detections per frame, seeded by the digest.
	n := int(digest[0]) % 5

	zoneWidth := width / zoneCount
	zoneCounts := make(map[string]int, zoneCount)
	for z := 1; z <= zoneCount; z++ {
		zoneCounts[strconv.Itoa(z)] = 0
	}

	detections := make([]Detection, 0, n)
	for i := 0; i < n; i++ {
		seed := binary.BigEndian.Uint32(digest[4*i+4 : 4*i+8])
		boxW := 40 + int(seed%96)
		boxH := 30 + int(seed>>8%72)
		x1 := int(seed>>16) % maxInt(width-boxW, 1)
		y1 := int(seed>>24) % maxInt(height-boxH, 1)
		label := vehicleLabels[int(seed)%len(vehicleLabels)]

		det := Detection{
			X1:         x1,
			Y1:         y1,
			X2:         x1 + boxW,
			Y2:         y1 + boxH,
			Label:      label,
			Confidence: 0.5 + float64(seed%50)/100,
		}
		detections = append(detections, det)

		centerX := (det.X1 + det.X2) / 2
		zone := centerX/maxInt(zoneWidth, 1) + 1
		if zone > zoneCount {
			zone = zoneCount
		}
		zoneCounts[strconv.Itoa(zone)]++
	}

	return &Analysis{
		Detections: detections,
		ZoneCounts: zoneCounts,
		Command:    busiestZone(zoneCounts),
	}, nil
}

// busiestZone returns the zone with the highest count, lowest zone number
// winning ties.
func busiestZone(counts map[string]int) string {
	best := "1"
	bestCount := -1
	for z := 1; z <= zoneCount; z++ {
		key := strconv.Itoa(z)
		if counts[key] > bestCount {
			best = key
			bestCount = counts[key]
		}
	}
	return best
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
