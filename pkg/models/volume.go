package models

import (
	"encoding/json"
	"strings"
)

// VolumeTimes are the fixed anchors the trading-value commentary is keyed by
var VolumeTimes = []string{"09:30", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "15:30"}

// RatingLabels are the star-rated market assessments shown under the chart
var RatingLabels = []string{"미장 상태", "시장 난이도", "상한가 트렌드"}

// VolumeAnnotation holds the per-date trading-value commentary, ratings and comment
type VolumeAnnotation struct {
	Blocks  map[string]string  `json:"blocks"`
	Rating  map[string]float64 `json:"rating,omitempty"`
	Comment string             `json:"comment,omitempty"`
}

// NewVolumeAnnotation returns an empty annotation
func NewVolumeAnnotation() *VolumeAnnotation {
	return &VolumeAnnotation{Blocks: map[string]string{}}
}

// UnmarshalJSON decodes the flat source object: time keys map to text blobs,
// "rating" and "comment" are special. Unknown non-string values are ignored.
func (v *VolumeAnnotation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := VolumeAnnotation{Blocks: map[string]string{}}
	for key, value := range raw {
		switch key {
		case "rating":
			var ratings map[string]FlexFloat
			if err := json.Unmarshal(value, &ratings); err != nil {
				continue
			}
			out.Rating = make(map[string]float64, len(ratings))
			for label, r := range ratings {
				out.Rating[label] = float64(r)
			}
		case "comment":
			_ = json.Unmarshal(value, &out.Comment)
		case "blocks":
			// already-normalized payload (e.g. from cache)
			var blocks map[string]string
			if err := json.Unmarshal(value, &blocks); err == nil {
				for k, b := range blocks {
					out.Blocks[k] = b
				}
			}
		default:
			var text string
			if err := json.Unmarshal(value, &text); err == nil {
				out.Blocks[key] = text
			}
		}
	}
	*v = out
	return nil
}

// Lines splits the text blob for a time anchor into display lines
func (v *VolumeAnnotation) Lines(timeKey string) []string {
	if v == nil {
		return nil
	}
	text, ok := v.Blocks[timeKey]
	if !ok || text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// RatingFor returns the rating for a label, 0 if absent
func (v *VolumeAnnotation) RatingFor(label string) float64 {
	if v == nil || v.Rating == nil {
		return 0
	}
	return v.Rating[label]
}
