package flow

import "github.com/StockHamster/market-calendar/pkg/models"

// Star is the fill state of one rating star
type Star string

const (
	StarFilled Star = "filled"
	StarHalf   Star = "half"
	StarEmpty  Star = "empty"
)

// MaxStars is the rating scale
const MaxStars = 5

// Stars renders a 0..5 value: star i is filled when value >= i+1, half when
// value >= i+0.5.
func Stars(value float64) []Star {
	out := make([]Star, MaxStars)
	for i := range out {
		f := float64(i)
		switch {
		case value >= f+1:
			out[i] = StarFilled
		case value >= f+0.5:
			out[i] = StarHalf
		default:
			out[i] = StarEmpty
		}
	}
	return out
}

// RatingRow is one labelled star row under the chart
type RatingRow struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Stars []Star  `json:"stars"`
}

// Ratings builds the fixed rating rows; missing ratings show as zero
func Ratings(v *models.VolumeAnnotation) []RatingRow {
	rows := make([]RatingRow, 0, len(models.RatingLabels))
	for _, label := range models.RatingLabels {
		var value float64
		if v != nil {
			value = v.RatingFor(label)
		}
		rows = append(rows, RatingRow{Label: label, Value: value, Stars: Stars(value)})
	}
	return rows
}
