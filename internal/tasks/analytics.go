package tasks

import "github.com/soundscope/soundscope/internal/models"

// NormalizedFeatures lists the seven [0,1] audio features aggregated for the
// radar view, in display order.
var NormalizedFeatures = []string{
	"instrumentalness",
	"acousticness",
	"danceability",
	"energy",
	"liveness",
	"speechiness",
	"valence",
}

// FeatureMeans computes the mean of each normalized feature across all rows,
// shaped as {feature_name: mean_value} for radar-chart consumption.
//
// Rows missing a feature are excluded from that feature's mean. Features with
// no values at all are omitted; zero rows yield an empty map.
func FeatureMeans(rows []models.TrackRow) map[string]float64 {
	sums := make(map[string]float64, len(NormalizedFeatures))
	counts := make(map[string]int, len(NormalizedFeatures))

	for _, row := range rows {
		for name, value := range normalizedValues(row) {
			if value == nil {
				continue
			}
			sums[name] += *value
			counts[name]++
		}
	}

	means := make(map[string]float64, len(sums))
	for name, count := range counts {
		means[name] = sums[name] / float64(count)
	}
	return means
}

func normalizedValues(row models.TrackRow) map[string]*float64 {
	return map[string]*float64{
		"instrumentalness": row.Instrumentalness,
		"acousticness":     row.Acousticness,
		"danceability":     row.Danceability,
		"energy":           row.Energy,
		"liveness":         row.Liveness,
		"speechiness":      row.Speechiness,
		"valence":          row.Valence,
	}
}
