// package formatter renders the analytics track table and feature means to JSON and CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/soundscope/soundscope/internal/models"
)

// trackTableHeaders are the CSV columns, matching the analytics table shape.
var trackTableHeaders = []string{
	"track_id", "track_name", "track_number", "album_name",
	"key", "duration_ms", "time_signature",
	"loudness", "tempo",
	"instrumentalness", "acousticness", "danceability",
	"energy", "liveness", "speechiness", "valence",
}

// TableToCSV converts the analytics table to CSV. Null feature values render
// as empty cells.
func TableToCSV(rows []models.TrackRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(trackTableHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.TrackID,
			row.TrackName,
			strconv.Itoa(row.TrackNumber),
			row.AlbumName,
			intCell(row.Key),
			intCell(row.DurationMS),
			intCell(row.TimeSignature),
			floatCell(row.Loudness),
			floatCell(row.Tempo),
			floatCell(row.Instrumentalness),
			floatCell(row.Acousticness),
			floatCell(row.Danceability),
			floatCell(row.Energy),
			floatCell(row.Liveness),
			floatCell(row.Speechiness),
			floatCell(row.Valence),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// MeansToCSV converts the feature means to a two-column CSV in the given
// feature order.
func MeansToCSV(means map[string]float64, order []string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"feature", "mean"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, name := range order {
		mean, ok := means[name]
		if !ok {
			continue
		}
		record := []string{name, strconv.FormatFloat(mean, 'f', -1, 64)}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// MarshalJSON marshals data to JSON, optionally pretty-printed.
func MarshalJSON(data any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

// WriteFile writes rendered output to the given path.
func WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
