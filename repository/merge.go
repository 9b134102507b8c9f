package repository

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"invest-desk/models"
	"invest-desk/series"
)

// mergeSeries adds incoming points whose date is not already present.
// Existing dates keep their stored price.
func mergeSeries(existing any, incoming []models.PricePoint) (merged []models.PricePoint, added []models.PricePoint) {
	merged = series.Unique(series.Normalize(existing))
	seen := make(map[string]struct{}, len(merged))
	for _, p := range merged {
		seen[p.Date] = struct{}{}
	}

	for _, p := range incoming {
		if p.Date == "" {
			continue
		}
		if _, ok := seen[p.Date]; ok {
			continue
		}
		seen[p.Date] = struct{}{}
		merged = append(merged, p)
		added = append(added, p)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Date < merged[j].Date })
	return merged, added
}

func encodeSeries(points []models.PricePoint) ([]byte, error) {
	if points == nil {
		points = []models.PricePoint{}
	}
	data, err := json.Marshal(points)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal price series: %w", err)
	}
	return data, nil
}

func encodeMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return data, nil
}

func decodeMetadata(data []byte) (map[string]any, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return meta, nil
}

// forecastMetadata is merged into a row's metadata whenever a forecast is saved
func forecastMetadata(run *models.ForecastRun) map[string]any {
	return map[string]any{
		"forecastRunId":       run.ID.String(),
		"forecastGeneratedAt": run.GeneratedAt.Format(time.RFC3339),
	}
}
