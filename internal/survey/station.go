package survey

import (
	"encoding/json"

	"geovoxel.dev/internal/protocol"
	"geovoxel.dev/internal/schemas"
)

// Station is one deviation-survey measurement. TVD is true vertical depth
// in engineering units; angles are degrees.
type Station struct {
	TVD            float64 `json:"tvd"`
	AzimuthDeg     float64 `json:"azimuth"`
	InclinationDeg float64 `json:"inclination"`
}

// ParseStations decodes and validates a JSON survey. The sequence must have
// at least two stations, non-decreasing TVD, azimuth in [0,360) and
// inclination in [0,180]. Errors name the offending station index.
func ParseStations(b []byte) ([]Station, error) {
	var anyVal any
	if err := json.Unmarshal(b, &anyVal); err != nil {
		return nil, protocol.Faultf(protocol.KindValidation, "survey: %v", err)
	}
	if err := schemas.Survey.Validate(anyVal); err != nil {
		return nil, protocol.Faultf(protocol.KindValidation, "survey: %v", err)
	}
	var stations []Station
	if err := json.Unmarshal(b, &stations); err != nil {
		return nil, protocol.Faultf(protocol.KindValidation, "survey: %v", err)
	}
	if err := ValidateStations(stations); err != nil {
		return nil, err
	}
	return stations, nil
}

// ValidateStations re-checks the semantic constraints for stations built in
// code rather than parsed from JSON.
func ValidateStations(stations []Station) error {
	if len(stations) < 2 {
		return protocol.Faultf(protocol.KindValidation, "survey needs at least 2 stations, got %d", len(stations))
	}
	for i, s := range stations {
		if s.TVD < 0 {
			return protocol.Faultf(protocol.KindValidation, "station %d: negative tvd %v", i, s.TVD)
		}
		if s.AzimuthDeg < 0 || s.AzimuthDeg >= 360 {
			return protocol.Faultf(protocol.KindValidation, "station %d: azimuth %v out of [0,360)", i, s.AzimuthDeg)
		}
		if s.InclinationDeg < 0 || s.InclinationDeg > 180 {
			return protocol.Faultf(protocol.KindValidation, "station %d: inclination %v out of [0,180]", i, s.InclinationDeg)
		}
		if i > 0 && s.TVD < stations[i-1].TVD {
			return protocol.Faultf(protocol.KindValidation, "station %d: tvd %v decreases from %v", i, s.TVD, stations[i-1].TVD)
		}
	}
	return nil
}
