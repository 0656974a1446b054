/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal version records from the external API
  contract. Temperatures serialize as fixed-point strings so clients
  never see float formatting drift.

SEE ALSO:
  - handlers.go: Uses these types
  - forecast/types.go: The domain payload being projected
*/
package api

import (
	"time"

	"github.com/warp/forecast-engine/forecast"
	"github.com/warp/forecast-engine/ingest"
	"github.com/warp/forecast-engine/scd"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// VersionDTO represents one forecast version in API responses.
type VersionDTO struct {
	SurrogateID   string       `json:"surrogate_id"`
	BusinessKey   string       `json:"business_key"`
	Temperature   string       `json:"temperature"`
	ConvertedTemp string       `json:"converted_temp"`
	Condition     ConditionDTO `json:"condition"`
	ValidFrom     time.Time    `json:"valid_from"`
	ValidTo       *time.Time   `json:"valid_to,omitempty"`
	IsCurrent     bool         `json:"is_current"`
}

type ConditionDTO struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

// RunSummaryDTO reports what a manually triggered ingestion run did.
type RunSummaryDTO struct {
	Created   int      `json:"created"`
	Replaced  int      `json:"replaced"`
	Unchanged int      `json:"unchanged"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// =============================================================================
// MAPPING
// =============================================================================

func toVersionDTO(rec scd.VersionedRecord) VersionDTO {
	dto := VersionDTO{
		SurrogateID: string(rec.SurrogateID),
		BusinessKey: string(rec.BusinessKey),
		ValidFrom:   rec.ValidFrom,
		ValidTo:     rec.ValidTo,
		IsCurrent:   rec.IsCurrent,
	}
	if p, ok := rec.Payload.(forecast.Payload); ok {
		dto.Temperature = p.Temperature.String()
		dto.ConvertedTemp = p.ConvertedTemp.String()
		dto.Condition = ConditionDTO{
			Main:        p.Condition.Main,
			Description: p.Condition.Description,
		}
	}
	return dto
}

func toVersionDTOs(recs []scd.VersionedRecord) []VersionDTO {
	dtos := make([]VersionDTO, 0, len(recs))
	for _, rec := range recs {
		dtos = append(dtos, toVersionDTO(rec))
	}
	return dtos
}

func toRunSummaryDTO(s ingest.Summary) RunSummaryDTO {
	dto := RunSummaryDTO{
		Created:   s.Created,
		Replaced:  s.Replaced,
		Unchanged: s.Unchanged,
		Failed:    s.Failed,
	}
	for _, keyErr := range s.Errors {
		dto.Errors = append(dto.Errors, keyErr.Error())
	}
	return dto
}
