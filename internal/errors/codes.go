// Package errors provides structured error handling with i18n support.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// State machine errors
	CodeInvalidStateTransition Code = "CREATION_INVALID_STATE_TRANSITION"
	CodeUnknownFactKey         Code = "CREATION_UNKNOWN_FACT_KEY"
	CodeNoCommittedFacts       Code = "CREATION_NO_COMMITTED_FACTS"

	// Fact errors
	CodeFactEmptyKey          Code = "FACT_EMPTY_KEY"
	CodeFactInvalidConfidence Code = "FACT_INVALID_CONFIDENCE"
	CodeFactInvalidSource     Code = "FACT_INVALID_SOURCE"
	CodeFactInvalidValue      Code = "FACT_INVALID_VALUE"

	// Memory errors
	CodeMemoryInvalidLayer  Code = "MEMORY_INVALID_LAYER"
	CodeMemoryInvalidWeight Code = "MEMORY_INVALID_WEIGHT"
	CodeMemoryEmptyContent  Code = "MEMORY_EMPTY_CONTENT"

	// World state errors
	CodeWorldEmptyCampaignID Code = "WORLD_EMPTY_CAMPAIGN_ID"
	CodeWorldEmptyPatch      Code = "WORLD_EMPTY_PATCH"

	// External boundary errors
	CodeNarratorUnavailable Code = "NARRATOR_UNAVAILABLE"
	CodePersistenceFailure  Code = "PERSISTENCE_FAILURE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Campaign errors
	CodeCampaignEmptyID         Code = "CAMPAIGN_EMPTY_ID"
	CodeCampaignEmptyInput      Code = "CAMPAIGN_EMPTY_INPUT"
	CodeCampaignCharacterExists Code = "CAMPAIGN_CHARACTER_EXISTS"
)
