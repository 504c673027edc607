package i18n

// Error codes must match the codes defined in internal/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
var enUSCatalog = NewCatalog("en-US", map[string]string{
	"CREATION_INVALID_STATE_TRANSITION": "That action is not allowed while the character is {{.State}}",
	"CREATION_UNKNOWN_FACT_KEY":         "Required fact key {{.Key}} is not defined",
	"CREATION_NO_COMMITTED_FACTS":       "There is nothing to undo yet",
	"FACT_EMPTY_KEY":                    "Fact key cannot be empty",
	"FACT_INVALID_CONFIDENCE":           "Fact confidence must be between 0 and 1",
	"FACT_INVALID_SOURCE":               "Fact source {{.Source}} is not recognized",
	"FACT_INVALID_VALUE":                "Fact value type is not supported",
	"MEMORY_INVALID_LAYER":              "Memory layer {{.Layer}} is not recognized",
	"MEMORY_INVALID_WEIGHT":             "Emotional weight must be between 0 and 1",
	"MEMORY_EMPTY_CONTENT":              "Memory content cannot be empty",
	"WORLD_EMPTY_CAMPAIGN_ID":           "Campaign id is required",
	"WORLD_EMPTY_PATCH":                 "World state patch cannot be empty",
	"NARRATOR_UNAVAILABLE":              "The narrator is offline; a fallback narration was used",
	"PERSISTENCE_FAILURE":               "Your last action could not be saved; please retry",
	"NOT_FOUND":                         "The requested record was not found",
	"CAMPAIGN_EMPTY_ID":                 "Campaign id is required",
	"CAMPAIGN_EMPTY_INPUT":              "Player input cannot be empty",
	"CAMPAIGN_CHARACTER_EXISTS":         "This campaign already has a character",
})
