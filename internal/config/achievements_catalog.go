package config

import (
	"encoding/json"
	"os"
	"strings"

	contextutils "practicehub/internal/utils"

	"github.com/xeipuuv/gojsonschema"
)

// CatalogAchievement is one entry of the achievements catalog file. Criteria
// stays raw here; semantic validation happens against the models criteria
// types when the catalog is seeded.
type CatalogAchievement struct {
	Key          string          `json:"key"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Criteria     json.RawMessage `json:"criteria"`
	PointsReward int             `json:"points_reward"`
	Rarity       string          `json:"rarity"`
}

// achievementsCatalogSchema structurally validates the catalog file before
// any entry reaches the database seeder.
const achievementsCatalogSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["key", "name", "criteria", "points_reward", "rarity"],
    "properties": {
      "key": {"type": "string", "minLength": 1, "pattern": "^[a-z0-9_]+$"},
      "name": {"type": "string", "minLength": 1},
      "description": {"type": "string"},
      "criteria": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"type": "string", "minLength": 1},
          "count": {"type": "integer", "minimum": 1},
          "subject": {"type": "string"}
        }
      },
      "points_reward": {"type": "integer", "minimum": 0},
      "rarity": {"type": "string", "enum": ["common", "rare", "epic", "legendary"]}
    },
    "additionalProperties": false
  }
}`

// LoadAchievementsCatalog reads and validates the achievements catalog JSON
// file. Duplicate keys are rejected so the seeder cannot silently overwrite
// an entry.
func LoadAchievementsCatalog(path string) (result0 []CatalogAchievement, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read achievements catalog %s: %w", path, err)
	}

	schemaLoader := gojsonschema.NewStringLoader(achievementsCatalogSchema)
	docLoader := gojsonschema.NewBytesLoader(raw)
	validation, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to validate achievements catalog: %w", err)
	}
	if !validation.Valid() {
		var problems []string
		for _, desc := range validation.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, contextutils.ErrorWithContextf("achievements catalog %s is invalid: %s", path, strings.Join(problems, "; "))
	}

	var catalog []CatalogAchievement
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to parse achievements catalog: %w", err)
	}

	seen := make(map[string]bool, len(catalog))
	for _, entry := range catalog {
		if seen[entry.Key] {
			return nil, contextutils.ErrorWithContextf("achievements catalog %s has duplicate key %q", path, entry.Key)
		}
		seen[entry.Key] = true
	}

	return catalog, nil
}
