package loam

// SeedMetadata represents the header of a seed document stored in a loam repository.
// It uses "mapstructure" tags to match standard Frontmatter/YAML keys.
type SeedMetadata struct {
	ID          string `json:"id" mapstructure:"id"`
	Description string `json:"description,omitempty" mapstructure:"description"`

	// Schema declares the document record. Either the inline notation
	// ("{title:text,tags?:list<string>}") or a name→type mapping, where a
	// trailing '?' on a name marks it optional.
	Schema any `json:"schema,omitempty" mapstructure:"schema"`

	// Entries holds the seed document inline, for files without a body (JSON).
	// Each entry has the envelope shape {"name": ..., "seed": {...}}.
	Entries []any `json:"entries,omitempty" mapstructure:"entries"`

	// General Metadata
	Metadata map[string]string `json:"metadata,omitempty" mapstructure:"metadata"`
}
