package domain

import "github.com/google/uuid"

// Difficulty is the catalog difficulty of a vocabulary item.
type Difficulty string

// Catalog difficulties, easiest first.
const (
	DifficultyBeginner     Difficulty = "BEGINNER"
	DifficultyElementary   Difficulty = "ELEMENTARY"
	DifficultyIntermediate Difficulty = "INTERMEDIATE"
	DifficultyAdvanced     Difficulty = "ADVANCED"
	DifficultyExpert       Difficulty = "EXPERT"
)

// Item is the catalog view of a vocabulary item. The scheduler reads it but
// never modifies it.
type Item struct {
	ID         uuid.UUID  `json:"id"`
	Headword   string     `json:"headword"`
	Difficulty Difficulty `json:"difficulty"`
	ItemType   string     `json:"item_type"`
}
