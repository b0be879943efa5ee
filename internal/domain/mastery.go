package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MasteryLevel is an ordered stage summarizing long-term retention of an item.
type MasteryLevel int

// Mastery levels in ascending order.
const (
	MasteryNew MasteryLevel = iota
	MasteryLearning
	MasteryFamiliar
	MasteryMastered
	MasteryExpert
)

var masteryLevelNames = [...]string{"NEW", "LEARNING", "FAMILIAR", "MASTERED", "EXPERT"}

// AllMasteryLevels lists every level from weakest to strongest.
func AllMasteryLevels() []MasteryLevel {
	return []MasteryLevel{MasteryNew, MasteryLearning, MasteryFamiliar, MasteryMastered, MasteryExpert}
}

// IsValid reports whether l is one of the defined levels.
func (l MasteryLevel) IsValid() bool {
	return l >= MasteryNew && l <= MasteryExpert
}

func (l MasteryLevel) String() string {
	if !l.IsValid() {
		return fmt.Sprintf("MasteryLevel(%d)", int(l))
	}
	return masteryLevelNames[l]
}

// Next returns the level one step up, saturating at EXPERT.
func (l MasteryLevel) Next() MasteryLevel {
	if l >= MasteryExpert {
		return MasteryExpert
	}
	return l + 1
}

// Prev returns the level one step down, saturating at NEW.
func (l MasteryLevel) Prev() MasteryLevel {
	if l <= MasteryNew {
		return MasteryNew
	}
	return l - 1
}

// ParseMasteryLevel parses the upper-case level name.
func ParseMasteryLevel(s string) (MasteryLevel, error) {
	for i, name := range masteryLevelNames {
		if strings.EqualFold(s, name) {
			return MasteryLevel(i), nil
		}
	}
	return MasteryNew, fmt.Errorf("%w: %q", ErrInvalidMasteryLevel, s)
}

// MarshalText encodes the level as its name.
func (l MasteryLevel) MarshalText() ([]byte, error) {
	if !l.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMasteryLevel, int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name.
func (l *MasteryLevel) UnmarshalText(b []byte) error {
	parsed, err := ParseMasteryLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Scheduling defaults for a freshly created record.
const (
	DefaultEaseFactor   = 2.5
	MinEaseFactor       = 1.3
	InitialIntervalDays = 1
)

// MasteryRecord tracks a user's progress on one vocabulary item.
// There is exactly one record per (UserID, ItemID).
type MasteryRecord struct {
	UserID             uuid.UUID    `json:"user_id"`
	ItemID             uuid.UUID    `json:"item_id"`
	MasteryLevel       MasteryLevel `json:"mastery_level"`
	StudyCount         int          `json:"study_count"`
	CorrectCount       int          `json:"correct_count"`
	WrongCount         int          `json:"wrong_count"`
	AccuracyRate       float64      `json:"accuracy_rate"` // correct/study, derived
	EaseFactor         float64      `json:"ease_factor"`
	ReviewIntervalDays int          `json:"review_interval_days"`
	RepetitionCount    int          `json:"repetition_count"` // consecutive correct answers
	TotalStudySeconds  int          `json:"total_study_seconds"`
	LastStudySeconds   int          `json:"last_study_seconds"`
	IsFavorite         bool         `json:"is_favorite"`
	IsDifficult        bool         `json:"is_difficult"`
	FirstLearnedAt     *time.Time   `json:"first_learned_at,omitempty"`
	LastReviewedAt     *time.Time   `json:"last_reviewed_at,omitempty"`
	NextReviewAt       time.Time    `json:"next_review_at"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// NewMasteryRecord creates a NEW record for first exposure to an item.
// The record is due immediately.
func NewMasteryRecord(userID, itemID uuid.UUID, now time.Time) (*MasteryRecord, error) {
	rec := &MasteryRecord{
		UserID:             userID,
		ItemID:             itemID,
		MasteryLevel:       MasteryNew,
		EaseFactor:         DefaultEaseFactor,
		ReviewIntervalDays: InitialIntervalDays,
		NextReviewAt:       now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}

	return rec, nil
}

// Validate checks the record's structural invariants.
func (r *MasteryRecord) Validate() error {
	if r.UserID == uuid.Nil {
		return ErrEmptyUserID
	}
	if r.ItemID == uuid.Nil {
		return ErrEmptyItemID
	}
	if !r.MasteryLevel.IsValid() {
		return fmt.Errorf("%w: mastery level %d", ErrInvalidMasteryRecord, int(r.MasteryLevel))
	}
	if r.EaseFactor < MinEaseFactor {
		return fmt.Errorf("%w: ease factor %.4f below %.1f", ErrInvalidMasteryRecord, r.EaseFactor, MinEaseFactor)
	}
	if r.ReviewIntervalDays < 1 {
		return fmt.Errorf("%w: review interval %d", ErrInvalidMasteryRecord, r.ReviewIntervalDays)
	}
	if r.RepetitionCount < 0 {
		return fmt.Errorf("%w: repetition count %d", ErrInvalidMasteryRecord, r.RepetitionCount)
	}
	if r.CorrectCount < 0 || r.WrongCount < 0 || r.StudyCount != r.CorrectCount+r.WrongCount {
		return fmt.Errorf("%w: study %d != correct %d + wrong %d",
			ErrInvalidMasteryRecord, r.StudyCount, r.CorrectCount, r.WrongCount)
	}
	if r.AccuracyRate != AccuracyRate(r.CorrectCount, r.StudyCount) {
		return fmt.Errorf("%w: accuracy rate out of sync with counters", ErrInvalidMasteryRecord)
	}
	if r.LastReviewedAt != nil && r.NextReviewAt.Before(*r.LastReviewedAt) {
		return fmt.Errorf("%w: next review before last review", ErrInvalidMasteryRecord)
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *MasteryRecord) Clone() *MasteryRecord {
	c := *r
	if r.FirstLearnedAt != nil {
		t := *r.FirstLearnedAt
		c.FirstLearnedAt = &t
	}
	if r.LastReviewedAt != nil {
		t := *r.LastReviewedAt
		c.LastReviewedAt = &t
	}
	return &c
}

// IsDue reports whether the record should be reviewed at asOf.
func (r *MasteryRecord) IsDue(asOf time.Time) bool {
	return !r.NextReviewAt.After(asOf)
}

// AccuracyRate returns correct/total, or 0 when total is 0.
func AccuracyRate(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total)
}
