package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StudyType identifies the exercise format an attempt was made in.
type StudyType string

// Supported study types.
const (
	StudyTypeRecognition    StudyType = "RECOGNITION"
	StudyTypeRecall         StudyType = "RECALL"
	StudyTypeSpelling       StudyType = "SPELLING"
	StudyTypeListening      StudyType = "LISTENING"
	StudyTypeReading        StudyType = "READING"
	StudyTypeSentenceMaking StudyType = "SENTENCE_MAKING"
	StudyTypeSynonymAntonym StudyType = "SYNONYM_ANTONYM"
	StudyTypeFillBlank      StudyType = "FILL_BLANK"
	StudyTypeMultipleChoice StudyType = "MULTIPLE_CHOICE"
	StudyTypeTrueFalse      StudyType = "TRUE_FALSE"
	StudyTypeReview         StudyType = "REVIEW"
	StudyTypeQuickReview    StudyType = "QUICK_REVIEW"
	StudyTypeIntensiveStudy StudyType = "INTENSIVE_STUDY"
	StudyTypeCasualBrowse   StudyType = "CASUAL_BROWSE"
)

var validStudyTypes = map[StudyType]struct{}{
	StudyTypeRecognition:    {},
	StudyTypeRecall:         {},
	StudyTypeSpelling:       {},
	StudyTypeListening:      {},
	StudyTypeReading:        {},
	StudyTypeSentenceMaking: {},
	StudyTypeSynonymAntonym: {},
	StudyTypeFillBlank:      {},
	StudyTypeMultipleChoice: {},
	StudyTypeTrueFalse:      {},
	StudyTypeReview:         {},
	StudyTypeQuickReview:    {},
	StudyTypeIntensiveStudy: {},
	StudyTypeCasualBrowse:   {},
}

// IsValid reports whether t is a known study type.
func (t StudyType) IsValid() bool {
	_, ok := validStudyTypes[t]
	return ok
}

// StudyAttempt is a single review outcome submitted by a learning client.
// It is never stored; it is folded into a MasteryRecord and the active session.
type StudyAttempt struct {
	UserID           uuid.UUID
	ItemID           uuid.UUID
	IsCorrect        bool
	StudyType        StudyType
	TimeSpentSeconds int
	// Grade is an optional SM-2 grade (0-5). Zero means "derive from IsCorrect".
	Grade     int
	Timestamp time.Time
}

// MaxTimeSpentSeconds bounds the time reported for one attempt.
const MaxTimeSpentSeconds = 24 * 60 * 60

// Validate rejects malformed attempts before any state is touched.
func (a StudyAttempt) Validate() error {
	if a.UserID == uuid.Nil {
		return ErrEmptyUserID
	}
	if a.ItemID == uuid.Nil {
		return ErrEmptyItemID
	}
	if !a.StudyType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStudyType, a.StudyType)
	}
	if a.TimeSpentSeconds < 0 || a.TimeSpentSeconds > MaxTimeSpentSeconds {
		return ErrInvalidTimeSpent
	}
	if a.Grade < 0 || a.Grade > 5 {
		return fmt.Errorf("%w: %d", ErrInvalidGrade, a.Grade)
	}
	return nil
}
