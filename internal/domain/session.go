package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionType categorizes what a learning session is for.
type SessionType string

// Supported session types.
const (
	SessionTypeVocabularyLearning SessionType = "VOCABULARY_LEARNING"
	SessionTypeVocabularyReview   SessionType = "VOCABULARY_REVIEW"
	SessionTypeReadingPractice    SessionType = "READING_PRACTICE"
	SessionTypeListeningPractice  SessionType = "LISTENING_PRACTICE"
	SessionTypeSpeakingPractice   SessionType = "SPEAKING_PRACTICE"
	SessionTypeWritingPractice    SessionType = "WRITING_PRACTICE"
	SessionTypeGrammarPractice    SessionType = "GRAMMAR_PRACTICE"
	SessionTypeMixedPractice      SessionType = "MIXED_PRACTICE"
	SessionTypeAIConversation     SessionType = "AI_CONVERSATION"
	SessionTypeChallenge          SessionType = "CHALLENGE"
)

// IsValid reports whether t is a known session type.
func (t SessionType) IsValid() bool {
	switch t {
	case SessionTypeVocabularyLearning, SessionTypeVocabularyReview, SessionTypeReadingPractice,
		SessionTypeListeningPractice, SessionTypeSpeakingPractice, SessionTypeWritingPractice,
		SessionTypeGrammarPractice, SessionTypeMixedPractice, SessionTypeAIConversation,
		SessionTypeChallenge:
		return true
	}
	return false
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

// Session statuses.
const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusPaused    SessionStatus = "PAUSED"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusAbandoned SessionStatus = "ABANDONED"
)

// IsTerminal reports whether no further transitions are possible.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusAbandoned
}

// SessionSummary accumulates the outcomes of one learning session.
//
// Transitions are value methods that return a new snapshot; the receiver is
// never modified. A session belongs to one user and only one session per user
// may be ACTIVE at a time.
type SessionSummary struct {
	ID                uuid.UUID     `json:"id"`
	UserID            uuid.UUID     `json:"user_id"`
	SessionType       SessionType   `json:"session_type"`
	Status            SessionStatus `json:"status"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           *time.Time    `json:"end_time,omitempty"`
	PausedAt          *time.Time    `json:"paused_at,omitempty"`
	LastActivityAt    time.Time     `json:"last_activity_at"`
	WordsStudied      int           `json:"words_studied"`
	WordsMastered     int           `json:"words_mastered"`
	QuestionsAnswered int           `json:"questions_answered"`
	QuestionsCorrect  int           `json:"questions_correct"`
	PointsEarned      int           `json:"points_earned"`
	AccuracyRate      float64       `json:"accuracy_rate"`
	DurationSeconds   int           `json:"duration_seconds"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// AttemptResult is what the session needs to know about one applied attempt.
type AttemptResult struct {
	IsCorrect bool
	// FirstInSession is true when the item had not been reviewed since the
	// session started.
	FirstInSession bool
	// NewlyMastered is true when the attempt moved the item into MASTERED or above.
	NewlyMastered bool
	Points        int
	At            time.Time
}

// NewSession starts an ACTIVE session.
func NewSession(userID uuid.UUID, sessionType SessionType, now time.Time) (*SessionSummary, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUserID
	}
	if !sessionType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionType, sessionType)
	}

	return &SessionSummary{
		ID:             uuid.New(),
		UserID:         userID,
		SessionType:    sessionType,
		Status:         SessionStatusActive,
		StartTime:      now,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// OnAttempt folds one attempt into the running counters. Only ACTIVE sessions
// accept attempts.
func (s SessionSummary) OnAttempt(r AttemptResult) (SessionSummary, error) {
	if s.Status != SessionStatusActive {
		return s, fmt.Errorf("%w: cannot record attempt on %s session", ErrInvalidState, s.Status)
	}

	s.QuestionsAnswered++
	if r.IsCorrect {
		s.QuestionsCorrect++
	}
	if r.FirstInSession {
		s.WordsStudied++
	}
	if r.NewlyMastered {
		s.WordsMastered++
	}
	s.PointsEarned += r.Points
	s.AccuracyRate = AccuracyRate(s.QuestionsCorrect, s.QuestionsAnswered)
	s.LastActivityAt = r.At
	s.UpdatedAt = r.At
	return s, nil
}

// Pause suspends an ACTIVE session. Counters are kept.
func (s SessionSummary) Pause(now time.Time) (SessionSummary, error) {
	if s.Status != SessionStatusActive {
		return s, fmt.Errorf("%w: cannot pause %s session", ErrInvalidState, s.Status)
	}
	s.Status = SessionStatusPaused
	s.PausedAt = &now
	s.LastActivityAt = now
	s.UpdatedAt = now
	return s, nil
}

// Resume reactivates a PAUSED session without resetting counters.
func (s SessionSummary) Resume(now time.Time) (SessionSummary, error) {
	if s.Status != SessionStatusPaused {
		return s, fmt.Errorf("%w: cannot resume %s session", ErrInvalidState, s.Status)
	}
	s.Status = SessionStatusActive
	s.PausedAt = nil
	s.LastActivityAt = now
	s.UpdatedAt = now
	return s, nil
}

// End finalizes an ACTIVE or PAUSED session. Ending twice fails.
func (s SessionSummary) End(now time.Time) (SessionSummary, error) {
	if s.Status.IsTerminal() {
		return s, fmt.Errorf("%w: session already %s", ErrInvalidState, s.Status)
	}
	s.Status = SessionStatusCompleted
	s.finish(now)
	return s, nil
}

// Abandon marks a session that will receive no further attempts.
func (s SessionSummary) Abandon(now time.Time) (SessionSummary, error) {
	if s.Status.IsTerminal() {
		return s, fmt.Errorf("%w: session already %s", ErrInvalidState, s.Status)
	}
	s.Status = SessionStatusAbandoned
	s.finish(now)
	return s, nil
}

func (s *SessionSummary) finish(now time.Time) {
	end := now
	s.EndTime = &end
	s.PausedAt = nil
	s.AccuracyRate = AccuracyRate(s.QuestionsCorrect, s.QuestionsAnswered)
	s.DurationSeconds = int(now.Sub(s.StartTime) / time.Second)
	if s.DurationSeconds < 0 {
		s.DurationSeconds = 0
	}
	s.UpdatedAt = now
}

// IdlePolicy is how long an open session may go without activity before the
// sweep abandons it. PAUSED sessions have their own allowance.
type IdlePolicy struct {
	Active time.Duration
	Paused time.Duration
}

// Cutoffs returns the last-activity instants before which ACTIVE and PAUSED
// sessions count as idle at now.
func (p IdlePolicy) Cutoffs(now time.Time) (active, paused time.Time) {
	return now.Add(-p.Active), now.Add(-p.Paused)
}

// IsIdle reports whether an open session has exceeded its idle allowance.
func (s SessionSummary) IsIdle(now time.Time, p IdlePolicy) bool {
	quiet := now.Sub(s.LastActivityAt)
	switch s.Status {
	case SessionStatusActive:
		return quiet >= p.Active
	case SessionStatusPaused:
		return quiet >= p.Paused
	default:
		return false
	}
}
