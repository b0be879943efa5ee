package domain

import (
	"errors"
	"testing"
	"time"
)

func TestChallengeTransitions(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	c := &Challenge{Status: ChallengeStatusDraft}

	if c.Status.CanJoin() {
		t.Errorf("A draft challenge must not accept participants")
	}
	if err := c.TransitionTo(ChallengeStatusActive, now); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected a draft to require publishing first, got %v", err)
	}
	if err := c.TransitionTo(ChallengeStatusPublished, now); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !c.Status.CanJoin() {
		t.Errorf("A published challenge accepts participants")
	}
	if err := c.TransitionTo(ChallengeStatusActive, now); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.TransitionTo(ChallengeStatusCompleted, now); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := c.TransitionTo(ChallengeStatusCancelled, now); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected a completed challenge to be final, got %v", err)
	}
}

func TestChallengeIsFull(t *testing.T) {
	c := &Challenge{MaxParticipants: 2, CurrentParticipants: 2}
	if !c.IsFull() {
		t.Errorf("Expected challenge at its limit to be full")
	}
	c.MaxParticipants = 0
	if c.IsFull() {
		t.Errorf("A zero limit means unlimited")
	}
}

func TestParticipationRecordProgress(t *testing.T) {
	now := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	p := &ChallengeParticipation{Status: ParticipationStatusRegistered}
	score, tasks := 80, 3

	if err := p.RecordProgress(&score, &tasks, 4, now); err != nil {
		t.Fatalf("RecordProgress: %v", err)
	}
	if p.Status != ParticipationStatusActive || p.ProgressPercentage != 75 {
		t.Errorf("Expected ACTIVE at 75%%, got %s at %v", p.Status, p.ProgressPercentage)
	}

	lower, over := 50, 9
	if err := p.RecordProgress(&lower, &over, 4, now); err != nil {
		t.Fatalf("RecordProgress: %v", err)
	}
	if p.CurrentScore != 50 || p.BestScore != 80 {
		t.Errorf("Expected current 50 and best 80, got %d and %d", p.CurrentScore, p.BestScore)
	}
	if p.CompletedTasks != 4 {
		t.Errorf("Expected completed tasks capped at 4, got %d", p.CompletedTasks)
	}

	negative := -1
	if err := p.RecordProgress(&negative, nil, 4, now); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected a negative score to be rejected, got %v", err)
	}

	if err := p.Complete(now); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if p.ProgressPercentage != 100 || p.CompletedAt == nil {
		t.Errorf("Expected full progress and a completion time")
	}
	if err := p.RecordProgress(&score, nil, 4, now); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected progress after completion to be rejected, got %v", err)
	}
	if err := p.Abandon(now); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected a completed participation not to be abandoned, got %v", err)
	}
}

func TestRankReward(t *testing.T) {
	tests := []struct {
		base, rank, want int
	}{
		{100, 1, 140},
		{100, 2, 130},
		{100, 3, 120},
		{100, 4, 100},
		{100, 0, 100},
		{55, 1, 77},
		{0, 1, 0},
	}
	for _, tt := range tests {
		if got := RankReward(tt.base, tt.rank); got != tt.want {
			t.Errorf("RankReward(%d, %d) = %d, want %d", tt.base, tt.rank, got, tt.want)
		}
	}
}
