package persona

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/companionlabs/companion/internal/domain"
)

// QuestionCount is the number of single-choice quiz questions.
const QuestionCount = 10

// contribution is one answer's effect on the score board.
type contribution struct {
	persona    ID
	points     int
	visual     int
	minimalist int
}

// scoringTable maps question index (0-based) and answer choice to its
// contribution. Answers are 1-based; a missing choice contributes nothing
// but Score treats it as a violated precondition.
var scoringTable = [QuestionCount]map[int]contribution{
	// Q1: ideal weekend activity.
	{
		1: {persona: Zee, points: 10, visual: 2},
		2: {persona: Olivia, points: 10, minimalist: 2},
		3: {persona: Sean, points: 10},
		4: {persona: Frank, points: 10, minimalist: 2},
	},
	// Q2: preferred communication style.
	{
		1: {persona: Max, points: 10, visual: 2},
		2: {persona: Olivia, points: 10, minimalist: 2},
		3: {persona: Grace, points: 10},
		4: {persona: Frank, points: 10},
	},
	// Q3: humor vs. seriousness.
	{
		1: {persona: Max, points: 10, visual: 2},
		2: {persona: Zee, points: 10},
		3: {persona: Olivia, points: 10, minimalist: 2},
	},
	// Q4: technology comfort level.
	{
		1: {persona: Zee, points: 10, visual: 3},
		2: {persona: Jill, points: 10},
		3: {persona: Leo, points: 10, minimalist: 3},
	},
	// Q5: emotional support vs. task efficiency.
	{
		1: {persona: Sophia, points: 15, visual: 2},
		2: {persona: Jill, points: 15},
		3: {persona: Olivia, points: 15, minimalist: 2},
	},
	// Q6: reaction to stress.
	{
		1: {persona: Max, points: 15},
		2: {persona: Sean, points: 15},
		3: {persona: Olivia, points: 15, minimalist: 2},
		4: {persona: Frank, points: 15},
	},
	// Q7: creative vs. practical thinking.
	{
		1: {persona: Arlo, points: 10, visual: 3},
		2: {persona: Max, points: 10},
		3: {persona: Olivia, points: 10, minimalist: 3},
	},
	// Q8: personality compatibility.
	{
		1: {persona: Dante, points: 15, visual: 2},
		2: {persona: Sean, points: 15},
		3: {persona: Sophia, points: 15},
		4: {persona: Olivia, points: 15, minimalist: 2},
	},
	// Q9: inclusivity and diversity.
	{
		1: {persona: Zee, points: 10, visual: 2},
		2: {persona: Buddy, points: 10},
		3: {persona: Alex, points: 10, minimalist: 2},
	},
	// Q10: long-term goals.
	{
		1: {persona: Olivia, points: 15, minimalist: 2},
		2: {persona: Arlo, points: 15, visual: 3},
		3: {persona: Leo, points: 15},
		4: {persona: Max, points: 15},
	},
}

// ScoreBoard accumulates per-persona points plus the two style counters.
// Created fresh per quiz attempt and discarded after submission.
type ScoreBoard struct {
	Personas   map[ID]int
	Visual     int
	Minimalist int
}

// NewScoreBoard returns a board with every persona at zero.
func NewScoreBoard() *ScoreBoard {
	scores := make(map[ID]int, len(All))
	for _, p := range All {
		scores[p] = 0
	}
	return &ScoreBoard{Personas: scores}
}

// Score applies all ten answers to a fresh board. Every question must be
// answered: callers gate submission on completeness, so a zero or
// out-of-range choice is a precondition violation, not a soft skip.
func Score(answers [QuestionCount]int) (*ScoreBoard, error) {
	board := NewScoreBoard()
	for i, choice := range answers {
		if choice == 0 {
			return nil, fmt.Errorf("question %d is unanswered", i+1)
		}
		c, ok := scoringTable[i][choice]
		if !ok {
			return nil, fmt.Errorf("question %d has no choice %d", i+1, choice)
		}
		board.Personas[c.persona] += c.points
		board.Visual += c.visual
		board.Minimalist += c.minimalist
	}
	return board, nil
}

// UIMode derives the interface mode from the style counters. Ties resolve
// to simple.
func (b *ScoreBoard) UIMode() domain.UIMode {
	if b.Visual > b.Minimalist {
		return domain.UIModeFancy
	}
	return domain.UIModeSimple
}

// Ranking returns all personas sorted by descending score, stable on ties
// in declaration order.
func (b *ScoreBoard) Ranking() []ID {
	ranked := make([]ID, len(All))
	copy(ranked, All)
	sort.SliceStable(ranked, func(i, j int) bool {
		return b.Personas[ranked[i]] > b.Personas[ranked[j]]
	})
	return ranked
}

// TopRecommendations returns the highest-scoring personas.
const TopRecommendations = 3

// Recommendation is one suggested persona with its render-ready fields.
type Recommendation struct {
	Persona   ID     `json:"persona"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarURL"`
	Score     int    `json:"score"`
}

// PreferenceWriter persists derived preference values. The quiz saves the
// UI mode before recommendations are rendered.
type PreferenceWriter interface {
	UpdatePreferences(ctx context.Context, fields map[string]string) error
}

// QuizResult is the outcome of a completed quiz attempt.
type QuizResult struct {
	UIMode          domain.UIMode
	Recommendations []Recommendation
}

// Submit scores the answers, persists the derived UI mode through prefs,
// and returns the top persona recommendations with mode-appropriate
// avatars. A persistence failure is logged but does not discard the
// recommendations; the next save retries the mode.
func Submit(ctx context.Context, answers [QuestionCount]int, prefs PreferenceWriter) (*QuizResult, error) {
	board, err := Score(answers)
	if err != nil {
		return nil, err
	}

	mode := board.UIMode()
	if prefs != nil {
		if err := prefs.UpdatePreferences(ctx, map[string]string{"UImode": string(mode)}); err != nil {
			slog.Warn("Failed to persist quiz UI mode", "mode", mode, "error", err)
		}
	}

	ranked := board.Ranking()[:TopRecommendations]
	recs := make([]Recommendation, 0, TopRecommendations)
	for _, id := range ranked {
		recs = append(recs, Recommendation{
			Persona:   id,
			Name:      DisplayName(id),
			AvatarURL: AvatarURL(id, mode),
			Score:     board.Personas[id],
		})
	}

	return &QuizResult{UIMode: mode, Recommendations: recs}, nil
}
