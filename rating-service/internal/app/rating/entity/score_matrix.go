package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

const (
	MinScore = 1
	MaxScore = 5
)

// ScoreMatrix хранит оценки по категориям для одной сессии оценки.
//
// Aggregate показывает среднее только по выставленным категориям,
// а IsSubmittable требует оценки во всех категориях. Это разные правила:
// пользователь видит промежуточное среднее, но отправить оценку не может,
// пока не заполнит все категории.
type ScoreMatrix struct {
	categories []string
	scores     map[string]int
	aggregate  float64
}

func NewScoreMatrix(categories []string) (*ScoreMatrix, error) {
	if len(categories) == 0 {
		return nil, ErrNoCategories
	}

	m := &ScoreMatrix{
		categories: make([]string, 0, len(categories)),
		scores:     make(map[string]int, len(categories)),
	}
	for _, category := range categories {
		if strings.TrimSpace(category) == "" {
			return nil, ErrInvalidCategory
		}
		if _, exists := m.scores[category]; exists {
			return nil, fmt.Errorf("%w: duplicate %q", ErrInvalidCategory, category)
		}
		m.categories = append(m.categories, category)
		m.scores[category] = 0
	}

	return m, nil
}

// SetScore выставляет оценку категории и пересчитывает среднее
func (m *ScoreMatrix) SetScore(category string, value int) error {
	if _, ok := m.scores[category]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if value < MinScore || value > MaxScore {
		return ErrScoreOutOfRange
	}

	m.scores[category] = value
	m.recompute()
	return nil
}

func (m *ScoreMatrix) Score(category string) int {
	return m.scores[category]
}

func (m *ScoreMatrix) Categories() []string {
	out := make([]string, len(m.categories))
	copy(out, m.categories)
	return out
}

// Aggregate - среднее по категориям со score > 0, округленное до одного знака.
// 0 означает, что ни одна категория еще не оценена
func (m *ScoreMatrix) Aggregate() float64 {
	return m.aggregate
}

func (m *ScoreMatrix) IsSubmittable() bool {
	for _, category := range m.categories {
		if !validScore(m.scores[category]) {
			return false
		}
	}
	return true
}

// Missing возвращает категории без оценки в исходном порядке
func (m *ScoreMatrix) Missing() []string {
	var missing []string
	for _, category := range m.categories {
		if !validScore(m.scores[category]) {
			missing = append(missing, category)
		}
	}
	return missing
}

func (m *ScoreMatrix) CategoryScores() []CategoryScore {
	out := make([]CategoryScore, 0, len(m.categories))
	for _, category := range m.categories {
		out = append(out, CategoryScore{Category: category, Score: m.scores[category]})
	}
	return out
}

func (m *ScoreMatrix) recompute() {
	sum, count := 0, 0
	for _, category := range m.categories {
		if score := m.scores[category]; score > 0 {
			sum += score
			count++
		}
	}
	if count == 0 {
		m.aggregate = 0
		return
	}
	m.aggregate = math.Round(float64(sum)/float64(count)*10) / 10
}

// MarshalJSON сериализует матрицу как упорядоченный список [{category, score}]
func (m *ScoreMatrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.CategoryScores())
}

func (m *ScoreMatrix) UnmarshalJSON(data []byte) error {
	var scores []CategoryScore
	if err := json.Unmarshal(data, &scores); err != nil {
		return err
	}

	categories := make([]string, 0, len(scores))
	for _, cs := range scores {
		categories = append(categories, cs.Category)
	}
	restored, err := NewScoreMatrix(categories)
	if err != nil {
		return err
	}
	for _, cs := range scores {
		if cs.Score == 0 {
			continue
		}
		if err := restored.SetScore(cs.Category, cs.Score); err != nil {
			return err
		}
	}

	*m = *restored
	return nil
}

func validScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}
