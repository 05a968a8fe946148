package domain

import (
	"fmt"
	"math"
	"strings"
)

// ValidateQuiz rejects quizzes with no questions, duplicate options, or a
// correct answer that is not one of the question's options.
func ValidateQuiz(q Quiz) error {
	if len(q.Questions) == 0 {
		return &ValidationError{Field: "questions", Reason: "quiz has no questions"}
	}
	for i, question := range q.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		if strings.TrimSpace(question.Text) == "" {
			return &ValidationError{Field: field, Reason: "question text is empty"}
		}
		if len(question.Options) < 2 {
			return &ValidationError{Field: field, Reason: "question needs at least two options"}
		}
		seen := make(map[string]struct{}, len(question.Options))
		for _, opt := range question.Options {
			if _, dup := seen[opt]; dup {
				return &ValidationError{Field: field, Reason: fmt.Sprintf("duplicate option %q", opt)}
			}
			seen[opt] = struct{}{}
		}
		if _, ok := seen[question.CorrectAnswer]; !ok {
			return &ValidationError{Field: field, Reason: "correct answer is not among the options"}
		}
	}
	return nil
}

// ComputeScore grades a set of answers against a quiz. An answer is correct
// iff its trimmed value exactly equals the question's correct answer
// (case-sensitive). Score is totalCorrect/totalQuestions*100 rounded to two
// decimals; an empty quiz scores zero.
func ComputeScore(q Quiz, answers []UserAnswer) (score float64, totalCorrect int) {
	if len(q.Questions) == 0 {
		return 0, 0
	}
	byQuestion := make(map[string]string, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a.Answer
	}
	for _, question := range q.Questions {
		given, ok := byQuestion[question.ID]
		if !ok {
			continue
		}
		if strings.TrimSpace(given) == question.CorrectAnswer {
			totalCorrect++
		}
	}
	score = math.Round(float64(totalCorrect)/float64(len(q.Questions))*100*100) / 100
	return score, totalCorrect
}
