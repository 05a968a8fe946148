package syncer

import (
	"github.com/google/uuid"

	"quizkeeper/internal/domain"
)

// MergeQuizzes reconciles two quiz collections into one. It is
// last-write-wins at the granularity of a whole quiz record, not per field:
// for an id present in both inputs the record with the strictly greater
// modification timestamp survives, and on a tie the record from a wins
// (insertion order gives the first argument precedence). Concurrent edits to
// different fields of the same quiz on two devices will drop one device's
// edit; this is deliberately not a field-level CRDT merge.
//
// The result keeps a's ordering with unseen records from b appended, so the
// operation is idempotent and commutative over (id, lastModified) pairs.
func MergeQuizzes(a, b []domain.Quiz) []domain.Quiz {
	merged := make([]domain.Quiz, 0, len(a)+len(b))
	index := make(map[uuid.UUID]int, len(a)+len(b))

	for _, src := range [][]domain.Quiz{a, b} {
		for _, quiz := range src {
			at, seen := index[quiz.ID]
			if !seen {
				index[quiz.ID] = len(merged)
				merged = append(merged, quiz)
				continue
			}
			if quiz.ModTime().After(merged[at].ModTime()) {
				merged[at] = quiz
			}
		}
	}
	return merged
}
