// Package attempt drives one quiz-taking session, in two flavors: take
// (submit-only, graded at the end) and practice (check-then-feedback per
// question).
package attempt

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"quizkeeper/internal/domain"
)

// QuestionState is the per-question progression.
type QuestionState string

const (
	StateUnanswered QuestionState = "unanswered"
	StateTentative  QuestionState = "tentativelySelected"
	StateChecked    QuestionState = "checked"
	StateCommitted  QuestionState = "committed"
)

// QuestionProgress is a read-only view of one question's state.
type QuestionProgress struct {
	Question        domain.Question
	State           QuestionState
	Selected        string // tentative or committed value
	IsCorrect       *bool  // set by check; nil when never checked
	FirstTryCorrect *bool  // outcome of the first check only
}

type record struct {
	question        domain.Question
	state           QuestionState
	tentative       string
	answer          string
	isCorrect       *bool
	firstTryCorrect *bool
}

// Options carries test hooks; zero values select production behavior.
type Options struct {
	Clock func() time.Time
	Tick  time.Duration // countdown granularity, default 1s
	Rand  *rand.Rand
}

// Attempt is the state machine for a single run-through of a quiz. Question
// and option order are shuffled once at construction (when configured) and
// stay fixed for the whole attempt.
type Attempt struct {
	quiz  domain.Quiz
	mode  domain.AttemptMode
	clock func() time.Time
	tick  time.Duration

	mu        sync.Mutex
	records   []*record
	current   int
	startedAt time.Time
	remaining int
	cancel    context.CancelFunc
	finishing bool // set before any async finish work; guards double finish
	result    *domain.QuizResult
	onFinish  func(domain.QuizResult)
}

func New(quiz domain.Quiz, mode domain.AttemptMode) *Attempt {
	return NewWithOptions(quiz, mode, Options{})
}

func NewWithOptions(quiz domain.Quiz, mode domain.AttemptMode, opts Options) *Attempt {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = time.Second
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	questions := make([]domain.Question, len(quiz.Questions))
	copy(questions, quiz.Questions)
	if quiz.Config.ShuffleQuestions {
		rnd.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}
	records := make([]*record, len(questions))
	for i, q := range questions {
		if quiz.Config.ShuffleOptions {
			options := make([]string, len(q.Options))
			copy(options, q.Options)
			rnd.Shuffle(len(options), func(i, j int) {
				options[i], options[j] = options[j], options[i]
			})
			q.Options = options
		}
		records[i] = &record{question: q, state: StateUnanswered}
	}

	return &Attempt{
		quiz:      quiz,
		mode:      mode,
		clock:     clock,
		tick:      tick,
		records:   records,
		remaining: quiz.Config.TimeLimitSec,
	}
}

// Start begins the attempt: elapsed-time tracking always, plus the countdown
// when a time limit is configured. onFinish fires exactly once, whichever of
// timer expiry or an explicit finish wins.
func (a *Attempt) Start(onFinish func(domain.QuizResult)) {
	a.mu.Lock()
	a.startedAt = a.clock()
	a.onFinish = onFinish
	limit := a.quiz.Config.TimeLimitSec
	var ctx context.Context
	if limit > 0 {
		ctx, a.cancel = context.WithCancel(context.Background())
	}
	a.mu.Unlock()

	if limit > 0 {
		go a.runCountdown(ctx)
	}
}

func (a *Attempt) runCountdown(ctx context.Context) {
	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			a.remaining--
			expired := a.remaining <= 0
			a.mu.Unlock()
			if expired {
				a.Finish() // time's up fires the terminal transition once
				return
			}
		}
	}
}

// Mode returns the attempt flavor.
func (a *Attempt) Mode() domain.AttemptMode { return a.mode }

// Remaining reports countdown seconds left (0 when no limit is configured).
func (a *Attempt) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remaining
}

// Current returns the active question index and its progress view.
func (a *Attempt) Current() (int, QuestionProgress) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current, a.viewLocked(a.current)
}

// Progress returns the view for every question in attempt order.
func (a *Attempt) Progress() []QuestionProgress {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]QuestionProgress, len(a.records))
	for i := range a.records {
		out[i] = a.viewLocked(i)
	}
	return out
}

func (a *Attempt) viewLocked(i int) QuestionProgress {
	r := a.records[i]
	selected := r.tentative
	if r.state == StateCommitted {
		selected = r.answer
	}
	return QuestionProgress{
		Question:        r.question,
		State:           r.state,
		Selected:        selected,
		IsCorrect:       r.isCorrect,
		FirstTryCorrect: r.firstTryCorrect,
	}
}

// Select records a tentative choice for the current question. Reselecting
// just changes the tentative value. A checked practice answer is locked
// until the user advances; a committed take answer re-opens as tentative.
func (a *Attempt) Select(option string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finishing {
		return domain.ErrAttemptFinished
	}
	r := a.records[a.current]
	if a.mode == domain.ModePractice && r.state == StateChecked {
		return domain.ErrAnswerLocked
	}
	if r.state == StateCommitted {
		// Take mode backward navigation re-opened this question.
		r.answer = ""
	}
	r.tentative = option
	r.state = StateTentative
	return nil
}

// Check grades the current question's tentative selection (practice mode
// only), freezing it and revealing correctness plus the explanation. The
// first check also fixes firstTryCorrect for the question.
func (a *Attempt) Check() (bool, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finishing {
		return false, "", domain.ErrAttemptFinished
	}
	if a.mode != domain.ModePractice {
		return false, "", domain.ErrCheckUnavailable
	}
	r := a.records[a.current]
	if r.state != StateTentative {
		return false, "", domain.ErrAnswerLocked
	}

	correct := strings.TrimSpace(r.tentative) == r.question.CorrectAnswer
	r.state = StateChecked
	r.isCorrect = &correct
	if r.firstTryCorrect == nil {
		first := correct
		r.firstTryCorrect = &first
	}
	return correct, r.question.Explanation, nil
}

// Advance commits the current question's tentative value (possibly empty for
// a skip) and moves forward. Advancing past the last question finishes the
// attempt. In practice mode a skip leaves isCorrect nil, distinguishing it
// from an explicit wrong check.
func (a *Attempt) Advance() {
	a.mu.Lock()
	if a.finishing {
		a.mu.Unlock()
		return
	}
	a.commitLocked(a.current)
	last := a.current >= len(a.records)-1
	if !last {
		a.current++
	}
	a.mu.Unlock()
	if last {
		a.Finish()
	}
}

// Back moves to the previous question (take mode), re-opening a committed
// answer for change.
func (a *Attempt) Back() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finishing || a.mode != domain.ModeTake || a.current == 0 {
		return
	}
	a.current--
	r := a.records[a.current]
	if r.state == StateCommitted {
		r.tentative = r.answer
		r.state = StateTentative
	}
}

func (a *Attempt) commitLocked(i int) {
	r := a.records[i]
	if r.state == StateCommitted {
		return
	}
	r.answer = r.tentative
	r.state = StateCommitted
}

// Finish is the terminal transition: it commits any pending tentative
// answer, computes the result and fires the completion callback. It is
// idempotent; only the first firing (manual submit or timer expiry, whichever
// races ahead) produces a result.
func (a *Attempt) Finish() (domain.QuizResult, bool) {
	a.mu.Lock()
	if a.finishing {
		result := a.result
		a.mu.Unlock()
		if result != nil {
			return *result, false
		}
		return domain.QuizResult{}, false
	}
	a.finishing = true

	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	for i := range a.records {
		a.commitLocked(i)
	}

	answers := make([]domain.UserAnswer, len(a.records))
	for i, r := range a.records {
		answers[i] = domain.UserAnswer{QuestionID: r.question.ID, Answer: r.answer}
	}
	score, totalCorrect := domain.ComputeScore(a.quiz, answers)

	now := a.clock()
	elapsed := int(now.Sub(a.startedAt).Round(time.Second) / time.Second)
	if elapsed < 1 {
		elapsed = 1 // a result must never record a zero or negative duration
	}

	result := domain.QuizResult{
		QuizID:         a.quiz.ID,
		UserID:         a.quiz.UserID,
		Score:          score,
		Answers:        answers,
		TotalCorrect:   totalCorrect,
		TotalQuestions: len(a.quiz.Questions),
		TimeTakenSec:   elapsed,
		SourceMode:     a.mode,
		CreatedAt:      now,
	}
	a.result = &result
	onFinish := a.onFinish
	a.mu.Unlock()

	if onFinish != nil {
		onFinish(result)
	}
	return result, true
}

// Result returns the computed result once the attempt has finished.
func (a *Attempt) Result() (domain.QuizResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return domain.QuizResult{}, false
	}
	return *a.result, true
}
