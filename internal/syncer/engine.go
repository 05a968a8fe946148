// Package syncer is the reconciliation engine: it owns the in-memory quiz
// collection and keeps it consistent across the local store, the remote
// backend and the optional drive backup.
package syncer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"quizkeeper/internal/backup"
	"quizkeeper/internal/domain"
	"quizkeeper/internal/store"
)

// RemoteAPI is the slice of the backend client the engine needs.
type RemoteAPI interface {
	GetUserQuizzes(ctx context.Context, userID string) ([]domain.Quiz, error)
	CreateQuiz(ctx context.Context, quiz domain.Quiz, ownerID string) (domain.Quiz, error)
	UpdateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	DeleteQuiz(ctx context.Context, quizID uuid.UUID) (bool, error)
	SaveResult(ctx context.Context, result domain.QuizResult) error
}

// Config tunes background-push scheduling and retry behavior.
type Config struct {
	Debounce        time.Duration // quiet period after a mutation before pushing
	MinPushInterval time.Duration // automatic pushes closer together than this are skipped
	AutoWindow      time.Duration // rolling window for automatic attempt counting
	AutoLimit       int
	ManualWindow    time.Duration // rolling window for user-initiated sync
	ManualLimit     int
	MaxAttempts     int // total attempts per network operation
	RetryBase       time.Duration
	SuccessDisplay  time.Duration // how long the success state lingers before idle
	PushTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Debounce:        2 * time.Second,
		MinPushInterval: 10 * time.Second,
		AutoWindow:      time.Minute,
		AutoLimit:       6,
		ManualWindow:    time.Minute,
		ManualLimit:     3,
		MaxAttempts:     3,
		RetryBase:       500 * time.Millisecond,
		SuccessDisplay:  3 * time.Second,
		PushTimeout:     time.Minute,
	}
}

// pushConcurrency caps in-flight remote operations during a push.
const pushConcurrency = 4

type session struct {
	userID string
	token  string
}

// StateListener observes sync-state transitions (a status indicator, not a
// blocking surface).
type StateListener func(state domain.SyncState, message string)

// Engine merges and schedules. It is the only component that writes the
// merged collection back to the local store or pushes to remote/cloud.
type Engine struct {
	store  store.Store
	remote RemoteAPI
	backup backup.Backup // nil disables the drive snapshot
	cfg    Config
	clock  func() time.Time

	debounce     *Debouncer
	autoAttempts *attemptWindow
	manAttempts  *attemptWindow

	mu             sync.Mutex
	quizzes        []domain.Quiz
	pendingDeletes map[uuid.UUID]struct{}
	sess           *session
	state          domain.SyncState
	stateMsg       string
	lastPush       time.Time
	pushing        bool
	closed         bool
	successTimer   *time.Timer
	listener       StateListener
}

func NewEngine(st store.Store, remote RemoteAPI, bkp backup.Backup, cfg Config) *Engine {
	return newEngineWithClock(st, remote, bkp, cfg, time.Now)
}

// NewEngineWithClock is test-only for deterministic rate-limit timing.
func NewEngineWithClock(st store.Store, remote RemoteAPI, bkp backup.Backup, cfg Config, now func() time.Time) *Engine {
	return newEngineWithClock(st, remote, bkp, cfg, now)
}

func newEngineWithClock(st store.Store, remote RemoteAPI, bkp backup.Backup, cfg Config, now func() time.Time) *Engine {
	return &Engine{
		store:          st,
		remote:         remote,
		backup:         bkp,
		cfg:            cfg,
		clock:          now,
		debounce:       NewDebouncer(cfg.Debounce),
		autoAttempts:   newAttemptWindow(cfg.AutoWindow, cfg.AutoLimit, now),
		manAttempts:    newAttemptWindow(cfg.ManualWindow, cfg.ManualLimit, now),
		quizzes:        []domain.Quiz{},
		pendingDeletes: make(map[uuid.UUID]struct{}),
	}
}

// SetStateListener registers the sync-status observer.
func (e *Engine) SetStateListener(fn StateListener) {
	e.mu.Lock()
	e.listener = fn
	e.mu.Unlock()
}

// SetSession installs the authenticated identity and credentials. Written
// only by the session controller.
func (e *Engine) SetSession(userID, accessToken string) {
	e.mu.Lock()
	e.sess = &session{userID: userID, token: accessToken}
	e.mu.Unlock()
}

// Reset returns the engine to the signed-out, quiz-less state: in-flight
// timers cancelled, collection cleared locally and in memory, sync state idle.
func (e *Engine) Reset() {
	e.debounce.CancelPending()
	e.mu.Lock()
	e.sess = nil
	e.quizzes = []domain.Quiz{}
	e.pendingDeletes = make(map[uuid.UUID]struct{})
	e.state = domain.SyncIdle
	e.stateMsg = ""
	if e.successTimer != nil {
		e.successTimer.Stop()
		e.successTimer = nil
	}
	e.mu.Unlock()
	e.autoAttempts.reset()
	e.manAttempts.reset()
	if err := e.store.SaveQuizzes(nil); err != nil {
		log.Printf("syncer: clear local collection: %v", err)
	}
}

// Close cancels pending background work. The engine must not be used after.
func (e *Engine) Close() {
	e.debounce.CancelPending()
	e.mu.Lock()
	e.closed = true
	if e.successTimer != nil {
		e.successTimer.Stop()
		e.successTimer = nil
	}
	e.mu.Unlock()
}

// State returns the current sync state and its message.
func (e *Engine) State() (domain.SyncState, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.stateMsg
}

// Quizzes returns a copy of the merged collection.
func (e *Engine) Quizzes() []domain.Quiz {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Quiz, len(e.quizzes))
	copy(out, e.quizzes)
	return out
}

// Quiz looks a quiz up by id.
func (e *Engine) Quiz(id uuid.UUID) (domain.Quiz, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, q := range e.quizzes {
		if q.ID == id {
			return q, true
		}
	}
	return domain.Quiz{}, false
}

// Load runs the initial three-way merge: local store first, then the remote
// collection when signed in, then the drive snapshot when enabled. Repeated
// runs converge because the merge is idempotent for the max-by-timestamp
// rule. A sync failure leaves the local copy authoritative.
func (e *Engine) Load(ctx context.Context) error {
	local := e.store.GetAllQuizzes()

	e.mu.Lock()
	e.quizzes = local
	sess := e.sess
	e.mu.Unlock()

	if sess == nil {
		return nil
	}

	var remoteQuizzes []domain.Quiz
	err := withRetry(ctx, e.cfg.MaxAttempts, e.cfg.RetryBase, func() error {
		var opErr error
		remoteQuizzes, opErr = e.remote.GetUserQuizzes(ctx, sess.userID)
		return opErr
	})
	if err != nil {
		e.setState(domain.SyncError, syncFailureMessage(err))
		return err
	}

	merged := MergeQuizzes(local, remoteQuizzes)
	e.replaceCollection(merged)

	if e.backup != nil {
		cloud, err := e.backup.Load(ctx, sess.token)
		if err != nil {
			e.setState(domain.SyncError, syncFailureMessage(err))
			return err
		}
		if cloud == nil {
			// No backup file yet: bootstrap it from the merged collection.
			err := withRetry(ctx, e.cfg.MaxAttempts, e.cfg.RetryBase, func() error {
				return e.backup.Save(ctx, sess.token, merged)
			})
			if err != nil {
				e.setState(domain.SyncError, syncFailureMessage(err))
				return err
			}
		} else {
			merged = MergeQuizzes(merged, cloud)
			e.replaceCollection(merged)
			// Fold the cloud's wins back into remote and cloud stores.
			e.scheduleAutoPush()
		}
	}

	now := e.clock()
	if err := e.store.SaveLastSyncedAt(now); err != nil {
		log.Printf("syncer: save last-synced timestamp: %v", err)
	}
	e.mu.Lock()
	e.lastPush = now
	e.mu.Unlock()
	e.setState(domain.SyncSuccess, "")
	return nil
}

// AddQuiz validates and inserts a quiz, persists locally and schedules a
// background push.
func (e *Engine) AddQuiz(quiz domain.Quiz) (domain.Quiz, error) {
	if err := domain.ValidateQuiz(quiz); err != nil {
		return domain.Quiz{}, err
	}
	now := e.clock()
	if quiz.ID == uuid.Nil {
		quiz.ID = uuid.New()
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = now
	}
	quiz.LastModified = now

	e.mu.Lock()
	if quiz.UserID == "" && e.sess != nil {
		quiz.UserID = e.sess.userID
	}
	e.quizzes = append(e.quizzes, quiz)
	delete(e.pendingDeletes, quiz.ID)
	err := e.saveLocalLocked()
	e.mu.Unlock()
	if err != nil {
		return domain.Quiz{}, err
	}
	e.scheduleAutoPush()
	return quiz, nil
}

// UpdateQuiz replaces a stored quiz wholesale and bumps LastModified.
func (e *Engine) UpdateQuiz(quiz domain.Quiz) (domain.Quiz, error) {
	if err := domain.ValidateQuiz(quiz); err != nil {
		return domain.Quiz{}, err
	}
	quiz.LastModified = e.clock()

	e.mu.Lock()
	found := false
	for i := range e.quizzes {
		if e.quizzes[i].ID == quiz.ID {
			// ID and creation time are immutable.
			quiz.CreatedAt = e.quizzes[i].CreatedAt
			if quiz.UserID == "" {
				quiz.UserID = e.quizzes[i].UserID
			}
			e.quizzes[i] = quiz
			found = true
			break
		}
	}
	if !found {
		e.mu.Unlock()
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	err := e.saveLocalLocked()
	e.mu.Unlock()
	if err != nil {
		return domain.Quiz{}, err
	}
	e.scheduleAutoPush()
	return quiz, nil
}

// DeleteQuiz removes a quiz locally and records the deletion so the next
// push removes it remotely instead of resurrecting it from the merge.
func (e *Engine) DeleteQuiz(id uuid.UUID) error {
	e.mu.Lock()
	found := false
	kept := e.quizzes[:0]
	for _, q := range e.quizzes {
		if q.ID == id {
			found = true
			continue
		}
		kept = append(kept, q)
	}
	e.quizzes = kept
	if !found {
		e.mu.Unlock()
		return domain.ErrQuizNotFound
	}
	e.pendingDeletes[id] = struct{}{}
	err := e.saveLocalLocked()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.scheduleAutoPush()
	return nil
}

// AdoptLocalQuizzes assigns ownerless quizzes to userID (the one-time
// migration run on sign-in) and returns how many were adopted.
func (e *Engine) AdoptLocalQuizzes(userID string) int {
	e.mu.Lock()
	adopted := 0
	for i := range e.quizzes {
		if e.quizzes[i].UserID == "" {
			e.quizzes[i].UserID = userID
			adopted++
		}
	}
	var err error
	if adopted > 0 {
		err = e.saveLocalLocked()
	}
	e.mu.Unlock()
	if err != nil {
		log.Printf("syncer: persist adopted quizzes: %v", err)
	}
	if adopted > 0 {
		e.scheduleAutoPush()
	}
	return adopted
}

// SaveResult persists a completed attempt locally and, when signed in,
// records it in the remote history. The local write never rolls back on a
// remote failure.
func (e *Engine) SaveResult(ctx context.Context, result domain.QuizResult) error {
	if err := e.store.SaveLastResult(result); err != nil {
		log.Printf("syncer: save last result: %v", err)
	}

	e.mu.Lock()
	sess := e.sess
	e.mu.Unlock()
	if sess == nil {
		return nil
	}
	result.UserID = sess.userID
	return withRetry(ctx, e.cfg.MaxAttempts, e.cfg.RetryBase, func() error {
		return e.remote.SaveResult(ctx, result)
	})
}

// SyncNow runs a user-initiated sync pass, subject to the manual attempt cap.
func (e *Engine) SyncNow(ctx context.Context) error {
	e.mu.Lock()
	sess := e.sess
	e.mu.Unlock()
	if sess == nil {
		return domain.ErrNotSignedIn
	}
	if !e.manAttempts.allow() {
		e.setState(domain.SyncError, "sync rate limited, try again shortly")
		return domain.ErrSyncRateLimited
	}
	return e.push(ctx)
}

func (e *Engine) scheduleAutoPush() {
	e.mu.Lock()
	if e.closed || e.sess == nil {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.debounce.Schedule(e.autoPush)
}

func (e *Engine) autoPush() {
	e.mu.Lock()
	if e.closed || e.sess == nil || e.pushing {
		e.mu.Unlock()
		return
	}
	// A push this close to the previous one is skipped, not queued; the next
	// mutation re-arms the debounce.
	if e.cfg.MinPushInterval > 0 && !e.lastPush.IsZero() && e.clock().Sub(e.lastPush) < e.cfg.MinPushInterval {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if !e.autoAttempts.allow() {
		e.setState(domain.SyncError, "background sync rate limited")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PushTimeout)
	defer cancel()
	if err := e.push(ctx); err != nil {
		log.Printf("syncer: background push failed: %v", err)
	}
}

// push pulls the remote collection, merges, applies pending deletions,
// upserts anything the remote is missing or has stale, and refreshes the
// drive snapshot. Once the merged collection is fixed, the per-quiz remote
// operations and the drive write fan out on a bounded errgroup.
func (e *Engine) push(ctx context.Context) error {
	e.mu.Lock()
	if e.sess == nil {
		e.mu.Unlock()
		return domain.ErrNotSignedIn
	}
	sess := *e.sess
	local := make([]domain.Quiz, len(e.quizzes))
	copy(local, e.quizzes)
	deletes := make(map[uuid.UUID]struct{}, len(e.pendingDeletes))
	for id := range e.pendingDeletes {
		deletes[id] = struct{}{}
	}
	e.pushing = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.pushing = false
		e.mu.Unlock()
	}()

	e.setState(domain.SyncSyncing, "")

	var remoteQuizzes []domain.Quiz
	err := withRetry(ctx, e.cfg.MaxAttempts, e.cfg.RetryBase, func() error {
		var opErr error
		remoteQuizzes, opErr = e.remote.GetUserQuizzes(ctx, sess.userID)
		return opErr
	})
	if err != nil {
		e.setState(domain.SyncError, syncFailureMessage(err))
		return err
	}

	remoteByID := make(map[uuid.UUID]domain.Quiz, len(remoteQuizzes))
	surviving := remoteQuizzes[:0]
	for _, q := range remoteQuizzes {
		if _, gone := deletes[q.ID]; gone {
			continue
		}
		remoteByID[q.ID] = q
		surviving = append(surviving, q)
	}
	merged := MergeQuizzes(local, surviving)

	// Deleted IDs never appear in merged, so per-quiz operations touch
	// disjoint records and can run concurrently.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pushConcurrency)
	for id := range deletes {
		id := id
		g.Go(func() error {
			return withRetry(gctx, e.cfg.MaxAttempts, e.cfg.RetryBase, func() error {
				_, opErr := e.remote.DeleteQuiz(gctx, id)
				return opErr
			})
		})
	}
	for _, q := range merged {
		q := q
		existing, ok := remoteByID[q.ID]
		var op func() error
		switch {
		case !ok:
			op = func() error {
				_, opErr := e.remote.CreateQuiz(gctx, q, sess.userID)
				return opErr
			}
		case q.ModTime().After(existing.ModTime()):
			op = func() error {
				_, opErr := e.remote.UpdateQuiz(gctx, q)
				return opErr
			}
		default:
			continue
		}
		g.Go(func() error {
			return withRetry(gctx, e.cfg.MaxAttempts, e.cfg.RetryBase, op)
		})
	}
	if e.backup != nil {
		g.Go(func() error {
			return withRetry(gctx, e.cfg.MaxAttempts, e.cfg.RetryBase, func() error {
				return e.backup.Save(gctx, sess.token, merged)
			})
		})
	}
	err = g.Wait()

	now := e.clock()
	e.mu.Lock()
	// Fold the push result under whatever mutated while it was in flight;
	// newer local edits win by timestamp, deletions stay deleted.
	folded := MergeQuizzes(e.quizzes, merged)
	kept := folded[:0]
	for _, q := range folded {
		if _, gone := e.pendingDeletes[q.ID]; gone {
			continue
		}
		kept = append(kept, q)
	}
	e.quizzes = kept
	saveErr := e.saveLocalLocked()
	if err == nil {
		for id := range deletes {
			delete(e.pendingDeletes, id)
		}
		e.lastPush = now
	}
	e.mu.Unlock()
	if saveErr != nil {
		log.Printf("syncer: persist merged collection: %v", saveErr)
	}

	if err != nil {
		e.setState(domain.SyncError, syncFailureMessage(err))
		return err
	}
	if err := e.store.SaveLastSyncedAt(now); err != nil {
		log.Printf("syncer: save last-synced timestamp: %v", err)
	}
	e.setState(domain.SyncSuccess, "")
	return nil
}

func (e *Engine) replaceCollection(quizzes []domain.Quiz) {
	e.mu.Lock()
	e.quizzes = quizzes
	err := e.saveLocalLocked()
	e.mu.Unlock()
	if err != nil {
		log.Printf("syncer: persist collection: %v", err)
	}
}

// saveLocalLocked writes the full current collection through to the store.
func (e *Engine) saveLocalLocked() error {
	snapshot := make([]domain.Quiz, len(e.quizzes))
	copy(snapshot, e.quizzes)
	return e.store.SaveQuizzes(snapshot)
}

func (e *Engine) setState(state domain.SyncState, msg string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.state = state
	e.stateMsg = msg
	listener := e.listener
	if e.successTimer != nil {
		e.successTimer.Stop()
		e.successTimer = nil
	}
	if state == domain.SyncSuccess && e.cfg.SuccessDisplay > 0 {
		e.successTimer = time.AfterFunc(e.cfg.SuccessDisplay, func() {
			e.mu.Lock()
			if e.state == domain.SyncSuccess {
				e.state = domain.SyncIdle
				e.stateMsg = ""
			}
			e.mu.Unlock()
		})
	}
	e.mu.Unlock()
	if listener != nil {
		listener(state, msg)
	}
}

func syncFailureMessage(err error) string {
	switch domain.CategoryOf(err) {
	case domain.CategoryUnauthenticated:
		return "session expired, please sign in again"
	case domain.CategoryForbidden:
		return "access denied by the server"
	case domain.CategoryRateLimited:
		return "server rate limited the sync"
	case domain.CategoryNetwork:
		return "network unavailable, changes kept locally"
	default:
		return "sync failed, changes kept locally"
	}
}
