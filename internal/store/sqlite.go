package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // driver: sqlite

	"quizkeeper/internal/domain"
)

// SQLiteStore keeps all values in a single key/value table. The pure-Go
// driver commits every statement before returning, so a crash or reload
// never loses the last successful write.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and initializes) the store at path. An empty path
// uses an on-disk default next to the working directory.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "quizkeeper.db"
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value BLOB NOT NULL)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init local store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) get(key string) ([]byte, bool) {
	var raw []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key=?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		log.Printf("local store: read %q failed: %v", key, err)
		return nil, false
	}
	return raw, true
}

func (s *SQLiteStore) put(key string, value []byte) error {
	_, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("local store: write %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key=?`, key); err != nil {
		return fmt.Errorf("local store: delete %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) getJSON(key string, out any) bool {
	raw, ok := s.get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Printf("local store: decode %q failed: %v", key, err)
		return false
	}
	return true
}

func (s *SQLiteStore) putJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("local store: encode %q: %w", key, err)
	}
	return s.put(key, raw)
}

// GetAllQuizzes returns the stored collection, or an empty slice when
// nothing is stored or deserialization fails.
func (s *SQLiteStore) GetAllQuizzes() []domain.Quiz {
	var quizzes []domain.Quiz
	if !s.getJSON(keyQuizzes, &quizzes) || quizzes == nil {
		return []domain.Quiz{}
	}
	return quizzes
}

// SaveQuizzes overwrites the whole collection.
func (s *SQLiteStore) SaveQuizzes(quizzes []domain.Quiz) error {
	if quizzes == nil {
		quizzes = []domain.Quiz{}
	}
	return s.putJSON(keyQuizzes, quizzes)
}

func (s *SQLiteStore) CurrentUser() (domain.UserProfile, bool) {
	var profile domain.UserProfile
	ok := s.getJSON(keyCurrentUser, &profile)
	return profile, ok
}

func (s *SQLiteStore) SaveCurrentUser(profile domain.UserProfile) error {
	return s.putJSON(keyCurrentUser, profile)
}

func (s *SQLiteStore) ClearCurrentUser() error {
	return s.delete(keyCurrentUser)
}

func (s *SQLiteStore) Language() string {
	raw, ok := s.get(keyLanguage)
	if !ok {
		return ""
	}
	return string(raw)
}

func (s *SQLiteStore) SaveLanguage(lang string) error {
	return s.put(keyLanguage, []byte(lang))
}

func (s *SQLiteStore) LastResult() (domain.QuizResult, bool) {
	var result domain.QuizResult
	ok := s.getJSON(keyLastResult, &result)
	return result, ok
}

func (s *SQLiteStore) SaveLastResult(result domain.QuizResult) error {
	return s.putJSON(keyLastResult, result)
}

func (s *SQLiteStore) LastSyncedAt() (time.Time, bool) {
	raw, ok := s.get(keyLastSynced)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		log.Printf("local store: bad lastSyncedAt %q: %v", raw, err)
		return time.Time{}, false
	}
	return t, true
}

func (s *SQLiteStore) SaveLastSyncedAt(t time.Time) error {
	return s.put(keyLastSynced, []byte(t.Format(time.RFC3339Nano)))
}

// Credentials returns the stored access token and its expiry. The expiry is
// stored as an epoch-millis string alongside the opaque token.
func (s *SQLiteStore) Credentials() (string, time.Time, bool) {
	token, ok := s.get(keyToken)
	if !ok || len(token) == 0 {
		return "", time.Time{}, false
	}
	rawExpiry, ok := s.get(keyTokenExpiry)
	if !ok {
		return "", time.Time{}, false
	}
	millis, err := strconv.ParseInt(string(rawExpiry), 10, 64)
	if err != nil {
		log.Printf("local store: bad token expiry %q: %v", rawExpiry, err)
		return "", time.Time{}, false
	}
	return string(token), time.UnixMilli(millis), true
}

func (s *SQLiteStore) SaveCredentials(token string, expiry time.Time) error {
	if err := s.put(keyToken, []byte(token)); err != nil {
		return err
	}
	return s.put(keyTokenExpiry, []byte(strconv.FormatInt(expiry.UnixMilli(), 10)))
}

func (s *SQLiteStore) ClearCredentials() error {
	if err := s.delete(keyToken); err != nil {
		return err
	}
	return s.delete(keyTokenExpiry)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
