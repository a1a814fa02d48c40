package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dropcheck/internal/health"
	"dropcheck/internal/recommendation"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

var (
	ErrNoProfile          = errors.New("no profile stored")
	ErrNoHistory          = errors.New("no test results stored")
	ErrTestResultNotFound = errors.New("test result not found")
)

const defaultCacheSize = 256

// Options configures a State.
type Options struct {
	// CacheSize bounds the in-process recommendation cache. Zero means 256.
	CacheSize int
	// SeedDemoHistory fills an empty history with sample results on first read.
	SeedDemoHistory bool
	// Now overrides the clock for tests.
	Now func() time.Time
}

// State is the explicit per-session store handed to every consumer. All
// mutations of one session are serialized; different sessions proceed
// independently.
type State struct {
	kv    KV
	cache *lru.Cache[string, recommendation.Bundle]
	seed  bool
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is held in State.locks only while some caller holds or waits
// on it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewState(kv KV, opts Options) (*State, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, recommendation.Bundle](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create recommendation cache: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &State{
		kv:    kv,
		cache: cache,
		seed:  opts.SeedDemoHistory,
		now:   now,
		locks: make(map[string]*sessionLock),
	}, nil
}

func (s *State) lock(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}

func (s *State) load(ctx context.Context, sessionID, key string, dst interface{}) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, sessionID, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *State) save(ctx context.Context, sessionID, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.kv.Put(ctx, sessionID, key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

/* ====================================================================
                              Profile
==================================================================== */

// Profile returns the stored profile or ErrNoProfile.
func (s *State) Profile(ctx context.Context, sessionID string) (health.UserProfile, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	var p health.UserProfile
	ok, err := s.load(ctx, sessionID, KeyUserProfile, &p)
	if err != nil {
		return health.UserProfile{}, err
	}
	if !ok {
		return health.UserProfile{}, ErrNoProfile
	}
	return p, nil
}

// ReplaceProfile normalizes, validates and stores p in place of any
// previous profile.
func (s *State) ReplaceProfile(ctx context.Context, sessionID string, p health.UserProfile) (health.UserProfile, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return health.UserProfile{}, err
	}

	unlock := s.lock(sessionID)
	defer unlock()

	if err := s.save(ctx, sessionID, KeyUserProfile, p); err != nil {
		return health.UserProfile{}, err
	}
	zerolog.Ctx(ctx).Info().Msg("Profile replaced")
	return p, nil
}

/* ====================================================================
                            Test History
==================================================================== */

func (s *State) loadHistory(ctx context.Context, sessionID string) ([]health.TestResult, error) {
	var history []health.TestResult
	ok, err := s.load(ctx, sessionID, KeyTestHistory, &history)
	if err != nil {
		return nil, err
	}
	if !ok && s.seed {
		history = DemoHistory()
		if err := s.save(ctx, sessionID, KeyTestHistory, history); err != nil {
			return nil, err
		}
		zerolog.Ctx(ctx).Info().Msg("Seeded demo history")
	}
	if history == nil {
		history = []health.TestResult{}
	}
	return history, nil
}

// History returns all results, newest first.
func (s *State) History(ctx context.Context, sessionID string) ([]health.TestResult, error) {
	unlock := s.lock(sessionID)
	defer unlock()
	return s.loadHistory(ctx, sessionID)
}

// AddTestResult records a new result at the head of the history. A zero
// takenAt means now.
func (s *State) AddTestResult(ctx context.Context, sessionID string, labs health.LabValues, takenAt time.Time) (health.TestResult, error) {
	if err := labs.Validate(); err != nil {
		return health.TestResult{}, err
	}
	if takenAt.IsZero() {
		takenAt = s.now()
	}

	unlock := s.lock(sessionID)
	defer unlock()

	history, err := s.loadHistory(ctx, sessionID)
	if err != nil {
		return health.TestResult{}, err
	}

	result := health.TestResult{
		ID:        uuid.New().String(),
		TakenAt:   takenAt.UTC(),
		LabValues: labs,
	}
	history = append([]health.TestResult{result}, history...)

	if err := s.save(ctx, sessionID, KeyTestHistory, history); err != nil {
		return health.TestResult{}, err
	}
	zerolog.Ctx(ctx).Info().Str("test_id", result.ID).Msg("Test result added")
	return result, nil
}

// RemoveTestResult deletes one result and any bundle cached for it.
func (s *State) RemoveTestResult(ctx context.Context, sessionID, testID string) error {
	unlock := s.lock(sessionID)
	defer unlock()

	history, err := s.loadHistory(ctx, sessionID)
	if err != nil {
		return err
	}

	idx := -1
	for i, r := range history {
		if r.ID == testID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrTestResultNotFound
	}
	history = append(history[:idx], history[idx+1:]...)
	if err := s.save(ctx, sessionID, KeyTestHistory, history); err != nil {
		return err
	}

	bundles, err := s.loadBundles(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, ok := bundles[testID]; ok {
		delete(bundles, testID)
		if err := s.save(ctx, sessionID, KeyRecommendations, bundles); err != nil {
			return err
		}
	}
	s.cache.Remove(cacheKey(sessionID, testID))

	zerolog.Ctx(ctx).Info().Str("test_id", testID).Msg("Test result removed")
	return nil
}

// TestResult finds one result by id.
func (s *State) TestResult(ctx context.Context, sessionID, testID string) (health.TestResult, error) {
	history, err := s.History(ctx, sessionID)
	if err != nil {
		return health.TestResult{}, err
	}
	for _, r := range history {
		if r.ID == testID {
			return r, nil
		}
	}
	return health.TestResult{}, ErrTestResultNotFound
}

// Latest returns the newest result or ErrNoHistory.
func (s *State) Latest(ctx context.Context, sessionID string) (health.TestResult, error) {
	history, err := s.History(ctx, sessionID)
	if err != nil {
		return health.TestResult{}, err
	}
	if len(history) == 0 {
		return health.TestResult{}, ErrNoHistory
	}
	return history[0], nil
}

/* ====================================================================
                          Recommendations
==================================================================== */

func cacheKey(sessionID, testID string) string {
	return sessionID + "\x00" + testID
}

func (s *State) loadBundles(ctx context.Context, sessionID string) (map[string]recommendation.Bundle, error) {
	bundles := map[string]recommendation.Bundle{}
	if _, err := s.load(ctx, sessionID, KeyRecommendations, &bundles); err != nil {
		return nil, err
	}
	if bundles == nil {
		bundles = map[string]recommendation.Bundle{}
	}
	return bundles, nil
}

// Recommendations returns the bundle cached for a test result.
func (s *State) Recommendations(ctx context.Context, sessionID, testID string) (recommendation.Bundle, bool, error) {
	if b, ok := s.cache.Get(cacheKey(sessionID, testID)); ok {
		return b, true, nil
	}

	unlock := s.lock(sessionID)
	defer unlock()

	bundles, err := s.loadBundles(ctx, sessionID)
	if err != nil {
		return recommendation.Bundle{}, false, err
	}
	b, ok := bundles[testID]
	if ok {
		s.cache.Add(cacheKey(sessionID, testID), b)
	}
	return b, ok, nil
}

// StoreRecommendations caches a bundle for a test result. It returns
// ErrTestResultNotFound when the result is no longer in the history.
func (s *State) StoreRecommendations(ctx context.Context, sessionID, testID string, b recommendation.Bundle) error {
	unlock := s.lock(sessionID)
	defer unlock()

	history, err := s.loadHistory(ctx, sessionID)
	if err != nil {
		return err
	}
	found := false
	for _, r := range history {
		if r.ID == testID {
			found = true
			break
		}
	}
	if !found {
		return ErrTestResultNotFound
	}

	bundles, err := s.loadBundles(ctx, sessionID)
	if err != nil {
		return err
	}
	bundles[testID] = b
	if err := s.save(ctx, sessionID, KeyRecommendations, bundles); err != nil {
		return err
	}
	s.cache.Add(cacheKey(sessionID, testID), b)
	return nil
}

// ClearSession removes every key stored for the session.
func (s *State) ClearSession(ctx context.Context, sessionID string) error {
	unlock := s.lock(sessionID)
	defer unlock()

	for _, key := range Keys {
		if err := s.kv.Delete(ctx, sessionID, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	for _, key := range s.cache.Keys() {
		if strings.HasPrefix(key, sessionID+"\x00") {
			s.cache.Remove(key)
		}
	}
	return nil
}

// DemoHistory returns the sample results used to seed new sessions, newest
// first.
func DemoHistory() []health.TestResult {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
	}
	return []health.TestResult{
		{ID: uuid.New().String(), TakenAt: day(2023, time.October, 26), LabValues: health.LabValues{Hemoglobin: 13.5, Glucose: 98, CRP: 1.2}},
		{ID: uuid.New().String(), TakenAt: day(2023, time.October, 19), LabValues: health.LabValues{Hemoglobin: 12.8, Glucose: 115, CRP: 2.5}},
		{ID: uuid.New().String(), TakenAt: day(2023, time.October, 12), LabValues: health.LabValues{Hemoglobin: 11.9, Glucose: 125, CRP: 4.2}},
		{ID: uuid.New().String(), TakenAt: day(2023, time.October, 5), LabValues: health.LabValues{Hemoglobin: 13.2, Glucose: 95, CRP: 0.9}},
	}
}
