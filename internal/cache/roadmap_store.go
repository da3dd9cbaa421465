package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/careerpath/internal/models"
	mongorepo "github.com/yoockh/careerpath/internal/repositories/mongo"
)

// RoadmapStore puts a read-through cache in front of a RoadmapRepository.
// Writes go to the inner repository first and then drop the cached entry,
// so a cached value always equals the last persisted roadmap. Cache
// failures are logged and never fail the call.
type RoadmapStore struct {
	inner mongorepo.RoadmapRepository
	cache Cache
	ttl   time.Duration
	log   *logrus.Logger
}

var _ mongorepo.RoadmapRepository = (*RoadmapStore)(nil)

func NewRoadmapStore(inner mongorepo.RoadmapRepository, c Cache, ttl time.Duration, l *logrus.Logger) *RoadmapStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if l == nil {
		l = logrus.New()
	}
	return &RoadmapStore{inner: inner, cache: c, ttl: ttl, log: l}
}

func roadmapKey(userID string) string { return "roadmap:" + userID }

func (s *RoadmapStore) Save(ctx context.Context, userID, resumeText, targetRole string, roadmap models.Roadmap) error {
	if err := s.inner.Save(ctx, userID, resumeText, targetRole, roadmap); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *RoadmapStore) Load(ctx context.Context, userID string) (models.Roadmap, error) {
	var cached models.Roadmap
	hit, err := s.cache.GetJSON(ctx, roadmapKey(userID), &cached)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("roadmap cache read failed")
	}
	if hit && cached != nil {
		return cached, nil
	}

	rm, err := s.inner.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, roadmapKey(userID), rm, s.ttl); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("roadmap cache write failed")
	}
	return rm, nil
}

func (s *RoadmapStore) ToggleWeek(ctx context.Context, userID string, week int) (models.Roadmap, error) {
	rm, err := s.inner.ToggleWeek(ctx, userID, week)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return rm, nil
}

func (s *RoadmapStore) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Del(ctx, roadmapKey(userID)); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("roadmap cache invalidation failed")
	}
}
