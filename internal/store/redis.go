package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pagecraft/api/internal/model"
)

// Jobs outlive the run long enough for review and resume.
const retention = 7 * 24 * time.Hour

// RedisStore keeps records as JSON blobs under deterministic keys.
type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

func jobKey(jobID string) string             { return fmt.Sprintf("job:%s", jobID) }
func sectionKey(jobID, key string) string    { return fmt.Sprintf("section:%s:%s", jobID, key) }
func changeLogKey(jobID string) string       { return fmt.Sprintf("changelog:%s", jobID) }

func (s *RedisStore) UpsertJob(ctx context.Context, job *model.GenerationJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, retention).Err()
}

func (s *RedisStore) GetJob(ctx context.Context, jobID string) (*model.GenerationJob, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var job model.GenerationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *RedisStore) UpsertSection(ctx context.Context, sec *model.Section) error {
	data, err := json.Marshal(sec)
	if err != nil {
		return err
	}
	key := sectionKey(sec.JobID, sec.Key)
	if err := s.redis.Set(ctx, key, data, retention).Err(); err != nil {
		return err
	}

	// Read-back verification: the resume flow depends on this write.
	stored, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if !bytes.Equal(stored, data) {
		return ErrVerification
	}
	return nil
}

func (s *RedisStore) GetSection(ctx context.Context, jobID, key string) (*model.Section, error) {
	data, err := s.redis.Get(ctx, sectionKey(jobID, key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var sec model.Section
	if err := json.Unmarshal(data, &sec); err != nil {
		return nil, err
	}
	return &sec, nil
}

// ListSections returns the job's sections in outline order.
func (s *RedisStore) ListSections(ctx context.Context, jobID string) ([]*model.Section, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Section, 0, len(job.SectionKeys))
	for _, key := range job.SectionKeys {
		sec, err := s.GetSection(ctx, jobID, key)
		if err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, sec)
	}
	return out, nil
}

func (s *RedisStore) AppendChangeLog(ctx context.Context, jobID string, entries []model.ChangeLogEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, changeLogKey(jobID), data, retention).Err()
}

func (s *RedisStore) GetChangeLog(ctx context.Context, jobID string) ([]model.ChangeLogEntry, error) {
	data, err := s.redis.Get(ctx, changeLogKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var entries []model.ChangeLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
