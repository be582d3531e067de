package prediction

import (
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/staffcast/staffcast/internal/domain"
	"github.com/staffcast/staffcast/internal/forecast"
	"github.com/staffcast/staffcast/internal/infra/metrics"
)

// Artifacts reads encoded models by version, verifying the digest.
type Artifacts interface {
	Get(version, digest string) ([]byte, error)
}

// modelLoader keeps decoded models in memory keyed by version. Concurrent
// misses for one version share a single artifact read.
type modelLoader struct {
	artifacts Artifacts
	models    *gocache.Cache
	group     singleflight.Group
}

func newModelLoader(artifacts Artifacts, ttl time.Duration) *modelLoader {
	// No janitor: its goroutine cannot be stopped. Expired versions are
	// swept on each load instead.
	return &modelLoader{artifacts: artifacts, models: gocache.New(ttl, 0)}
}

func (l *modelLoader) load(v domain.ModelVersion) (*forecast.Model, error) {
	if m, ok := l.models.Get(v.Version); ok {
		return m.(*forecast.Model), nil
	}

	res, err, _ := l.group.Do(v.Version, func() (any, error) {
		if m, ok := l.models.Get(v.Version); ok {
			return m, nil
		}
		data, err := l.artifacts.Get(v.Version, v.ArtifactDigest)
		if err != nil {
			if errors.Is(err, domain.ErrArtifactCorrupted) {
				metrics.ArtifactLoads.WithLabelValues("corrupted").Inc()
			} else {
				metrics.ArtifactLoads.WithLabelValues("error").Inc()
			}
			return nil, err
		}
		m, err := forecast.Decode(data)
		if err != nil {
			metrics.ArtifactLoads.WithLabelValues("corrupted").Inc()
			return nil, fmt.Errorf("%w: %v", domain.ErrArtifactCorrupted, err)
		}
		metrics.ArtifactLoads.WithLabelValues("ok").Inc()
		l.models.DeleteExpired()
		l.models.SetDefault(v.Version, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*forecast.Model), nil
}

// cached reports whether version is resident.
func (l *modelLoader) cached(version string) bool {
	_, ok := l.models.Get(version)
	return ok
}
