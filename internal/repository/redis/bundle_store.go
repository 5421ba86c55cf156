package redis

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/redis/go-redis/v9"

	"soilsense/internal/metrics"
	"soilsense/internal/ml/bundle"
	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

// Compile-time check
var _ bundle.Store = (*BundleStore)(nil)

// BundleStore implements bundle.Store using Redis.
// Each version is one hash of artifacts at <prefix>:<version>; <prefix>:versions orders them
// by creation time and <prefix>:current names the live one. Save writes all three in one MULTI.
type BundleStore struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
}

// NewBundleStore creates a new Redis bundle store
func NewBundleStore(client *redis.Client, prefix string) *BundleStore {
	return &BundleStore{
		client: client,
		prefix: prefix,
		log:    logger.Get().With("component", "bundle_redis_store"),
	}
}

// Save stores every artifact and marks the version current atomically
func (s *BundleStore) Save(ctx context.Context, b *bundle.Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	artifacts, err := bundle.Encode(b)
	if err != nil {
		return err
	}

	fields := make(map[string]interface{}, len(artifacts))
	var total uint64
	for name, data := range artifacts {
		fields[name] = data
		total += uint64(len(data))
	}

	start := time.Now()
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.versionKey(b.Version), fields)
	pipe.ZAdd(ctx, s.versionsKey(), redis.Z{Score: float64(b.CreatedAt.UnixNano()), Member: b.Version})
	pipe.Set(ctx, s.currentKey(), b.Version, 0)
	_, err = pipe.Exec(ctx)
	metrics.RecordDBQuery("redis", "save_bundle", time.Since(start), err)
	if err != nil {
		return errors.Wrapf(err, "failed to save bundle %s to redis", b.Version)
	}

	s.log.Infow("Bundle saved",
		"version", b.Version,
		"k", b.K(),
		"size", humanize.Bytes(total),
		"prefix", s.prefix,
	)
	return nil
}

// Load reads and validates one version
func (s *BundleStore) Load(ctx context.Context, version string) (*bundle.Bundle, error) {
	start := time.Now()
	fields, err := s.client.HGetAll(ctx, s.versionKey(version)).Result()
	metrics.RecordDBQuery("redis", "load_bundle", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load bundle %s from redis", version)
	}
	if len(fields) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "bundle version %s", version)
	}

	artifacts := make(map[string][]byte, len(fields))
	for name, data := range fields {
		if name == bundle.ArtifactCenters {
			continue
		}
		artifacts[name] = []byte(data)
	}

	b, err := bundle.Decode(artifacts)
	if err != nil {
		return nil, errors.Wrapf(err, "load bundle %s", version)
	}
	if b.Version != version {
		return nil, errors.NewArtifactMismatch("key %s holds bundle %s", s.versionKey(version), b.Version)
	}
	return b, nil
}

// Current returns the live version, or ErrNoModel before the first save
func (s *BundleStore) Current(ctx context.Context) (string, error) {
	version, err := s.client.Get(ctx, s.currentKey()).Result()
	if err == redis.Nil || (err == nil && version == "") {
		return "", errors.ErrNoModel
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read current bundle version")
	}
	return version, nil
}

// Versions lists stored versions, oldest first
func (s *BundleStore) Versions(ctx context.Context) ([]string, error) {
	versions, err := s.client.ZRange(ctx, s.versionsKey(), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list bundle versions")
	}
	return versions, nil
}

func (s *BundleStore) versionKey(version string) string {
	return s.prefix + ":" + version
}

func (s *BundleStore) versionsKey() string {
	return s.prefix + ":versions"
}

func (s *BundleStore) currentKey() string {
	return s.prefix + ":current"
}
