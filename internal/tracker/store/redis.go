package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"custodia/internal/tracker/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

const (
	entryKeyPrefix = "custodia:track:"
	entrySetKey    = "custodia:track:index"
	zoneKeyPrefix  = "custodia:zone:"
	zoneSetKey     = "custodia:zone:index"
)

// Redis shares the tracker index across instances. Dashboards read it
// concurrently with writers, so every write goes through a single SET (plus
// a set-membership add) and reads are read-your-writes against the primary.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) UpsertEntry(ctx context.Context, e models.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode tracker entry: %w", err)
	}
	key := entryKeyPrefix + e.ShipmentID.String()
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, payload, 0)
	pipe.SAdd(ctx, entrySetKey, e.ShipmentID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert tracker entry: %w", err)
	}
	return nil
}

func (s *Redis) FindEntry(ctx context.Context, shipmentID id.ShipmentID) (models.Entry, error) {
	raw, err := s.client.Get(ctx, entryKeyPrefix+shipmentID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Entry{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Entry{}, fmt.Errorf("find tracker entry: %w", err)
	}
	var e models.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return models.Entry{}, fmt.Errorf("decode tracker entry: %w", err)
	}
	return e, nil
}

func (s *Redis) DeleteEntry(ctx context.Context, shipmentID id.ShipmentID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, entryKeyPrefix+shipmentID.String())
	pipe.SRem(ctx, entrySetKey, shipmentID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete tracker entry: %w", err)
	}
	return nil
}

func (s *Redis) ListEntries(ctx context.Context) ([]models.Entry, error) {
	ids, err := s.client.SMembers(ctx, entrySetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list tracker entries: %w", err)
	}
	out := make([]models.Entry, 0, len(ids))
	for _, raw := range ids {
		shipmentID, err := id.ParseShipmentID(raw)
		if err != nil {
			continue // skip corrupt index members rather than failing the scan
		}
		e, err := s.FindEntry(ctx, shipmentID)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Redis) SaveZone(ctx context.Context, z *models.TrackingZone) error {
	payload, err := json.Marshal(z)
	if err != nil {
		return fmt.Errorf("encode zone: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, zoneKeyPrefix+z.ID.String(), payload, 0)
	pipe.SAdd(ctx, zoneSetKey, z.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save zone: %w", err)
	}
	return nil
}

func (s *Redis) ListZones(ctx context.Context) ([]*models.TrackingZone, error) {
	ids, err := s.client.SMembers(ctx, zoneSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	out := make([]*models.TrackingZone, 0, len(ids))
	for _, raw := range ids {
		payload, err := s.client.Get(ctx, zoneKeyPrefix+raw).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load zone: %w", err)
		}
		var z models.TrackingZone
		if err := json.Unmarshal(payload, &z); err != nil {
			return nil, fmt.Errorf("decode zone: %w", err)
		}
		out = append(out, &z)
	}
	return out, nil
}
