package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"roomsync/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	snapshotKeyPrefix  = "room:snapshot:"
	defaultSnapshotTTL = 24 * time.Hour
)

// Store це довготривала частина кімнати: її текст і останній відомий склад.
type Store interface {
	// LoadOrCreateRoom returns the persisted room, creating an empty record on first use.
	LoadOrCreateRoom(ctx context.Context, roomID string) (*models.Room, error)
	// SaveRoom upserts text and roster and bumps UpdatedAt.
	SaveRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
	// DeleteStaleRooms removes rooms not updated since cutoff, except those in keep,
	// and returns the ids it removed.
	DeleteStaleRooms(ctx context.Context, cutoff time.Time, keep []string) ([]string, error)
	// ResetParticipants empties every persisted roster.
	ResetParticipants(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Service implements Store on top of gorm, with an optional redis snapshot tier
// in front of the rooms table. A nil Redis disables the snapshot tier.
type Service struct {
	DB          *gorm.DB
	Redis       *redis.Client
	SnapshotTTL time.Duration

	loads singleflight.Group
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:          db,
		Redis:       rdb,
		SnapshotTTL: defaultSnapshotTTL,
	}
}

func now() time.Time { return time.Now().UTC() }

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// LoadOrCreateRoom об'єднує одночасні завантаження однієї кімнати в один запит.
// Спершу читає знімок з Redis, потім PostgreSQL, за потреби створює порожній запис.
func (s *Service) LoadOrCreateRoom(ctx context.Context, roomID string) (*models.Room, error) {
	v, err, _ := s.loads.Do(roomID, func() (any, error) {
		// 1. Знімок з Redis
		if room, ok := s.readSnapshot(ctx, roomID); ok {
			return room, nil
		}

		// 2. PostgreSQL, або новий порожній запис
		ts := now()
		room := models.Room{}
		err := s.DB.WithContext(ctx).
			Where(models.Room{RoomID: roomID}).
			Attrs(models.Room{Participants: []string{}, CreatedAt: ts, UpdatedAt: ts}).
			FirstOrCreate(&room).Error
		if err != nil {
			return nil, unavailable("load room "+roomID, err)
		}

		// 3. Прогріваємо знімок для наступних завантажень
		s.writeSnapshot(ctx, &room)
		return &room, nil
	})
	if err != nil {
		return nil, err
	}

	// callers share the singleflight result; hand each one its own copy
	shared := v.(*models.Room)
	room := *shared
	room.Participants = slices.Clone(shared.Participants)
	return &room, nil
}

// SaveRoom зберігає кімнату в PostgreSQL (upsert за room_id) та оновлює знімок у Redis.
func (s *Service) SaveRoom(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = now()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = room.UpdatedAt
	}
	if room.Participants == nil {
		room.Participants = []string{}
	}

	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"text", "participants", "updated_at"}),
		}).
		Create(room).Error
	if err != nil {
		return unavailable("save room "+room.RoomID, err)
	}

	s.writeSnapshot(ctx, room)
	return nil
}

func (s *Service) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get room %s: %w", roomID, ErrRoomNotFound)
	}
	if err != nil {
		return nil, unavailable("get room "+roomID, err)
	}
	return &room, nil
}

func (s *Service) DeleteRoom(ctx context.Context, roomID string) error {
	res := s.DB.WithContext(ctx).Where("room_id = ?", roomID).Delete(&models.Room{})
	if res.Error != nil {
		return unavailable("delete room "+roomID, res.Error)
	}
	s.dropSnapshots(ctx, roomID)
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete room %s: %w", roomID, ErrRoomNotFound)
	}
	return nil
}

func (s *Service) DeleteStaleRooms(ctx context.Context, cutoff time.Time, keep []string) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Room{}).Where("updated_at < ?", cutoff.UTC())
		if len(keep) > 0 {
			q = q.Where("room_id NOT IN ?", keep)
		}
		if err := q.Pluck("room_id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Where("room_id IN ?", ids).Delete(&models.Room{}).Error
	})
	if err != nil {
		return nil, unavailable("delete stale rooms", err)
	}

	s.dropSnapshots(ctx, ids...)
	return ids, nil
}

// ResetParticipants leaves updated_at alone so a restart does not refresh every room's retention.
func (s *Service) ResetParticipants(ctx context.Context) error {
	if err := s.DB.WithContext(ctx).Exec("UPDATE rooms SET participants = ?", "[]").Error; err != nil {
		return unavailable("reset participants", err)
	}

	if s.Redis == nil {
		return nil
	}
	iter := s.Redis.Scan(ctx, 0, snapshotKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Str("module", "storage").Msg("failed to scan room snapshots")
		return nil
	}
	if len(keys) > 0 {
		if err := s.Redis.Del(ctx, keys...).Err(); err != nil {
			log.Warn().Err(err).Str("module", "storage").Msg("failed to drop room snapshots")
		}
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return unavailable("ping database", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable("ping database", err)
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
	}
	return nil
}

func snapshotKey(roomID string) string {
	return snapshotKeyPrefix + roomID
}

// readSnapshot treats every redis failure as a miss; the database stays authoritative.
func (s *Service) readSnapshot(ctx context.Context, roomID string) (*models.Room, bool) {
	if s.Redis == nil {
		return nil, false
	}
	raw, err := s.Redis.Get(ctx, snapshotKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "storage").Str("room", roomID).Msg("snapshot read failed")
		return nil, false
	}

	var room models.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		log.Warn().Err(err).Str("module", "storage").Str("room", roomID).Msg("discarding corrupt snapshot")
		s.dropSnapshots(ctx, roomID)
		return nil, false
	}
	return &room, true
}

func (s *Service) writeSnapshot(ctx context.Context, room *models.Room) {
	if s.Redis == nil {
		return
	}
	raw, err := json.Marshal(room)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, snapshotKey(room.RoomID), raw, s.SnapshotTTL).Err(); err != nil {
		log.Warn().Err(err).Str("module", "storage").Str("room", room.RoomID).Msg("snapshot write failed")
		// a stale snapshot would shadow the row we just wrote
		s.dropSnapshots(ctx, room.RoomID)
	}
}

func (s *Service) dropSnapshots(ctx context.Context, roomIDs ...string) {
	if s.Redis == nil || len(roomIDs) == 0 {
		return
	}
	keys := make([]string, len(roomIDs))
	for i, id := range roomIDs {
		keys[i] = snapshotKey(id)
	}
	if err := s.Redis.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Str("module", "storage").Strs("rooms", roomIDs).Msg("snapshot delete failed")
	}
}
