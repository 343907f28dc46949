package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"flock-server/internal/model"
)

// ErrGroupNotFound is returned for any operation referencing a group ID
// that was never created. It is a benign input-validation outcome, not a
// server failure.
var ErrGroupNotFound = errors.New("group not found")

// Store is the authoritative record of groups, members and users. Every
// mutating call is durably written before it returns success, so the
// broadcast layer may treat a positive IsMember answer as ground truth.
type Store struct {
	db *gorm.DB
}

type groupRecord struct {
	ID        string `gorm:"primaryKey"`
	CreatorID string `gorm:"index"`
	CreatedAt int64  `gorm:"autoCreateTime:milli"`
}

type memberRecord struct {
	GroupID string `gorm:"primaryKey"`
	UserID  string `gorm:"primaryKey"`
}

type userRecord struct {
	ID          string `gorm:"primaryKey"`
	DisplayName string
	Lat         *float64
	Lng         *float64
	LocatedAt   *int64
}

func (groupRecord) TableName() string  { return "groups" }
func (memberRecord) TableName() string { return "group_members" }
func (userRecord) TableName() string   { return "users" }

// Open connects to the sqlite database at path and migrates the schema.
// An unreachable or unwritable database is reported here so the process
// can refuse to start.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&groupRecord{}, &memberRecord{}, &userRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateGroup records a new group with creator as its sole member and
// returns the generated group ID. The ID doubles as the join secret, so
// it is a fresh UUID rather than anything guessable or sequential.
func (s *Store) CreateGroup(ctx context.Context, creatorID string) (string, error) {
	groupID := uuid.NewString()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&groupRecord{ID: groupID, CreatorID: creatorID}).Error; err != nil {
			return err
		}
		return tx.Create(&memberRecord{GroupID: groupID, UserID: creatorID}).Error
	})
	if err != nil {
		return "", fmt.Errorf("create group: %w", err)
	}
	return groupID, nil
}

// JoinGroup adds userID to the group. Joining a group the user already
// belongs to is a no-op, not an error.
func (s *Store) JoinGroup(ctx context.Context, groupID, userID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&groupRecord{}).Where("id = ?", groupID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrGroupNotFound
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&memberRecord{GroupID: groupID, UserID: userID}).Error
	})
	if errors.Is(err, ErrGroupNotFound) {
		return ErrGroupNotFound
	}
	if err != nil {
		return fmt.Errorf("join group: %w", err)
	}
	return nil
}

// IsMember reports whether userID belongs to groupID. An unknown group
// simply yields false.
func (s *Store) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&memberRecord{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return n > 0, nil
}

// ListMembers returns the roster of groupID with each member's display
// name and last known position, if any.
func (s *Store) ListMembers(ctx context.Context, groupID string) ([]model.Member, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&groupRecord{}).Where("id = ?", groupID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if n == 0 {
		return nil, ErrGroupNotFound
	}

	var memberIDs []string
	if err := s.db.WithContext(ctx).Model(&memberRecord{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &memberIDs).Error; err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	var users []userRecord
	if len(memberIDs) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", memberIDs).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
	}
	usersByID := make(map[string]userRecord, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	members := make([]model.Member, 0, len(memberIDs))
	for _, id := range memberIDs {
		m := model.Member{UserID: id}
		if u, ok := usersByID[id]; ok {
			m.DisplayName = u.DisplayName
			if u.Lat != nil && u.Lng != nil && u.LocatedAt != nil {
				m.LastPosition = &model.Position{Lat: *u.Lat, Lng: *u.Lng, LocatedAt: *u.LocatedAt}
			}
		}
		members = append(members, m)
	}
	return members, nil
}

// UpsertUser lazily creates the user record on first sight and applies a
// last-write-wins display name update when a non-empty name is given.
func (s *Store) UpsertUser(ctx context.Context, userID, displayName string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing userRecord
		err := tx.Where("id = ?", userID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&userRecord{ID: userID, DisplayName: displayName}).Error
		}
		if err != nil {
			return err
		}
		if displayName != "" && displayName != existing.DisplayName {
			return tx.Model(&userRecord{}).Where("id = ?", userID).
				Update("display_name", displayName).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// RecordPosition stores the user's most recent position. Only the latest
// observation is kept; there is no track history.
func (s *Store) RecordPosition(ctx context.Context, userID string, lat, lng float64, at int64) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"lat", "lng", "located_at"}),
	}).Create(&userRecord{ID: userID, Lat: &lat, Lng: &lng, LocatedAt: &at}).Error
	if err != nil {
		return fmt.Errorf("record position: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable. Called once at boot so the
// server fails fast instead of running with a dead store.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}
	return nil
}
