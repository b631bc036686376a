package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/turtacn/credkit/pkg/storage"
)

// DefaultTable holds the records when no table is configured.
const DefaultTable = "key_entries"

// entryRow is one record. Several stores may share a table.
type entryRow struct {
	Store     string `gorm:"primaryKey;size:255"`
	Name      string `gorm:"primaryKey;size:1024"`
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store keeps the records of one store in a SQL table.
type Store struct {
	db     *gorm.DB
	table  string
	name   string
	closer func() error
}

// New creates the table if needed and returns a Store for name.
func New(ctx context.Context, db *gorm.DB, table, name string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := db.WithContext(ctx).Table(table).AutoMigrate(&entryRow{}); err != nil {
		return nil, err
	}
	return &Store{db: db, table: table, name: name}, nil
}

// OwnConnection makes Close close db.
func (s *Store) OwnConnection() *Store {
	s.closer = func() error {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return s
}

func (s *Store) scope(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table).Where("store = ?", s.name)
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	var n int64
	err := s.scope(ctx).Where("name = ?", name).Count(&n).Error
	return n > 0, err
}

func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	var row entryRow
	err := s.scope(ctx).Where("name = ?", name).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if row.Data == nil {
		row.Data = []byte{}
	}
	return row.Data, nil
}

func (s *Store) Store(ctx context.Context, name string, data []byte) error {
	row := entryRow{Store: s.name, Name: name, Data: data}
	if row.Data == nil {
		row.Data = []byte{}
	}
	res := s.db.WithContext(ctx).Table(s.table).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Update(ctx context.Context, name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	res := s.scope(ctx).Where("name = ?", name).Updates(map[string]interface{}{
		"data":       data,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, name string) (bool, error) {
	res := s.scope(ctx).Where("name = ?", name).Delete(&entryRow{})
	return res.RowsAffected > 0, res.Error
}

// List returns records ordered by name.
func (s *Store) List(ctx context.Context) ([][]byte, error) {
	var rows []entryRow
	if err := s.scope(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(rows))
	for _, row := range rows {
		if row.Data == nil {
			row.Data = []byte{}
		}
		out = append(out, row.Data)
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context) error {
	return s.scope(ctx).Delete(&entryRow{}).Error
}

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

var _ storage.Adapter = (*Store)(nil)
