package orders

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
)

type dbSequencer struct {
	name string
}

// NewDBSequencer draws numbers from the order_sequences row called name.
func NewDBSequencer(name string) Sequencer {
	if strings.TrimSpace(name) == "" {
		name = "orders"
	}
	return &dbSequencer{name: name}
}

func (s *dbSequencer) Next(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	db := tx.WithContext(ctx)
	res := db.Model(&models.OrderSequence{}).
		Where("name = ?", s.name).
		UpdateColumn("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		seq := models.OrderSequence{Name: s.name, Value: 1}
		if err := db.Create(&seq).Error; err != nil {
			return 0, err
		}
		return seq.Value, nil
	}

	var seq models.OrderSequence
	if err := db.Where("name = ?", s.name).First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.Value, nil
}

type counter interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

type redisSequencer struct {
	counter counter
	name    string
}

// NewRedisSequencer draws numbers from an INCR counter. A create that fails
// after drawing leaves a gap.
func NewRedisSequencer(c counter, name string) (Sequencer, error) {
	if c == nil {
		return nil, errors.New("redis counter required")
	}
	if strings.TrimSpace(name) == "" {
		name = "orders"
	}
	return &redisSequencer{counter: c, name: name}, nil
}

func (s *redisSequencer) Next(ctx context.Context, _ *gorm.DB) (int64, error) {
	return s.counter.NextSequence(ctx, s.name)
}
