package seed

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// seedRow mirrors the _seeds table gorm.io/gorm maps onto directly, per the
// durable store layout's reserved audit table.
type seedRow struct {
	Name       string    `gorm:"column:name"`
	BeakerName string    `gorm:"column:beaker_name"`
	NumItems   int       `gorm:"column:num_items"`
	ImportedAt time.Time `gorm:"column:imported_at"`
}

// DurableAuditStore is the AuditStore backed by the pipeline's shared
// embedded database's _seeds table.
type DurableAuditStore struct {
	db *gorm.DB
}

// NewDurableAuditStore wraps gdb, which must already have the _seeds table
// created (engine/beaker.OpenDurableDB does this).
func NewDurableAuditStore(gdb *gorm.DB) *DurableAuditStore {
	return &DurableAuditStore{db: gdb}
}

func (s *DurableAuditStore) Get(ctx context.Context, name string) (*Run, error) {
	var row seedRow
	err := s.db.WithContext(ctx).Table("_seeds").Where("name = ?", name).Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("seed audit: get %q: %w", name, err)
	}
	return &Run{Name: row.Name, BeakerName: row.BeakerName, NumItems: row.NumItems, ImportedAt: row.ImportedAt}, nil
}

func (s *DurableAuditStore) Put(ctx context.Context, run Run) error {
	row := seedRow{Name: run.Name, BeakerName: run.BeakerName, NumItems: run.NumItems, ImportedAt: run.ImportedAt}
	if err := s.db.WithContext(ctx).Table("_seeds").Create(&row).Error; err != nil {
		return fmt.Errorf("seed audit: put %q: %w", run.Name, err)
	}
	return nil
}

func (s *DurableAuditStore) Delete(ctx context.Context, name string) error {
	if err := s.db.WithContext(ctx).Table("_seeds").Where("name = ?", name).Delete(&seedRow{}).Error; err != nil {
		return fmt.Errorf("seed audit: delete %q: %w", name, err)
	}
	return nil
}
