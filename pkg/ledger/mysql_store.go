// 文件: pkg/ledger/mysql_store.go
// 账本存储 - MySQL (GORM) 实现
//
// 写路径的要点:
// - 守卫式更新: UPDATE ... WHERE balance >= ? / qty >= ?, 靠数据库本身
//   保证余额和持仓不为负, 不依赖先读后写
// - InTx 映射到数据库事务, 候选挂单查询带 FOR UPDATE 行锁,
//   并发触碰同一账户/挂单的操作在行锁上串行

package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MySQLStore struct {
	db *gorm.DB
}

func NewMySQLStore(db *gorm.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// AutoMigrate 建表
func (s *MySQLStore) AutoMigrate() error {
	return s.db.AutoMigrate(&Account{}, &Position{}, &OpenOrder{}, &ClosedRecord{})
}

// InTx 在数据库事务内执行 fn
func (s *MySQLStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&MySQLStore{db: tx})
	})
}

// =============================================================================
// 账户
// =============================================================================

func (s *MySQLStore) CreateAccount(ctx context.Context, accountID string, balance int64) error {
	exists, err := s.AccountExists(ctx, accountID)
	if err != nil {
		return err
	}
	if exists {
		return ErrAccountExists
	}
	now := time.Now().UnixMilli()
	return s.db.WithContext(ctx).Create(&Account{
		AccountID: accountID,
		Balance:   balance,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
}

func (s *MySQLStore) AccountExists(ctx context.Context, accountID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Account{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count > 0, err
}

func (s *MySQLStore) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	var acct Account
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// =============================================================================
// 资金
// =============================================================================

func (s *MySQLStore) AddFunds(ctx context.Context, accountID string, amount int64) error {
	result := s.db.WithContext(ctx).Model(&Account{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *MySQLStore) DebitFunds(ctx context.Context, accountID string, amount int64) error {
	result := s.db.WithContext(ctx).Model(&Account{}).
		Where("account_id = ? AND balance >= ?", accountID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// 区分账户不存在和余额不足
		exists, err := s.AccountExists(ctx, accountID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}
		return ErrInsufficientFunds
	}
	return nil
}

// =============================================================================
// 持仓
// =============================================================================

// ensurePosition 代码首次出现时建仓位行 (Qty=0)
func (s *MySQLStore) ensurePosition(ctx context.Context, accountID, symbol string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Position{
			AccountID: accountID,
			Symbol:    symbol,
			Qty:       0,
			UpdatedAt: time.Now().UnixMilli(),
		}).Error
}

func (s *MySQLStore) AddShares(ctx context.Context, accountID, symbol string, qty int64) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}, {Name: "symbol"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"qty":        gorm.Expr("qty + ?", qty),
				"updated_at": time.Now().UnixMilli(),
			}),
		}).
		Create(&Position{
			AccountID: accountID,
			Symbol:    symbol,
			Qty:       qty,
			UpdatedAt: time.Now().UnixMilli(),
		}).Error
}

func (s *MySQLStore) DebitShares(ctx context.Context, accountID, symbol string, qty int64) error {
	if err := s.ensurePosition(ctx, accountID, symbol); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&Position{}).
		Where("account_id = ? AND symbol = ? AND qty >= ?", accountID, symbol, qty).
		Updates(map[string]any{
			"qty":        gorm.Expr("qty - ?", qty),
			"updated_at": time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientShares
	}
	return nil
}

func (s *MySQLStore) GetShares(ctx context.Context, accountID, symbol string) (int64, error) {
	var pos Position
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND symbol = ?", accountID, symbol).
		First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return pos.Qty, nil
}

// =============================================================================
// 挂单
// =============================================================================

func (s *MySQLStore) NextOrderID(ctx context.Context, accountID string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&Account{}).
		Where("account_id = ?", accountID).
		Update("next_order_id", gorm.Expr("next_order_id + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrAccountNotFound
	}

	var acct Account
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&acct).Error; err != nil {
		return 0, err
	}
	return acct.NextOrderID, nil
}

func (s *MySQLStore) InsertOpenOrder(ctx context.Context, o *OpenOrder) error {
	return s.db.WithContext(ctx).Create(o).Error
}

func (s *MySQLStore) GetOpenOrder(ctx context.Context, accountID string, orderID int64) (*OpenOrder, error) {
	var o OpenOrder
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ? AND order_id = ?", accountID, orderID).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *MySQLStore) ReduceOpenOrder(ctx context.Context, accountID string, orderID, qty int64) error {
	result := s.db.WithContext(ctx).Model(&OpenOrder{}).
		Where("account_id = ? AND order_id = ? AND qty >= ?", accountID, orderID, qty).
		Update("qty", gorm.Expr("qty - ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUpdateFailed
	}
	return nil
}

func (s *MySQLStore) CloseOpenOrder(ctx context.Context, accountID string, orderID int64) error {
	result := s.db.WithContext(ctx).Model(&OpenOrder{}).
		Where("account_id = ? AND order_id = ?", accountID, orderID).
		Update("qty", 0)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *MySQLStore) MatchCandidates(ctx context.Context, symbol string, side Side, limit int64, excludeAccount string) ([]*OpenOrder, error) {
	query := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("symbol = ? AND side = ? AND qty > 0 AND account_id != ?",
			symbol, side, excludeAccount)

	// 价格优先: 对手是买盘则价高者先, 卖盘则价低者先; 同价时间优先
	if side == SideBuy {
		query = query.Where("price >= ?", limit).
			Order("price DESC, created_at ASC, id ASC")
	} else {
		query = query.Where("price <= ?", limit).
			Order("price ASC, created_at ASC, id ASC")
	}

	var orders []*OpenOrder
	err := query.Find(&orders).Error
	return orders, err
}

// =============================================================================
// 历史
// =============================================================================

func (s *MySQLStore) AppendClosed(ctx context.Context, rec *ClosedRecord) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&ClosedRecord{}).
		Where("account_id = ? AND order_id = ?", rec.AccountID, rec.OrderID).
		Count(&count).Error
	if err != nil {
		return err
	}
	rec.Seq = int(count) + 1
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *MySQLStore) ListClosed(ctx context.Context, accountID string, orderID int64) ([]*ClosedRecord, error) {
	var records []*ClosedRecord
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND order_id = ?", accountID, orderID).
		Order("seq ASC").
		Find(&records).Error
	return records, err
}
