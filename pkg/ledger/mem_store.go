// 文件: pkg/ledger/mem_store.go
// 账本存储 - 内存实现
//
// 用于单元测试和本地开发, 语义与 MySQL 实现对齐:
// - 单个互斥锁串行化所有操作, 满足"触碰同一账户的并发操作互相可见"
// - InTx 在状态的深拷贝上执行 fn, 成功才替换原状态, 失败整体丢弃,
//   外部永远看不到半提交的效果

package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memState struct {
	accounts  map[string]*Account
	positions map[string]map[string]int64 // accountID → symbol → qty
	orders    map[string][]*OpenOrder     // accountID → 按订单号递增
	records   map[string][]*ClosedRecord  // accountID → 追加序
	nextRowID uint                        // 模拟自增主键, 做同时刻的兜底排序
}

func newMemState() *memState {
	return &memState{
		accounts:  make(map[string]*Account),
		positions: make(map[string]map[string]int64),
		orders:    make(map[string][]*OpenOrder),
		records:   make(map[string][]*ClosedRecord),
	}
}

func (st *memState) clone() *memState {
	c := newMemState()
	c.nextRowID = st.nextRowID
	for id, a := range st.accounts {
		cp := *a
		c.accounts[id] = &cp
	}
	for id, pos := range st.positions {
		m := make(map[string]int64, len(pos))
		for sym, qty := range pos {
			m[sym] = qty
		}
		c.positions[id] = m
	}
	for id, orders := range st.orders {
		list := make([]*OpenOrder, len(orders))
		for i, o := range orders {
			cp := *o
			list[i] = &cp
		}
		c.orders[id] = list
	}
	for id, recs := range st.records {
		list := make([]*ClosedRecord, len(recs))
		for i, r := range recs {
			cp := *r
			list[i] = &cp
		}
		c.records[id] = list
	}
	return c
}

func (st *memState) findOrder(accountID string, orderID int64) *OpenOrder {
	for _, o := range st.orders[accountID] {
		if o.OrderID == orderID {
			return o
		}
	}
	return nil
}

// =============================================================================
// MemStore
// =============================================================================

type MemStore struct {
	mu sync.Mutex
	st *memState

	// 事务视图: InTx 内的嵌套调用直接操作拷贝, 不再加锁
	inTx bool
}

func NewMemStore() *MemStore {
	return &MemStore{st: newMemState()}
}

// run 单个操作的原子外壳
func (s *MemStore) run(fn func(st *memState) error) error {
	if s.inTx {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// InTx 拷贝-执行-替换: fn 出错时拷贝被丢弃, 原状态不变
func (s *MemStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s) // 已在事务内, 直接复用
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()
	if err := fn(&MemStore{st: staged, inTx: true}); err != nil {
		return err
	}
	s.st = staged
	return nil
}

// =============================================================================
// 账户
// =============================================================================

func (s *MemStore) CreateAccount(ctx context.Context, accountID string, balance int64) error {
	return s.run(func(st *memState) error {
		if _, ok := st.accounts[accountID]; ok {
			return ErrAccountExists
		}
		now := time.Now().UnixMilli()
		st.accounts[accountID] = &Account{
			AccountID: accountID,
			Balance:   balance,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return nil
	})
}

func (s *MemStore) AccountExists(ctx context.Context, accountID string) (bool, error) {
	var exists bool
	err := s.run(func(st *memState) error {
		_, exists = st.accounts[accountID]
		return nil
	})
	return exists, err
}

func (s *MemStore) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	var out *Account
	err := s.run(func(st *memState) error {
		a, ok := st.accounts[accountID]
		if !ok {
			return ErrAccountNotFound
		}
		cp := *a
		out = &cp
		return nil
	})
	return out, err
}

// =============================================================================
// 资金与持仓
// =============================================================================

func (s *MemStore) AddFunds(ctx context.Context, accountID string, amount int64) error {
	return s.run(func(st *memState) error {
		a, ok := st.accounts[accountID]
		if !ok {
			return ErrAccountNotFound
		}
		a.Balance += amount
		a.UpdatedAt = time.Now().UnixMilli()
		return nil
	})
}

func (s *MemStore) DebitFunds(ctx context.Context, accountID string, amount int64) error {
	return s.run(func(st *memState) error {
		a, ok := st.accounts[accountID]
		if !ok {
			return ErrAccountNotFound
		}
		if a.Balance < amount {
			return ErrInsufficientFunds
		}
		a.Balance -= amount
		a.UpdatedAt = time.Now().UnixMilli()
		return nil
	})
}

func (s *MemStore) AddShares(ctx context.Context, accountID, symbol string, qty int64) error {
	return s.run(func(st *memState) error {
		pos, ok := st.positions[accountID]
		if !ok {
			pos = make(map[string]int64)
			st.positions[accountID] = pos
		}
		pos[symbol] += qty
		return nil
	})
}

func (s *MemStore) DebitShares(ctx context.Context, accountID, symbol string, qty int64) error {
	return s.run(func(st *memState) error {
		pos, ok := st.positions[accountID]
		if !ok {
			pos = make(map[string]int64)
			st.positions[accountID] = pos
		}
		if pos[symbol] < qty {
			return ErrInsufficientShares
		}
		pos[symbol] -= qty
		return nil
	})
}

func (s *MemStore) GetShares(ctx context.Context, accountID, symbol string) (int64, error) {
	var qty int64
	err := s.run(func(st *memState) error {
		qty = st.positions[accountID][symbol]
		return nil
	})
	return qty, err
}

// =============================================================================
// 挂单
// =============================================================================

func (s *MemStore) NextOrderID(ctx context.Context, accountID string) (int64, error) {
	var id int64
	err := s.run(func(st *memState) error {
		a, ok := st.accounts[accountID]
		if !ok {
			return ErrAccountNotFound
		}
		a.NextOrderID++
		id = a.NextOrderID
		return nil
	})
	return id, err
}

func (s *MemStore) InsertOpenOrder(ctx context.Context, o *OpenOrder) error {
	return s.run(func(st *memState) error {
		st.nextRowID++
		cp := *o
		cp.ID = st.nextRowID
		o.ID = st.nextRowID
		st.orders[o.AccountID] = append(st.orders[o.AccountID], &cp)
		return nil
	})
}

func (s *MemStore) GetOpenOrder(ctx context.Context, accountID string, orderID int64) (*OpenOrder, error) {
	var out *OpenOrder
	err := s.run(func(st *memState) error {
		o := st.findOrder(accountID, orderID)
		if o == nil {
			return ErrOrderNotFound
		}
		cp := *o
		out = &cp
		return nil
	})
	return out, err
}

func (s *MemStore) ReduceOpenOrder(ctx context.Context, accountID string, orderID, qty int64) error {
	return s.run(func(st *memState) error {
		o := st.findOrder(accountID, orderID)
		if o == nil || o.Qty < qty {
			return ErrUpdateFailed
		}
		o.Qty -= qty
		return nil
	})
}

func (s *MemStore) CloseOpenOrder(ctx context.Context, accountID string, orderID int64) error {
	return s.run(func(st *memState) error {
		o := st.findOrder(accountID, orderID)
		if o == nil {
			return ErrOrderNotFound
		}
		o.Qty = 0
		return nil
	})
}

func (s *MemStore) MatchCandidates(ctx context.Context, symbol string, side Side, limit int64, excludeAccount string) ([]*OpenOrder, error) {
	var out []*OpenOrder
	err := s.run(func(st *memState) error {
		for acct, orders := range st.orders {
			if acct == excludeAccount {
				continue
			}
			for _, o := range orders {
				if o.Symbol != symbol || o.Side != side || o.Qty == 0 {
					continue
				}
				if side == SideBuy && o.Price < limit {
					continue
				}
				if side == SideSell && o.Price > limit {
					continue
				}
				cp := *o
				out = append(out, &cp)
			}
		}
		// 价格优先、时间优先, 同时刻按入库先后 (ID) 兜底
		sort.Slice(out, func(i, j int) bool {
			if out[i].Price != out[j].Price {
				if side == SideBuy {
					return out[i].Price > out[j].Price
				}
				return out[i].Price < out[j].Price
			}
			if out[i].CreatedAt != out[j].CreatedAt {
				return out[i].CreatedAt < out[j].CreatedAt
			}
			return out[i].ID < out[j].ID
		})
		return nil
	})
	return out, err
}

// =============================================================================
// 历史
// =============================================================================

func (s *MemStore) AppendClosed(ctx context.Context, rec *ClosedRecord) error {
	return s.run(func(st *memState) error {
		seq := 1
		for _, r := range st.records[rec.AccountID] {
			if r.OrderID == rec.OrderID {
				seq++
			}
		}
		cp := *rec
		cp.Seq = seq
		rec.Seq = seq
		st.records[rec.AccountID] = append(st.records[rec.AccountID], &cp)
		return nil
	})
}

func (s *MemStore) ListClosed(ctx context.Context, accountID string, orderID int64) ([]*ClosedRecord, error) {
	var out []*ClosedRecord
	err := s.run(func(st *memState) error {
		for _, r := range st.records[accountID] {
			if r.OrderID == orderID {
				cp := *r
				out = append(out, &cp)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
		return nil
	})
	return out, err
}

var _ Store = (*MemStore)(nil)
var _ Store = (*MySQLStore)(nil)
