// 文件: pkg/dispatch/dispatcher_test.go
// 调度器测试: 片段按提交顺序落位, 失败命令只影响自己

package dispatch

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"stex.com/pkg/exchange"
	"stex.com/pkg/ledger"
	"stex.com/pkg/wire"
)

func newDispatcher(t *testing.T) (*Dispatcher, *ledger.MemStore) {
	t.Helper()
	store := ledger.NewMemStore()
	ex := exchange.New(store)
	return New(ex, DefaultConfig()), store
}

func TestDispatch_UnknownAccountAbortsBatch(t *testing.T) {
	d, _ := newDispatcher(t)

	batch := &wire.Batch{
		Account:  "ghost",
		Commands: []wire.Command{wire.Query{ID: "1"}},
	}
	frags, err := d.Dispatch(context.Background(), batch)
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if frags != nil {
		t.Error("aborted batch must not produce fragments")
	}
}

func TestDispatch_FragmentsKeepSubmissionOrder(t *testing.T) {
	d, store := newDispatcher(t)
	ctx := context.Background()
	store.CreateAccount(ctx, "1", 1000000)
	store.AddShares(ctx, "1", "SPY", 100)

	// 混合批次: 下单 / 坏查询 / 坏撤单 / 下单
	batch := &wire.Batch{
		Account: "1",
		Commands: []wire.Command{
			wire.PlaceOrder{Sym: "SPY", Amount: "5", Limit: "6"},
			wire.Query{ID: "notanumber"},
			wire.Cancel{ID: "999"},
			wire.PlaceOrder{Sym: "SPY", Amount: "-5", Limit: "1000"},
		},
	}
	frags, err := d.Dispatch(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != len(batch.Commands) {
		t.Fatalf("got %d fragments, want %d", len(frags), len(batch.Commands))
	}

	if _, ok := frags[0].(wire.Opened); !ok {
		t.Errorf("fragment 0: expected Opened, got %T", frags[0])
	}
	if e, ok := frags[1].(wire.ErrorFragment); !ok || e.Reason != "Order does not exist" {
		t.Errorf("fragment 1: expected order-not-exist error, got %#v", frags[1])
	}
	if e, ok := frags[2].(wire.ErrorFragment); !ok || e.Reason != "Order does not exist" {
		t.Errorf("fragment 2: expected order-not-exist error, got %#v", frags[2])
	}
	if _, ok := frags[3].(wire.Opened); !ok {
		t.Errorf("fragment 3: expected Opened, got %T", frags[3])
	}
}

// 并发执行不打乱重组顺序: 每个片段都要回到自己命令的位置
func TestDispatch_ConcurrentBatchReassembly(t *testing.T) {
	d, store := newDispatcher(t)
	ctx := context.Background()
	store.CreateAccount(ctx, "1", 1_000_000_00)

	const n = 40
	cmds := make([]wire.Command, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			cmds = append(cmds, wire.PlaceOrder{Sym: "SPY", Amount: "1", Limit: "1"})
		} else {
			// 故意失败的命令穿插其间
			cmds = append(cmds, wire.Cancel{ID: strconv.Itoa(10000 + i)})
		}
	}

	frags, err := d.Dispatch(ctx, &wire.Batch{Account: "1", Commands: cmds})
	if err != nil {
		t.Fatal(err)
	}
	for i, frag := range frags {
		if frag == nil {
			t.Fatalf("fragment %d missing", i)
		}
		if i%2 == 0 {
			if _, ok := frag.(wire.Opened); !ok {
				t.Errorf("fragment %d: expected Opened, got %T", i, frag)
			}
		} else {
			e, ok := frag.(wire.ErrorFragment)
			if !ok || e.ID != strconv.Itoa(10000+i) {
				t.Errorf("fragment %d: expected error echoing id %d, got %#v", i, 10000+i, frag)
			}
		}
	}
}

func TestDispatch_PlaceErrorEchoesRequest(t *testing.T) {
	d, store := newDispatcher(t)
	ctx := context.Background()
	store.CreateAccount(ctx, "1", 0)

	frags, err := d.Dispatch(ctx, &wire.Batch{
		Account: "1",
		Commands: []wire.Command{
			wire.PlaceOrder{Sym: "SPY", Amount: "5", Limit: "6"}, // 没钱
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	e, ok := frags[0].(wire.ErrorFragment)
	if !ok {
		t.Fatalf("expected error fragment, got %T", frags[0])
	}
	if e.Sym != "SPY" || e.Amount != "5" || e.Limit != "6" {
		t.Errorf("error must echo the request attributes: %#v", e)
	}
	if e.Reason != "Insufficient funds" {
		t.Errorf("reason = %q", e.Reason)
	}
}
