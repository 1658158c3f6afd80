package strategy

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/alert"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/metrics"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
	"github.com/crypto-tokens-bot/blockchain-manager/internal/queue"
)

type call struct {
	Name    string
	Amount  *big.Int
	Unstake UnstakeRequest
	Order   OrderParams
}

// fakeChain implements every collaborator and records calls in order.
type fakeChain struct {
	mu    sync.Mutex
	calls []call

	failOn        map[string]error
	unsuccessful  map[string]bool
	stakedTotal   *big.Int
	positionValue *big.Int
	orderStatus   OrderStatus
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		failOn:        make(map[string]error),
		unsuccessful:  make(map[string]bool),
		stakedTotal:   new(big.Int),
		positionValue: new(big.Int),
		orderStatus:   OrderFilled,
	}
}

func (f *fakeChain) record(c call) (TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if err := f.failOn[c.Name]; err != nil {
		return TxResult{}, err
	}
	if f.unsuccessful[c.Name] {
		return TxResult{Success: false}, nil
	}
	return TxResult{Success: true, TxHash: fmt.Sprintf("0x%s-%d", c.Name, len(f.calls))}, nil
}

func (f *fakeChain) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Name)
	}
	return out
}

func (f *fakeChain) find(name string) (call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.Name == name {
			return c, true
		}
	}
	return call{}, false
}

func (f *fakeChain) Bridge(_ context.Context, _ common.Address, amount *big.Int) (TxResult, error) {
	return f.record(call{Name: "bridge", Amount: amount})
}

func (f *fakeChain) BridgeBack(context.Context, common.Address) (TxResult, error) {
	return f.record(call{Name: "bridge_back"})
}

func (f *fakeChain) Swap(_ context.Context, _ common.Address, amount *big.Int) (TxResult, error) {
	return f.record(call{Name: "swap", Amount: amount})
}

func (f *fakeChain) SwapBack(context.Context, common.Address) (TxResult, error) {
	return f.record(call{Name: "swap_back"})
}

func (f *fakeChain) Stake(_ context.Context, _ common.Address, amount *big.Int) (TxResult, error) {
	return f.record(call{Name: "stake", Amount: amount})
}

func (f *fakeChain) Unstake(_ context.Context, req UnstakeRequest) (TxResult, error) {
	return f.record(call{Name: "unstake", Unstake: req})
}

func (f *fakeChain) UnstakeAll(context.Context, common.Address) (TxResult, error) {
	return f.record(call{Name: "unstake_all"})
}

func (f *fakeChain) StakedTotal(context.Context, common.Address) (*big.Int, error) {
	if err := f.failOn["staked_total"]; err != nil {
		return nil, err
	}
	return new(big.Int).Set(f.stakedTotal), nil
}

func (f *fakeChain) CompleteWithdrawal(_ context.Context, _ common.Address, amount *big.Int, _ string) (TxResult, error) {
	return f.record(call{Name: "complete_withdrawal", Amount: amount})
}

func (f *fakeChain) CreateMarketOrder(_ context.Context, params OrderParams) (OrderResult, error) {
	if _, err := f.record(call{Name: "market_order", Order: params, Amount: params.Size}); err != nil {
		return OrderResult{}, err
	}
	return OrderResult{OrderID: "ord-1", OrderType: "market", Status: f.orderStatus, FilledSize: decimal.NewFromBigInt(params.Size, 0)}, nil
}

func (f *fakeChain) ClosePosition(_ context.Context, symbol string) (OrderResult, error) {
	if _, err := f.record(call{Name: "close_position", Order: OrderParams{Symbol: symbol}}); err != nil {
		return OrderResult{}, err
	}
	return OrderResult{OrderID: "ord-close", OrderType: "market", Status: f.orderStatus}, nil
}

func (f *fakeChain) PositionValue(context.Context, string) (*big.Int, error) {
	if err := f.failOn["position_value"]; err != nil {
		return nil, err
	}
	return new(big.Int).Set(f.positionValue), nil
}

type fakeRecorder struct {
	mu          sync.Mutex
	events      []model.ContractEvent
	stakes      []metrics.StakingInfo
	unstakes    []metrics.UnstakingInfo
	swaps       []metrics.SwapInfo
	withdrawals []metrics.WithdrawalInfo
}

func (r *fakeRecorder) WriteContractEvent(e model.ContractEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *fakeRecorder) WriteStakingInfo(i metrics.StakingInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stakes = append(r.stakes, i)
}

func (r *fakeRecorder) WriteUnstakingInfo(i metrics.UnstakingInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unstakes = append(r.unstakes, i)
}

func (r *fakeRecorder) WriteSwapInfo(i metrics.SwapInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swaps = append(r.swaps, i)
}

func (r *fakeRecorder) WriteWithdrawalMetrics(i metrics.WithdrawalInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.withdrawals = append(r.withdrawals, i)
}

type fakeNotifier struct {
	alerts []alert.Alert
	err    error
}

func (n *fakeNotifier) Notify(_ context.Context, a alert.Alert) error {
	n.alerts = append(n.alerts, a)
	return n.err
}

type fakeRecovery struct {
	tasks []model.RecoveryTask
	err   error
}

func (r *fakeRecovery) CreateRecoveryTask(_ context.Context, task model.RecoveryTask) error {
	r.tasks = append(r.tasks, task)
	return r.err
}

type fakeOperations struct {
	mu    sync.Mutex
	kinds []string
}

func (o *fakeOperations) RecordOperation(_ context.Context, kind string, _ map[string]any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kinds = append(o.kinds, kind)
	return nil
}

type fakeLocker struct {
	held     map[string]bool
	unlocked int
	err      error
}

func (l *fakeLocker) Lock(_ context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.held[key] {
		return nil, fmt.Errorf("%s: %w", key, queue.ErrLocked)
	}
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	l.held[key] = true
	return func() {
		delete(l.held, key)
		l.unlocked++
	}, nil
}

var testUser = common.HexToAddress("0x2222222222222222222222222222222222222222")

func wei(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func runContext(amount *big.Int) RunContext {
	return RunContext{User: testUser, Amount: amount, CorrelationID: "0xcorrelation"}
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}
