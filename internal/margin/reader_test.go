package margin

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"marginScope/internal/chain/chaintest"
	"marginScope/internal/dex"
	"marginScope/internal/pricemath"
)

var (
	testPool     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testBorrower = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testLender0  = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testLender1  = common.HexToAddress("0x5555555555555555555555555555555555555555")
	testToken0   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testToken1   = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func scaled(v int64, decimals int) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), pricemath.Pow10(decimals))
}

func stubAccount(t *testing.T, caller *chaintest.Caller) {
	t.Helper()
	poolABI, err := dex.V3PoolABI()
	if err != nil {
		t.Fatalf("pool abi: %v", err)
	}
	erc20ABI, err := dex.ERC20ABI()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}
	borrower, err := borrowerABI.Get()
	if err != nil {
		t.Fatalf("borrower abi: %v", err)
	}
	lender, err := lenderABI.Get()
	if err != nil {
		t.Fatalf("lender abi: %v", err)
	}

	zero := big.NewInt(0)
	holder := []interface{}{testBorrower}
	stubs := []struct {
		to      common.Address
		method  string
		args    []interface{}
		outputs []interface{}
		parsed  abi.ABI
	}{
		{testPool, "token0", nil, []interface{}{testToken0}, poolABI},
		{testPool, "token1", nil, []interface{}{testToken1}, poolABI},
		{testPool, "slot0", nil, []interface{}{pricemath.Q96, big.NewInt(0), uint16(0), uint16(1), uint16(1), uint8(0), true}, poolABI},
		{testPool, "positions", []interface{}{[32]byte(dex.PositionKey(testBorrower, -600, 600))}, []interface{}{scaled(1, 12), zero, zero, zero, zero}, poolABI},
		{testToken0, "decimals", nil, []interface{}{uint8(18)}, erc20ABI},
		{testToken0, "symbol", nil, []interface{}{"WETH"}, erc20ABI},
		{testToken0, "name", nil, []interface{}{"Wrapped Ether"}, erc20ABI},
		{testToken1, "decimals", nil, []interface{}{uint8(6)}, erc20ABI},
		{testToken1, "symbol", nil, []interface{}{"USDC"}, erc20ABI},
		{testToken1, "name", nil, []interface{}{"USD Coin"}, erc20ABI},
		{testToken0, "balanceOf", holder, []interface{}{scaled(2, 18)}, erc20ABI},
		{testToken1, "balanceOf", holder, []interface{}{scaled(5, 6)}, erc20ABI},
		{testLender0, "borrowBalanceStored", holder, []interface{}{scaled(1, 18)}, lender},
		{testLender0, "underlyingBalanceStored", holder, []interface{}{scaled(5, 17)}, lender},
		{testLender1, "borrowBalanceStored", holder, []interface{}{scaled(3, 6)}, lender},
		{testLender1, "underlyingBalanceStored", holder, []interface{}{zero}, lender},
		{testBorrower, "getUniswapPositions", nil, []interface{}{[]*big.Int{big.NewInt(-600), big.NewInt(600), big.NewInt(60)}}, borrower},
	}
	for _, s := range stubs {
		err := caller.Stub(s.to, s.parsed, s.method, s.args, s.outputs...)
		if err != nil {
			t.Fatalf("stub %s: %v", s.method, err)
		}
	}
}

func testTarget() Target {
	return Target{
		Borrower:               testBorrower,
		Pool:                   testPool,
		Lender0:                testLender0,
		Lender1:                testLender1,
		IncludeInterestBearing: true,
	}
}

func TestReaderSnapshot(t *testing.T) {
	caller := chaintest.NewCaller(77)
	stubAccount(t, caller)

	reader := NewReader(Config{MaxRetries: 0}, caller, nil)
	state, err := reader.Snapshot(context.Background(), testTarget())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if state.BlockNumber != 77 {
		t.Fatalf("block mismatch: %d", state.BlockNumber)
	}
	account := state.Account
	if account.Borrower != testBorrower.Hex() || !account.IncludeInterestBearing {
		t.Fatalf("account header mismatch: %+v", account)
	}
	if account.Token0.Symbol != "WETH" || account.Token1.Decimals != 6 {
		t.Fatalf("token meta mismatch: %+v %+v", account.Token0, account.Token1)
	}
	if account.SqrtPriceX96.Cmp(pricemath.Q96) != 0 {
		t.Fatalf("sqrt price mismatch: %s", account.SqrtPriceX96)
	}

	checks := map[string]struct {
		got  decimal.Decimal
		want string
	}{
		"token0 raw":      {account.Assets.Token0Raw, "2"},
		"token1 raw":      {account.Assets.Token1Raw, "5"},
		"token0 interest": {account.Assets.Token0Interest, "0.5"},
		"token1 interest": {account.Assets.Token1Interest, "0"},
		"liabilities0":    {account.Liabilities.Amount0, "1"},
		"liabilities1":    {account.Liabilities.Amount1, "3"},
	}
	for name, c := range checks {
		if !c.got.Equal(decimal.RequireFromString(c.want)) {
			t.Fatalf("%s: got %s want %s", name, c.got, c.want)
		}
	}
	if !account.Assets.Uni0.IsPositive() || !account.Assets.Uni1.IsPositive() {
		t.Fatalf("in-range position should expose both tokens: %s %s", account.Assets.Uni0, account.Assets.Uni1)
	}

	if len(state.Positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(state.Positions))
	}
	if state.Positions[0].Liquidity.Cmp(scaled(1, 12)) != 0 {
		t.Fatalf("liquidity mismatch: %s", state.Positions[0].Liquidity)
	}
	if state.Positions[1].Upper != nil || *state.Positions[1].Lower != 60 || state.Positions[1].Liquidity.Sign() != 0 {
		t.Fatalf("trailing position should be half-filled: %+v", state.Positions[1])
	}

	for _, b := range caller.Blocks() {
		if b != nil && b.Uint64() != 77 {
			t.Fatalf("call pinned to block %s", b)
		}
	}
}

func TestReaderSnapshotRetries(t *testing.T) {
	caller := chaintest.NewCaller(5)
	stubAccount(t, caller)
	caller.FailNext(2)

	reader := NewReader(Config{MaxRetries: 3, RetryBackoff: time.Millisecond}, caller, nil)
	if _, err := reader.Snapshot(context.Background(), testTarget()); err != nil {
		t.Fatalf("snapshot should survive transient failures: %v", err)
	}
}

func TestReaderSnapshotCachesTokenMeta(t *testing.T) {
	caller := chaintest.NewCaller(5)
	stubAccount(t, caller)
	reader := NewReader(Config{}, caller, nil)

	if _, err := reader.Snapshot(context.Background(), testTarget()); err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	first := caller.Calls()
	if _, err := reader.Snapshot(context.Background(), testTarget()); err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	second := caller.Calls() - first
	if second >= first {
		t.Fatalf("second snapshot should skip metadata calls: %d then %d", first, second)
	}
}

func TestReaderSnapshotWithoutLenders(t *testing.T) {
	caller := chaintest.NewCaller(5)
	stubAccount(t, caller)
	target := testTarget()
	target.Lender0 = common.Address{}
	target.Lender1 = common.Address{}

	state, err := NewReader(Config{}, caller, nil).Snapshot(context.Background(), target)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !state.Account.Liabilities.Amount0.IsZero() || !state.Account.Liabilities.Amount1.IsZero() {
		t.Fatalf("no lenders means no debt: %+v", state.Account.Liabilities)
	}
}

func TestReaderSnapshotReportsFailures(t *testing.T) {
	caller := chaintest.NewCaller(5)
	stubAccount(t, caller)
	target := testTarget()
	target.Lender1 = common.HexToAddress("0x6666666666666666666666666666666666666666")

	_, err := NewReader(Config{}, caller, nil).Snapshot(context.Background(), target)
	if err == nil || !strings.Contains(err.Error(), "lender") {
		t.Fatalf("expected lender error, got %v", err)
	}
}
