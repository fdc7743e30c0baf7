package taxlot

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crypto-tax-ledger/internal/domain"
	"crypto-tax-ledger/internal/storage/memory"
)

func ms(year int, month time.Month, day int) int64 {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Helper to create a transaction with the fields the engine reads.
func makeTx(id, userID, kind, asset, amount, quoteAmount string, timestamp int64) *domain.NormalizedTransaction {
	return &domain.NormalizedTransaction{
		ID:          id,
		UserID:      userID,
		Source:      "coinbase",
		Kind:        kind,
		BaseAsset:   asset,
		BaseAmount:  dec(amount),
		QuoteAsset:  "USD",
		QuoteAmount: dec(quoteAmount),
		FeeAmount:   decimal.Zero,
		Timestamp:   timestamp,
	}
}

func seedEngine(t *testing.T, txs ...*domain.NormalizedTransaction) *Engine {
	t.Helper()
	store := memory.NewTransactionStore()
	for _, tx := range txs {
		if err := store.Insert(context.Background(), tx); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	return NewEngine(store, nil)
}

func TestCalculate_LongTermGain(t *testing.T) {
	engine := seedEngine(t,
		makeTx("buy1", "u1", domain.KindBuy, "BTC", "1", "10000", ms(2023, time.January, 1)),
		makeTx("sell1", "u1", domain.KindSell, "BTC", "0.5", "7500", ms(2024, time.February, 1)),
	)

	result, err := engine.Calculate(context.Background(), "u1", 2024, domain.MethodFIFO)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if result.TransactionsIncluded != 1 {
		t.Fatalf("expected 1 item, got %d", result.TransactionsIncluded)
	}
	item := result.Items[0]
	if !item.CostBasis.Equal(dec("5000")) {
		t.Errorf("expected cost basis 5000, got %s", item.CostBasis)
	}
	if !item.Proceeds.Equal(dec("7500")) {
		t.Errorf("expected proceeds 7500, got %s", item.Proceeds)
	}
	if !item.GainOrLoss.Equal(dec("2500")) {
		t.Errorf("expected gain 2500, got %s", item.GainOrLoss)
	}
	if !item.IsLongTerm {
		t.Error("expected long-term item")
	}
	if !result.LongTermGains.Equal(dec("2500")) {
		t.Errorf("expected long-term gains 2500, got %s", result.LongTermGains)
	}
	for name, v := range map[string]decimal.Decimal{
		"ShortTermGains":  result.ShortTermGains,
		"ShortTermLosses": result.ShortTermLosses,
		"LongTermLosses":  result.LongTermLosses,
	} {
		if !v.IsZero() {
			t.Errorf("expected %s zero, got %s", name, v)
		}
	}
	if !result.NetGainLoss.Equal(dec("2500")) {
		t.Errorf("expected net 2500, got %s", result.NetGainLoss)
	}
}

func TestCalculate_Exactly365DaysIsShortTerm(t *testing.T) {
	acquired := ms(2023, time.March, 10)
	soldExact := acquired + 365*24*60*60*1000
	engine := seedEngine(t,
		makeTx("buy1", "u1", domain.KindBuy, "ETH", "1", "1000", acquired),
		makeTx("sell1", "u1", domain.KindSell, "ETH", "1", "2000", soldExact),
	)

	result, err := engine.Calculate(context.Background(), "u1", 2024, domain.MethodFIFO)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if result.Items[0].IsLongTerm {
		t.Error("exactly 365 days must be short-term")
	}

	// One millisecond past the boundary flips to long-term.
	engine = seedEngine(t,
		makeTx("buy1", "u1", domain.KindBuy, "ETH", "1", "1000", acquired),
		makeTx("sell1", "u1", domain.KindSell, "ETH", "1", "2000", soldExact+1),
	)
	result, err = engine.Calculate(context.Background(), "u1", 2024, domain.MethodFIFO)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if !result.Items[0].IsLongTerm {
		t.Error("365 days + 1ms must be long-term")
	}
}

func TestCalculate_MethodOrdering(t *testing.T) {
	txs := []*domain.NormalizedTransaction{
		makeTx("buy1", "u1", domain.KindBuy, "BTC", "1", "10000", ms(2020, time.January, 1)),
		makeTx("buy2", "u1", domain.KindBuy, "BTC", "1", "20000", ms(2021, time.January, 1)),
		makeTx("buy3", "u1", domain.KindBuy, "BTC", "1", "30000", ms(2022, time.January, 1)),
		makeTx("sell1", "u1", domain.KindSell, "BTC", "1", "40000", ms(2023, time.June, 1)),
	}

	gains := make(map[domain.Method]decimal.Decimal)
	for _, method := range []domain.Method{domain.MethodFIFO, domain.MethodLIFO, domain.MethodHIFO} {
		engine := seedEngine(t, txs...)
		result, err := engine.Calculate(context.Background(), "u1", 2023, method)
		if err != nil {
			t.Fatalf("%s: Calculate failed: %v", method, err)
		}
		gains[method] = result.TotalGains
	}

	if !gains[domain.MethodFIFO].Equal(dec("30000")) {
		t.Errorf("FIFO: expected gains 30000, got %s", gains[domain.MethodFIFO])
	}
	if !gains[domain.MethodLIFO].Equal(dec("10000")) {
		t.Errorf("LIFO: expected gains 10000, got %s", gains[domain.MethodLIFO])
	}
	if !gains[domain.MethodHIFO].Equal(dec("10000")) {
		t.Errorf("HIFO: expected gains 10000, got %s", gains[domain.MethodHIFO])
	}

	// HIFO minimizes gains by construction.
	if gains[domain.MethodHIFO].GreaterThan(gains[domain.MethodFIFO]) {
		t.Error("HIFO gains must not exceed FIFO gains")
	}
	if gains[domain.MethodHIFO].GreaterThan(gains[domain.MethodLIFO]) {
		t.Error("HIFO gains must not exceed LIFO gains")
	}
}

func TestCalculate_UnknownMethodBehavesAsFIFO(t *testing.T) {
	txs := []*domain.NormalizedTransaction{
		makeTx("buy1", "u1", domain.KindBuy, "BTC", "1", "10000", ms(2020, time.January, 1)),
		makeTx("buy2", "u1", domain.KindBuy, "BTC", "1", "30000", ms(2021, time.January, 1)),
		makeTx("sell1", "u1", domain.KindSell, "BTC", "1", "40000", ms(2023, time.June, 1)),
	}

	fifo, err := seedEngine(t, txs...).Calculate(context.Background(), "u1", 2023, domain.MethodFIFO)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	unknown, err := seedEngine(t, txs...).Calculate(context.Background(), "u1", 2023, domain.Method("AVCO"))
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if !fifo.NetGainLoss.Equal(unknown.NetGainLoss) {
		t.Errorf("unknown method net %s differs from FIFO net %s", unknown.NetGainLoss, fifo.NetGainLoss)
	}
}

func TestCalculate_Conservation(t *testing.T) {
	disposalAmount := dec("2.75")
	engine := seedEngine(t,
		makeTx("buy1", "u1", domain.KindBuy, "ETH", "1", "1000", ms(2022, time.January, 1)),
		makeTx("buy2", "u1", domain.KindBuy, "ETH", "0.5", "600", ms(2022, time.June, 1)),
		makeTx("sell1", "u1", domain.KindSell, "ETH", disposalAmount.String(), "9000", ms(2023, time.March, 1)),
	)

	result, err := engine.Calculate(context.Background(), "u1", 2023, domain.MethodFIFO)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	total := decimal.Zero
	for _, item := range result.Items {
		total = total.Add(item.Amount)
		if item.Amount.IsNegative() {
			t.Errorf("item amount must not be negative, got %s", item.Amount)
		}
	}
	if !total.Equal(disposalAmount) {
		t.Errorf("allocated %s, disposal was %s", total, disposalAmount)
	}
}

func TestCalculate_UnknownBasisRemainder(t *testing.T) {
	engine := seedEngine(t,
		makeTx("buy1", "u1", domain.KindBuy, "SOL", "10", "100", ms(2022, time.January, 1)),
		makeTx("sell1", "u1", domain.KindSell, "SOL", "15", "1500", ms(2023, time.March, 1)),
	)

	result, err := engine.Calculate(context.Background(), "u1", 2023, domain.MethodFIFO)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items (lot + remainder), got %d", len(result.Items))
	}

	remainder := result.Items[1]
	if remainder.DateAcquired != domain.UnknownAcquisitionDate {
		t.Errorf("expected unknown acquisition date sentinel, got %d", remainder.DateAcquired)
	}
	if !remainder.CostBasis.IsZero() {
		t.Errorf("expected zero cost basis, got %s", remainder.CostBasis)
	}
	if !remainder.Amount.Equal(dec("5")) {
		t.Errorf("expected remainder amount 5, got %s", remainder.Amount)
	}
	// 1500 proceeds over 15 units, 5 uncovered units.
	if !remainder.Proceeds.Equal(dec("500")) {
		t.Errorf("expected remainder proceeds 500, got %s", remainder.Proceeds)
	}
	if !remainder.GainOrLoss.Equal(dec("500")) {
		t.Errorf("expected remainder gain 500, got %s", remainder.GainOrLoss)
	}
	if !remainder.IsLongTerm {
		t.Error("unknown-basis remainder is flagged long-term")
	}
}

func TestCalculate_ZeroAmountsDegradeToZero(t *testing.T) {
	engine := seedEngine(t,
		makeTx("buy1", "u1", domain.KindBuy, "DUST", "0", "100", ms(2022, time.January, 1)),
		makeTx("sell1", "u1", domain.KindSell, "DUST", "0", "0", ms(2023, time.March, 1)),
	)

	result, err := engine.Calculate(context.Background(), "u1", 2023, domain.MethodFIFO)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	for _, item := range result.Items {
		if !item.GainOrLoss.IsZero() {
			t.Errorf("zero-amount disposal must produce zero gain, got %s", item.GainOrLoss)
		}
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	engine := seedEngine(t,
		makeTx("buy1", "u1", domain.KindBuy, "BTC", "2", "20000", ms(2021, time.May, 1)),
		makeTx("buy2", "u1", domain.KindStaking, "BTC", "0.1", "3000", ms(2022, time.August, 15)),
		makeTx("sell1", "u1", domain.KindSell, "BTC", "1.3", "52000", ms(2023, time.April, 2)),
		makeTx("sell2", "u1", domain.KindGiftSent, "BTC", "0.2", "8000", ms(2023, time.November, 20)),
	)

	first, err := engine.Calculate(context.Background(), "u1", 2023, domain.MethodHIFO)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	second, err := engine.Calculate(context.Background(), "u1", 2023, domain.MethodHIFO)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if len(first.Items) != len(second.Items) {
		t.Fatalf("item counts differ: %d vs %d", len(first.Items), len(second.Items))
	}
	for i := range first.Items {
		a, b := first.Items[i], second.Items[i]
		if a.Asset != b.Asset || a.DateAcquired != b.DateAcquired || a.DateSold != b.DateSold ||
			!a.Amount.Equal(b.Amount) || !a.Proceeds.Equal(b.Proceeds) ||
			!a.CostBasis.Equal(b.CostBasis) || !a.GainOrLoss.Equal(b.GainOrLoss) ||
			a.IsLongTerm != b.IsLongTerm {
			t.Errorf("item %d differs between runs: %+v vs %+v", i, a, b)
		}
	}
	if !first.NetGainLoss.Equal(second.NetGainLoss) {
		t.Errorf("net differs between runs: %s vs %s", first.NetGainLoss, second.NetGainLoss)
	}
}

func TestCalculate_TransfersExcluded(t *testing.T) {
	matchID := "m1"
	withdrawal := makeTx("w1", "u1", domain.KindWithdrawal, "BTC", "1", "0", ms(2023, time.February, 1))
	withdrawal.IsTransfer = true
	withdrawal.TransferMatchID = &matchID
	deposit := makeTx("d1", "u1", domain.KindDeposit, "BTC", "1", "0", ms(2023, time.February, 1))
	deposit.IsTransfer = true
	deposit.TransferMatchID = &matchID

	engine := seedEngine(t,
		makeTx("buy1", "u1", domain.KindBuy, "BTC", "1", "10000", ms(2022, time.January, 1)),
		withdrawal,
		deposit,
	)

	result, err := engine.Calculate(context.Background(), "u1", 2023, domain.MethodFIFO)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if len(result.Items) != 0 {
		t.Errorf("transfer legs must not produce gain items, got %d", len(result.Items))
	}
}

func TestCalculate_DisposalOutsideYearIgnored(t *testing.T) {
	engine := seedEngine(t,
		makeTx("buy1", "u1", domain.KindBuy, "BTC", "2", "20000", ms(2021, time.January, 1)),
		makeTx("sell-prev", "u1", domain.KindSell, "BTC", "1", "15000", ms(2022, time.June, 1)),
		makeTx("sell-cur", "u1", domain.KindSell, "BTC", "1", "30000", ms(2023, time.June, 1)),
	)

	result, err := engine.Calculate(context.Background(), "u1", 2023, domain.MethodFIFO)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected only current-year disposal, got %d items", len(result.Items))
	}
	if result.Items[0].DateSold != ms(2023, time.June, 1) {
		t.Errorf("wrong disposal allocated: %d", result.Items[0].DateSold)
	}
}

func TestAggregate_Buckets(t *testing.T) {
	items := []domain.CapitalGainItem{
		{GainOrLoss: dec("100"), IsLongTerm: false},
		{GainOrLoss: dec("-40"), IsLongTerm: false},
		{GainOrLoss: dec("250"), IsLongTerm: true},
		{GainOrLoss: dec("-10"), IsLongTerm: true},
	}

	result := Aggregate(items)

	if !result.ShortTermGains.Equal(dec("100")) {
		t.Errorf("short gains: got %s", result.ShortTermGains)
	}
	if !result.ShortTermLosses.Equal(dec("40")) {
		t.Errorf("short losses: got %s", result.ShortTermLosses)
	}
	if !result.LongTermGains.Equal(dec("250")) {
		t.Errorf("long gains: got %s", result.LongTermGains)
	}
	if !result.LongTermLosses.Equal(dec("10")) {
		t.Errorf("long losses: got %s", result.LongTermLosses)
	}
	if !result.TotalGains.Equal(dec("350")) || !result.TotalLosses.Equal(dec("50")) {
		t.Errorf("totals: gains %s losses %s", result.TotalGains, result.TotalLosses)
	}
	if !result.NetGainLoss.Equal(dec("300")) {
		t.Errorf("net: got %s", result.NetGainLoss)
	}
	if result.TransactionsIncluded != 4 {
		t.Errorf("transactions included: got %d", result.TransactionsIncluded)
	}
}

func TestAggregate_Empty(t *testing.T) {
	result := Aggregate(nil)
	if result.TransactionsIncluded != 0 {
		t.Errorf("expected 0 included, got %d", result.TransactionsIncluded)
	}
	if !result.NetGainLoss.IsZero() {
		t.Errorf("expected zero net, got %s", result.NetGainLoss)
	}
}
