package engine

import (
	"math"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
)

// bookCycle closes one round trip through the given exit order (real,
// recovery-derived or forced). Fees split by settlement currency: the fee on
// whichever leg sold settles in quote, the other leg's fee settles in base.
// SettledUSD is therefore gross minus the quote-side fee only.
func bookCycle(st *domain.PairState, order domain.OrderState, fillPrice, fillFee, timestamp float64, lineage domain.ClosureLineage) (domain.CycleRecord, domain.BookCycleAction) {
	volume := order.Volume

	var gross float64
	if order.TradeID == domain.TradeA {
		gross = (order.EntryPrice - fillPrice) * volume
	} else {
		gross = (fillPrice - order.EntryPrice) * volume
	}

	var quoteFee float64
	if order.Side == domain.SideSell {
		quoteFee = fillFee
	} else {
		quoteFee = order.EntryFee
	}

	fees := order.EntryFee + fillFee
	net := gross - fees
	settled := gross - quoteFee

	rec := domain.CycleRecord{
		TradeID:       order.TradeID,
		Cycle:         order.Cycle,
		EntryPrice:    order.EntryPrice,
		ExitPrice:     fillPrice,
		Volume:        volume,
		GrossProfit:   gross,
		EntryFee:      order.EntryFee,
		ExitFee:       fillFee,
		QuoteFee:      quoteFee,
		Fees:          fees,
		NetProfit:     net,
		SettledUSD:    settled,
		EntryTime:     order.EntryFilledAt,
		ExitTime:      timestamp,
		RegimeAtEntry: order.RegimeAtEntry,
		Lineage:       lineage,
	}

	st.TotalProfit += net
	st.TotalFees += fillFee
	st.TotalSettledUSD += settled
	if net < 0 {
		st.TodayRealizedLoss += math.Abs(net)
	}
	st.TotalRoundTrips++
	st.CompletedCycles = append(st.CompletedCycles, rec)

	act := domain.BookCycleAction{
		TradeID:     order.TradeID,
		Cycle:       order.Cycle,
		NetProfit:   net,
		GrossProfit: gross,
		Fees:        fees,
		QuoteFee:    quoteFee,
		SettledUSD:  settled,
		Lineage:     lineage,
	}
	return rec, act
}

// updateLossCounters tracks per-side loss streaks and arms the re-entry
// cooldown once a streak crosses the configured threshold.
func updateLossCounters(st *domain.PairState, tradeID domain.TradeID, netProfit float64, cfg domain.EngineConfig) {
	if tradeID == domain.TradeA {
		if netProfit < 0 {
			st.ConsecutiveLossesA++
		} else {
			st.ConsecutiveLossesA = 0
		}
		if st.ConsecutiveLossesA >= cfg.LossCooldownStart {
			st.CooldownUntilA = math.Max(st.CooldownUntilA, st.Now+cfg.LossCooldownSec)
		}
	} else {
		if netProfit < 0 {
			st.ConsecutiveLossesB++
		} else {
			st.ConsecutiveLossesB = 0
		}
		if st.ConsecutiveLossesB >= cfg.LossCooldownStart {
			st.CooldownUntilB = math.Max(st.CooldownUntilB, st.Now+cfg.LossCooldownSec)
		}
	}
}
