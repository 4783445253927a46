package api

import (
	"time"

	"tickengine/internal/config"
	"tickengine/pkg/types"
)

// StatsProvider is everything the dashboard needs to pull from the engine.
type StatsProvider interface {
	SnapshotStats() types.Stats
	RiskParams() types.RiskParams
	KillActive() bool
}

// BuildSnapshot aggregates the engine's current state into a dashboard
// snapshot.
func BuildSnapshot(provider StatsProvider, cfg config.Config) DashboardSnapshot {
	stats := provider.SnapshotStats()
	params := provider.RiskParams()

	var meanNs float64
	if stats.LatencyCount > 0 {
		meanNs = float64(stats.LatencySumNs) / float64(stats.LatencyCount)
	}

	return DashboardSnapshot{
		Timestamp: time.Now(),
		Stats: StatsView{
			RxPackets:       stats.RxPackets,
			RxBytes:         stats.RxBytes,
			IntakeDrops:     stats.IntakeDrops,
			SeqGaps:         stats.SeqGaps,
			SeqDupes:        stats.SeqDupes,
			ParsedMessages:  stats.ParsedMessages,
			BookUpdates:     stats.BookUpdates,
			RiskAccepts:     stats.RiskAccepts,
			RiskRejectKill:  stats.RiskRejectKill,
			RiskRejectStale: stats.RiskRejectStale,
			RiskRejectBand:  stats.RiskRejectBand,
			RiskRejectToken: stats.RiskRejectToken,
			RiskRejectPos:   stats.RiskRejectPos,
			UnknownSymbol:   stats.UnknownSymbol,
			DMARecords:      stats.DMARecords,
			DMADrops:        stats.DMADrops,
			BankContention:  stats.BankContention,
			RingOccupancy:   stats.RingOccupancy,
			RingAlmostFull:  stats.RingAlmostFull,
			LatencyMinNs:    stats.LatencyMinNs,
			LatencyMaxNs:    stats.LatencyMaxNs,
			LatencyMeanNs:   meanNs,
		},
		Risk: RiskView{
			PriceBandBps:     params.PriceBandBps,
			TokenRatePerMs:   params.TokenRatePerMs,
			TokenBucketMax:   params.TokenBucketMax,
			PositionLimit:    params.PositionLimit,
			StaleThresholdNs: params.StaleThresholdNs,
			SeqGapThreshold:  params.SeqGapThreshold,
			KillActive:       provider.KillActive(),
		},
		Config: NewConfigSummary(cfg),
	}
}
