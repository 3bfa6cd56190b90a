package main

import (
	"cmp"
	"math"
	"slices"

	"github.com/samber/lo"
)

// rankRecords sorts records by badges desc, games desc, original row order
// asc, then assigns dense 1-based ranks by position. The third key makes the
// order total, so identical input always produces the identical leaderboard
// and no two records ever share a rank.
func rankRecords(records []Record) []RankedRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Record) int {
		if c := cmp.Compare(b.BadgesCount, a.BadgesCount); c != 0 {
			return c
		}
		if c := cmp.Compare(b.GamesCount, a.GamesCount); c != 0 {
			return c
		}
		return cmp.Compare(a.OriginalIndex, b.OriginalIndex)
	})

	return lo.Map(sorted, func(r Record, i int) RankedRecord {
		return RankedRecord{Record: r, Rank: uint(i + 1)}
	})
}

// aggregate derives the statistics payload from a record sequence. Pure
// function of its input; an empty sequence yields zero percentages rather
// than a division error.
func aggregate(records []Record) Statistics {
	stats := Statistics{Total: uint(len(records))}

	for _, r := range records {
		if r.AllCompleted {
			stats.Completed++
		}
		if r.AccessCodeRedeemed {
			stats.Redeemed++
		}
		if !r.AllCompleted && (r.BadgesCount > 0 || r.GamesCount > 0) {
			stats.InProgress++
		}
		stats.Badges.Total += r.BadgesCount
		stats.Games.Total += r.GamesCount
		if r.BadgesCount > stats.Badges.Max {
			stats.Badges.Max = r.BadgesCount
		}
		if r.GamesCount > stats.Games.Max {
			stats.Games.Max = r.GamesCount
		}
		if r.BadgesCount >= HighBadgeThreshold {
			stats.Badges.HighUsers++
		}
		if r.GamesCount > 0 {
			stats.Games.UsersWithGames++
		}
	}

	if stats.Total > 0 {
		total := float64(stats.Total)
		stats.CompletedPercent = round1(float64(stats.Completed) / total * 100)
		stats.RedeemedPercent = round1(float64(stats.Redeemed) / total * 100)
		stats.InProgressPercent = round1(float64(stats.InProgress) / total * 100)
		stats.Badges.Average = round1(float64(stats.Badges.Total) / total)
		stats.Games.Average = round1(float64(stats.Games.Total) / total)
	}
	return stats
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
