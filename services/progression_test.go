package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextStreakFirstCheckIn(t *testing.T) {
	require.Equal(t, 1, nextStreak(0, nil, time.Now()))
}

func TestNextStreakSameDayKeeps(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	last := time.Date(2026, 8, 1, 8, 0, 0, 0, seoul)
	now := time.Date(2026, 8, 1, 20, 0, 0, 0, seoul)

	require.Equal(t, 3, nextStreak(3, &last, now))
}

func TestNextStreakAcrossLocalMidnight(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)

	// One hour apart, but on consecutive calendar days: the streak grows
	last := time.Date(2026, 8, 1, 23, 30, 0, 0, seoul)
	now := time.Date(2026, 8, 2, 0, 30, 0, 0, seoul)

	require.Equal(t, 4, nextStreak(3, &last, now))
}

func TestNextStreakGapResets(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	last := time.Date(2026, 8, 1, 12, 0, 0, 0, seoul)
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, seoul)

	require.Equal(t, 1, nextStreak(7, &last, now))
}

func TestXPForNextLevelGrows(t *testing.T) {
	var previous int64
	for level := 1; level <= 10; level++ {
		need := xpForNextLevel(level)
		require.Greater(t, need, previous, "level %d", level)
		previous = need
	}
}
