package rules

// World clock constants, in game ticks.
const (
	DayLength   int64 = 24000
	MorningTime int64 = 1000

	// NightStart and NightEnd bound the window in which beds can be used.
	NightStart int64 = 12541
	NightEnd   int64 = 23458
)

// IsNight reports whether a world time falls inside the sleepable window.
func IsNight(worldTime int64) bool {
	t := worldTime % DayLength
	if t < 0 {
		t += DayLength
	}
	return t >= NightStart && t <= NightEnd
}

// NeedsSkipCheck reports whether a world is worth evaluating at all:
// players may only sleep at night or during a thunderstorm.
func NeedsSkipCheck(worldTime int64, thundering bool) bool {
	return thundering || IsNight(worldTime)
}
