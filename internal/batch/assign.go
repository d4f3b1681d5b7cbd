package batch

import (
	"math/rand/v2"
	"time"
)

// ResolveSeed returns seed, or a time-derived seed when seed is zero. The
// resolved value is recorded with the run so an assignment can be replayed.
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return time.Now().UnixNano()
}

// AssignClips picks one clip per id uniformly at random, with replacement.
// Picks happen in the order ids are given, so the same seed, ids, and clips
// always produce the same assignment regardless of how items are scheduled.
func AssignClips(ids, clips []string, seed int64) map[string]string {
	out := make(map[string]string, len(ids))
	if len(clips) == 0 {
		return out
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	for _, id := range ids {
		out[id] = clips[rng.IntN(len(clips))]
	}
	return out
}
