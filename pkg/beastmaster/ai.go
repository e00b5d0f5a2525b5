package beastmaster

import (
	"math/rand/v2"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/gamedb"
)

// Eat emote interval bounds.
const (
	EmoteMinInterval = 30 * time.Second
	EmoteMaxInterval = 90 * time.Second
)

// EmoteScheduler makes an idle Beastmaster eat now and then. Drive it with
// Update from the host tick.
type EmoteScheduler struct {
	rng *rand.Rand
	due time.Duration
}

// NewEmoteScheduler returns a scheduler with its first emote pending.
// A nil rng uses the global source.
func NewEmoteScheduler(rng *rand.Rand) *EmoteScheduler {
	s := &EmoteScheduler{rng: rng}
	s.Reset()
	return s
}

// Reset schedules the next emote from now.
func (s *EmoteScheduler) Reset() {
	s.due = s.interval()
}

func (s *EmoteScheduler) interval() time.Duration {
	span := int64(EmoteMaxInterval-EmoteMinInterval) + 1
	if s.rng != nil {
		return EmoteMinInterval + time.Duration(s.rng.Int64N(span))
	}
	return EmoteMinInterval + time.Duration(rand.Int64N(span))
}

// Update advances the timer by diff and plays the emote on c when due.
func (s *EmoteScheduler) Update(c Creature, diff time.Duration) {
	s.due -= diff
	if s.due > 0 {
		return
	}
	c.Emote(gamedb.EmoteEatNoSheathe)
	s.due = s.interval()
}

// Due returns the time left until the next emote.
func (s *EmoteScheduler) Due() time.Duration { return s.due }
