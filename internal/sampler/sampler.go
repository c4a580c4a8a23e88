// Package sampler draws a difficulty-stratified random subset from an assessment's question pool.
package sampler

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/SAP-F-2025/skill-assessment-service/internal/models"
)

var levels = [3]models.DifficultyLevel{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard}

// Sampler is safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func New() *Sampler {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource makes sampling reproducible for a given source.
func NewWithSource(src rand.Source) *Sampler {
	return &Sampler{rnd: rand.New(src)}
}

// Sample returns min(target, len(pool)) questions, or fewer when rounding and clamping leave a
// bucket short. Levels outside 1..3 are treated as level 2. The pool slice is not modified.
func (s *Sampler) Sample(pool []models.Question, target int) []models.Question {
	if len(pool) == 0 || target <= 0 {
		return []models.Question{}
	}

	buckets := partition(pool)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range buckets {
		s.shuffle(buckets[i])
	}

	shares := Shares([3]int{len(buckets[0]), len(buckets[1]), len(buckets[2])}, target)

	out := make([]models.Question, 0, target)
	for i, b := range buckets {
		out = append(out, b[:shares[i]]...)
	}
	s.shuffle(out)
	return out
}

// Shares splits target across three bucket sizes: levels 1 and 2 get round(size/pool*target),
// level 3 gets the remainder, and every share is clamped to [0, size]. When both roundings go up
// and overshoot target, level 2 gives the excess back so the total never exceeds target.
func Shares(sizes [3]int, target int) [3]int {
	pool := sizes[0] + sizes[1] + sizes[2]
	var shares [3]int
	if pool == 0 || target <= 0 {
		return shares
	}

	shares[0] = int(math.Round(float64(sizes[0]) / float64(pool) * float64(target)))
	shares[0] = clamp(shares[0], 0, min(sizes[0], target))
	shares[1] = int(math.Round(float64(sizes[1]) / float64(pool) * float64(target)))
	shares[1] = clamp(shares[1], 0, min(sizes[1], target-shares[0]))
	shares[2] = clamp(target-shares[0]-shares[1], 0, sizes[2])
	return shares
}

func partition(pool []models.Question) [3][]models.Question {
	var buckets [3][]models.Question
	for _, q := range pool {
		idx := 1
		for i, lvl := range levels {
			if q.Difficulty == lvl {
				idx = i
				break
			}
		}
		buckets[idx] = append(buckets[idx], q)
	}
	return buckets
}

func (s *Sampler) shuffle(qs []models.Question) {
	s.rnd.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
