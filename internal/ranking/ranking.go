// Package ranking orders forum posts for feed display.
//
// Every function here is pure: the reference time is passed in by the
// caller and inputs are never modified, so the same call can be made from
// request handlers and background refreshers concurrently.
package ranking

import (
	"fmt"
	"sort"
	"time"

	"github.com/campus-forum/internal/domain"
)

const (
	hotAgeOffsetHours      = 2.0
	risingAgeOffsetMinutes = 1.0
)

// Rank returns a new slice holding posts ordered by strategy relative to now.
// Posts with equal keys keep their input order.
func Rank(posts []domain.Post, strategy domain.SortStrategy, now time.Time) ([]domain.Post, error) {
	less, err := comparator(strategy, now)
	if err != nil {
		return nil, err
	}

	ranked := make([]domain.Post, len(posts))
	copy(ranked, posts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})
	return ranked, nil
}

// Key returns the numeric sort key of p under strategy. Higher ranks first.
// For the new strategy the key is the creation time in Unix seconds.
func Key(p domain.Post, strategy domain.SortStrategy, now time.Time) (float64, error) {
	switch strategy {
	case domain.SortNew:
		return float64(p.CreatedAt.UnixNano()) / float64(time.Second), nil
	case domain.SortTop:
		return float64(p.Score), nil
	case domain.SortHot:
		return HotScore(p, now), nil
	case domain.SortRising:
		return RisingScore(p, now), nil
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrInvalidSortStrategy, strategy)
}

// HotScore is score / (ageHours + 2).
func HotScore(p domain.Post, now time.Time) float64 {
	return float64(p.Score) / (age(p, now).Hours() + hotAgeOffsetHours)
}

// RisingScore is (score / (ageMinutes + 1)) * commentCount, so posts
// without comments sit at zero.
func RisingScore(p domain.Post, now time.Time) float64 {
	return float64(p.Score) / (age(p, now).Minutes() + risingAgeOffsetMinutes) * float64(p.CommentCount)
}

// age clamps posts dated after now to zero age.
func age(p domain.Post, now time.Time) time.Duration {
	d := now.Sub(p.CreatedAt)
	if d < 0 {
		return 0
	}
	return d
}

func comparator(strategy domain.SortStrategy, now time.Time) (func(a, b domain.Post) bool, error) {
	switch strategy {
	case domain.SortNew:
		return func(a, b domain.Post) bool { return a.CreatedAt.After(b.CreatedAt) }, nil
	case domain.SortTop:
		return func(a, b domain.Post) bool { return a.Score > b.Score }, nil
	case domain.SortHot:
		return func(a, b domain.Post) bool { return HotScore(a, now) > HotScore(b, now) }, nil
	case domain.SortRising:
		return func(a, b domain.Post) bool { return RisingScore(a, now) > RisingScore(b, now) }, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSortStrategy, strategy)
}
