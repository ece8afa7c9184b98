// Package service implements the map catalog, pool membership, pool
// lifecycle, pool queries and accounts on top of the repositories.
package service

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/greg5320/mappool/internal/domain"
)

// Clock returns the current time.
type Clock func() time.Time

// PopularitySource yields the popularity assigned when a pool is completed.
type PopularitySource func() int

// RandomPopularity draws uniformly from [MinPopularity, MaxPopularity].
func RandomPopularity() int {
	return rand.IntN(domain.MaxPopularity-domain.MinPopularity+1) + domain.MinPopularity
}

func clockOrNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// appErr passes AppErrors through and wraps anything else as internal.
func appErr(msg string, err error) error {
	var ae *domain.AppError
	if errors.As(err, &ae) {
		return err
	}
	return domain.ErrInternal(msg, err)
}

func idStr(id int64) string { return strconv.FormatInt(id, 10) }
