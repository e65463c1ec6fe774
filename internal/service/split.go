package service

import (
	"errors"
	"log"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/supply-share/internal/model"
)

// ErrInvalidSplit is returned for a negative total or a capacity below one.
var ErrInvalidSplit = errors.New("invalid split: total must be >= 0 and capacity >= 1")

var one = decimal.NewFromInt(1)

// Split returns the ceiling of total/capacity.  The result times capacity
// never falls short of total; the remainder is not redistributed.
func Split(total int64, capacity int) (int64, error) {
	if total < 0 || capacity < 1 {
		return 0, ErrInvalidSplit
	}
	q, r := decimal.NewFromInt(total).QuoRem(decimal.NewFromInt(int64(capacity)), 0)
	if r.Sign() > 0 {
		q = q.Add(one)
	}
	return q.IntPart(), nil
}

// UnitPreview is the per-participant amount shown for a post.  A stored
// post that cannot be split previews as zero and is logged.
func UnitPreview(p *model.Post) int64 {
	unit, err := Split(p.TotalAmount, p.Capacity)
	if err != nil {
		log.Printf("supply: post %d has no unit preview (total=%d capacity=%d): %v", p.ID, p.TotalAmount, p.Capacity, err)
		return 0
	}
	return unit
}
