// Package recurrence detects repeating transactions (subscriptions,
// salaries, rent) from a user's entry history.
package recurrence

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finledger/finledger/internal/domain"
)

// band is an interval-to-cadence mapping. Observed average gaps between
// occurrences are matched against these windows.
type band struct {
	min, max   float64
	targetDays float64
	cadence    string
}

var bands = []band{
	{5, 9, 7, "weekly"},
	{12, 16, 14, "biweekly"},
	{26, 35, 30, "monthly"},
	{85, 97, 91, "quarterly"},
	{350, 380, 365, "yearly"},
}

const (
	minOccurrences  = 3
	amountTolerance = 0.10 // bucket width as a fraction of the seed amount
	minConfidence   = 0.4
	recencyWindow   = 90 * 24 * time.Hour
)

// Candidate is one detected recurring series.
type Candidate struct {
	Payee        string
	Cadence      string
	Amount       decimal.Decimal // representative (most recent) amount
	Confidence   float64
	Occurrences  int
	FirstSeen    time.Time
	LastSeen     time.Time
	NextExpected time.Time
	EntryIDs     []string
}

// Pool is the slice of the store the detector reads.
type Pool interface {
	RecurrencePool(ctx context.Context, userID string) ([]*domain.Entry, error)
}

// Detector finds recurring series in a user's ledger.
type Detector struct {
	pool Pool
	now  func() time.Time
}

func New(pool Pool) *Detector {
	return &Detector{pool: pool, now: time.Now}
}

// Detect returns recurring-series candidates with confidence of at least
// 0.4, sorted by confidence descending.
func (d *Detector) Detect(ctx context.Context, userID string) ([]Candidate, error) {
	entries, err := d.pool.RecurrencePool(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recurrence detect: %w", err)
	}

	byPayee := make(map[string][]*domain.Entry)
	for _, e := range entries {
		byPayee[e.Payee] = append(byPayee[e.Payee], e)
	}

	var out []Candidate
	for _, group := range byPayee {
		if len(group) < minOccurrences {
			continue
		}
		for _, bucket := range amountBuckets(group) {
			if c, ok := d.classify(bucket); ok {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Payee < out[j].Payee
	})
	return out, nil
}

// amountBuckets partitions a payee group into clusters of near-equal
// amounts (within ±10% of the cluster's first member). A payee can carry
// several recurring series at different price points.
func amountBuckets(group []*domain.Entry) [][]*domain.Entry {
	sorted := make([]*domain.Entry, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var buckets [][]*domain.Entry
	for _, e := range sorted {
		placed := false
		for i, b := range buckets {
			seed := b[0].Amount
			tol := seed.Mul(decimal.NewFromFloat(amountTolerance))
			if e.Amount.Sub(seed).Abs().LessThanOrEqual(tol) {
				buckets[i] = append(buckets[i], e)
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, []*domain.Entry{e})
		}
	}
	var out [][]*domain.Entry
	for _, b := range buckets {
		if len(b) >= minOccurrences {
			out = append(out, b)
		}
	}
	return out
}

// classify matches a bucket's average occurrence interval against the
// cadence bands and scores it.
func (d *Detector) classify(bucket []*domain.Entry) (Candidate, bool) {
	intervals := make([]float64, 0, len(bucket)-1)
	for i := 1; i < len(bucket); i++ {
		gap := bucket[i].Date.Sub(bucket[i-1].Date).Hours() / 24
		intervals = append(intervals, gap)
	}

	var sum float64
	for _, iv := range intervals {
		sum += iv
	}
	avg := sum / float64(len(intervals))

	var matched *band
	for i := range bands {
		if avg >= bands[i].min && avg <= bands[i].max {
			matched = &bands[i]
			break
		}
	}
	if matched == nil {
		return Candidate{}, false
	}

	// A single wildly-off interval disqualifies the series; one missed
	// month looks like ~60 days, which is already past 2x. Yearly series
	// are exempt since their absolute jitter is large.
	if matched.cadence != "yearly" {
		window := matched.max - matched.min
		for _, iv := range intervals {
			if math.Abs(iv-matched.targetDays) > 3*window {
				return Candidate{}, false
			}
		}
	}

	var devSum float64
	for _, iv := range intervals {
		devSum += math.Abs(iv - matched.targetDays)
	}
	avgDev := devSum / float64(len(intervals))

	regularity := math.Max(0, 1-avgDev/matched.targetDays)
	volume := math.Min(float64(len(bucket)-2)/5.0, 1.0)
	recency := 0.5
	last := bucket[len(bucket)-1]
	if d.now().Sub(last.Date) <= recencyWindow {
		recency = 1.0
	}
	conf := 0.5*regularity + 0.3*volume + 0.2*recency
	conf = math.Round(conf*100) / 100
	if conf < minConfidence {
		return Candidate{}, false
	}

	ids := make([]string, len(bucket))
	for i, e := range bucket {
		ids[i] = e.ID
	}
	return Candidate{
		Payee:        last.Payee,
		Cadence:      matched.cadence,
		Amount:       last.Amount,
		Confidence:   conf,
		Occurrences:  len(bucket),
		FirstSeen:    bucket[0].Date,
		LastSeen:     last.Date,
		NextExpected: last.Date.AddDate(0, 0, int(matched.targetDays)),
		EntryIDs:     ids,
	}, true
}
