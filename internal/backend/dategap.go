package backend

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/kailas-cloud/searchdex/internal/domain"
)

// MaxDateBuckets bounds the number of buckets one date facet may expand to.
const MaxDateBuckets = 1000

// DateFacet counts hits per gap-sized bucket between Start and End.
type DateFacet struct {
	Start time.Time
	End   time.Time
	// Gap uses date-math syntax: "+1DAY", "+3MONTHS", "+6HOURS".
	Gap string
}

// Validate checks the range and the gap syntax.
func (d DateFacet) Validate() error {
	if d.Start.IsZero() || d.End.IsZero() {
		return fmt.Errorf("%w: date facet needs start and end", domain.ErrCompilation)
	}
	if !d.Start.Before(d.End) {
		return fmt.Errorf("%w: date facet start %s is not before end %s",
			domain.ErrCompilation, d.Start.Format(time.RFC3339), d.End.Format(time.RFC3339))
	}
	_, err := ParseGap(d.Gap)
	return err
}

// Bucket is one [Start, End) interval of a date facet.
type Bucket struct {
	Start time.Time
	End   time.Time
}

// Key returns the label the bucket is reported under.
func (b Bucket) Key() string { return FormatDate(b.Start) }

// Buckets expands the facet into consecutive buckets. The last bucket is
// clipped to End.
func (d DateFacet) Buckets() ([]Bucket, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	gap, _ := ParseGap(d.Gap)

	var out []Bucket
	for cur := d.Start.UTC(); cur.Before(d.End); {
		next := gap.AddTo(cur)
		if next.After(d.End) {
			next = d.End.UTC()
		}
		out = append(out, Bucket{Start: cur, End: next})
		if len(out) > MaxDateBuckets {
			return nil, fmt.Errorf("%w: date facet expands to more than %d buckets",
				domain.ErrCompilation, MaxDateBuckets)
		}
		cur = next
	}
	return out, nil
}

// Gap is a parsed date-math increment.
type Gap struct {
	N    int
	Unit string
}

var gapPattern = regexp.MustCompile(`^\+(\d+)(YEAR|MONTH|DAY|HOUR|MINUTE|SECOND)S?$`)

// ParseGap parses "+N(YEAR|MONTH|DAY|HOUR|MINUTE|SECOND)[S]".
func ParseGap(s string) (Gap, error) {
	m := gapPattern.FindStringSubmatch(s)
	if m == nil {
		return Gap{}, fmt.Errorf("%w: invalid date gap %q", domain.ErrCompilation, s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return Gap{}, fmt.Errorf("%w: invalid date gap %q", domain.ErrCompilation, s)
	}
	return Gap{N: n, Unit: m[2]}, nil
}

// AddTo returns t advanced by the gap.
func (g Gap) AddTo(t time.Time) time.Time {
	switch g.Unit {
	case "YEAR":
		return t.AddDate(g.N, 0, 0)
	case "MONTH":
		return t.AddDate(0, g.N, 0)
	case "DAY":
		return t.AddDate(0, 0, g.N)
	case "HOUR":
		return t.Add(time.Duration(g.N) * time.Hour)
	case "MINUTE":
		return t.Add(time.Duration(g.N) * time.Minute)
	default:
		return t.Add(time.Duration(g.N) * time.Second)
	}
}

// String renders the gap in date-math syntax.
func (g Gap) String() string {
	return "+" + strconv.Itoa(g.N) + g.Unit
}

// FormatDate renders t the way engines report date facet keys.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
