package sisweb

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// GradeRecord is one course outcome scraped from the SIS. Only rows
// with a non-empty title and a grade that parses inside [0, 10] ever
// become records, everything else on the page is skipped.
type GradeRecord struct {
	Code         string
	Title        string
	Grade        float64
	Credits      float64
	Period       string
	AcademicYear string
	CourseType   string
	Category     string
	TrackLabel   string
	GroupLabel   string
	// checkbox columns on the diploma table, they mark whether the
	// course counts toward the degree average and degree credits
	InDegreeAverage bool
	InDegreeCredits bool
	Passed          bool
	ExtractedAt     time.Time
}

const PassingGrade = 5.0

// ParseGrade normalizes an SIS grade cell into a float. The site
// renders grades with a comma decimal separator ("5,7"), anything
// that doesn't land inside [0, 10] is treated as absent.
func ParseGrade(raw string) (float64, bool) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" {
		return 0, false
	}
	grade, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(grade) || math.IsInf(grade, 0) {
		return 0, false
	}
	if grade < 0 || grade > 10 {
		return 0, false
	}
	return grade, true
}

// ParseCredits is lenient where ParseGrade is strict, an unparsable
// ECTS cell just means zero credits.
func ParseCredits(raw string) float64 {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	credits, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(credits) || math.IsInf(credits, 0) || credits < 0 {
		return 0
	}
	return credits
}

// the three extraction strategies were written against different
// renderings of what is nominally the same table, so each one keeps
// its own column contract instead of sharing offsets
type columnOffsets struct {
	MinCells int
	Code     int
	Title    int
	Grade    int
	Credits  int
	Period   int
	Year     int
	Type     int
	Category int
	Track    int
	Group    int
	// checkbox columns, -1 when the variant doesn't render them
	DegreeAverage int
	DegreeCredits int
}

// the compact grades widget
var targetedOffsets = columnOffsets{
	MinCells:      7,
	Code:          0,
	Title:         1,
	Grade:         2,
	Credits:       3,
	Period:        4,
	Year:          5,
	Type:          6,
	Category:      -1,
	Track:         -1,
	Group:         -1,
	DegreeAverage: -1,
	DegreeCredits: -1,
}

// the official transcript view, 13 columns wide
var diplomaOffsets = columnOffsets{
	MinCells:      13,
	Code:          0,
	Title:         1,
	Grade:         2,
	Period:        3,
	Year:          4,
	DegreeAverage: 5,
	DegreeCredits: 6,
	Credits:       8,
	Type:          9,
	Category:      10,
	Track:         11,
	Group:         12,
}
