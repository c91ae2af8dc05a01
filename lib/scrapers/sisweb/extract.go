package sisweb

import (
	"strings"
	"uthsis-backend/lib/htmlutil"
	"uthsis-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
)

const (
	targetedTableSelector = "table#student_grades"
	diplomaTableSelector  = "table#student_grades_diploma"
)

// Extract pulls grade records out of an SIS page. It never fails on
// malformed markup, the worst case is an empty result which callers
// interpret as "no grades found".
//
// The strategies are mutually exclusive fallbacks: the first one that
// yields at least one record wins, later ones are never merged in, so
// the same row can't show up twice under two different contracts.
func Extract(html string) []GradeRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	if records := extractTargeted(doc); len(records) > 0 {
		return records
	}
	// the transcript table is anchored by id just like the grades
	// widget, so it must get a shot before the generic scan starts
	// guessing at column meanings
	if records := extractDiploma(doc); len(records) > 0 {
		return records
	}
	return extractGeneric(doc)
}

// ExtractDiploma runs only the transcript-table contract. The browser
// driver uses it directly since the page it lands on is always the
// official transcript view.
func ExtractDiploma(html string) []GradeRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	return extractDiploma(doc)
}

func cellText(cells *goquery.Selection, offset int) string {
	if offset < 0 || offset >= cells.Length() {
		return ""
	}
	cell := cells.Eq(offset)
	if len(cell.Nodes) == 0 {
		return ""
	}
	return htmlutil.CleanText(htmlutil.GetText(cell.Nodes[0]))
}

func cellChecked(cells *goquery.Selection, offset int) bool {
	if offset < 0 || offset >= cells.Length() {
		return false
	}
	_, checked := cells.Eq(offset).Find("input").Attr("checked")
	return checked
}

func rowToRecord(cells *goquery.Selection, offsets columnOffsets) (GradeRecord, bool) {
	title := cellText(cells, offsets.Title)
	if title == "" {
		return GradeRecord{}, false
	}
	grade, ok := ParseGrade(cellText(cells, offsets.Grade))
	if !ok {
		return GradeRecord{}, false
	}

	return GradeRecord{
		Code:            cellText(cells, offsets.Code),
		Title:           title,
		Grade:           grade,
		Credits:         ParseCredits(cellText(cells, offsets.Credits)),
		Period:          cellText(cells, offsets.Period),
		AcademicYear:    cellText(cells, offsets.Year),
		CourseType:      cellText(cells, offsets.Type),
		Category:        cellText(cells, offsets.Category),
		TrackLabel:      cellText(cells, offsets.Track),
		GroupLabel:      cellText(cells, offsets.Group),
		InDegreeAverage: cellChecked(cells, offsets.DegreeAverage),
		InDegreeCredits: cellChecked(cells, offsets.DegreeCredits),
		Passed:          grade >= PassingGrade,
		ExtractedAt:     timezone.Now(),
	}, true
}

func extractTargeted(doc *goquery.Document) []GradeRecord {
	var records []GradeRecord
	doc.Find(targetedTableSelector + " tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			// header row
			return
		}
		cells := row.Find("td")
		if cells.Length() < targetedOffsets.MinCells {
			return
		}
		if record, ok := rowToRecord(cells, targetedOffsets); ok {
			records = append(records, record)
		}
	})
	return records
}

func stripNonNumeric(s string) string {
	out := strings.Builder{}
	for _, c := range s {
		if (c >= '0' && c <= '9') || c == ',' || c == '.' {
			out.WriteRune(c)
		}
	}
	return out.String()
}

// last-ditch contract: any table, any row with at least a title cell,
// a grade cell and a semester cell
func extractGeneric(doc *goquery.Document) []GradeRecord {
	var records []GradeRecord
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() < 3 {
				return
			}

			title := cellText(cells, 0)
			if title == "" {
				return
			}
			grade, ok := ParseGrade(stripNonNumeric(cellText(cells, 1)))
			if !ok {
				return
			}

			records = append(records, GradeRecord{
				Title:       title,
				Grade:       grade,
				Period:      cellText(cells, 2),
				Passed:      grade >= PassingGrade,
				ExtractedAt: timezone.Now(),
			})
		})
	})
	return records
}

func extractDiploma(doc *goquery.Document) []GradeRecord {
	var records []GradeRecord
	doc.Find(diplomaTableSelector + " tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		// rows under 13 cells are section/group headers, not data
		if cells.Length() < diplomaOffsets.MinCells {
			return
		}
		if record, ok := rowToRecord(cells, diplomaOffsets); ok {
			records = append(records, record)
		}
	})
	return records
}
