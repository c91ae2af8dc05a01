package sisweb

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

var recordDiff = []cmp.Option{
	cmpopts.IgnoreFields(GradeRecord{}, "ExtractedAt"),
}

func TestParseGrade(t *testing.T) {
	v, ok := ParseGrade("5,7")
	require.True(t, ok)
	require.Equal(t, 5.7, v)

	v, ok = ParseGrade("5.7")
	require.True(t, ok)
	require.Equal(t, 5.7, v)

	_, ok = ParseGrade("abc")
	require.False(t, ok)
	_, ok = ParseGrade("")
	require.False(t, ok)
	_, ok = ParseGrade("10,5")
	require.False(t, ok)
	_, ok = ParseGrade("-1")
	require.False(t, ok)
	_, ok = ParseGrade("NaN")
	require.False(t, ok)
	_, ok = ParseGrade("Inf")
	require.False(t, ok)

	v, ok = ParseGrade("0")
	require.True(t, ok)
	require.Equal(t, 0.0, v)
	v, ok = ParseGrade("10")
	require.True(t, ok)
	require.Equal(t, 10.0, v)
}

const targetedPage = `
<html><body>
<table id="student_grades">
<tr><th>Κωδ.</th><th>Μάθημα</th><th>Βαθμός</th><th>ECTS</th><th>Περίοδος</th><th>Έτος</th><th>Τύπος</th></tr>
<tr><td>Υ101</td><td>Φυσική Ι</td><td>8,5</td><td>6</td><td>ΙΟΥΝ</td><td>2023-2024</td><td>Υ</td></tr>
<tr><td>Υ102</td><td>Ανάλυση Ι</td><td>4,0</td><td>7,5</td><td>ΣΕΠ</td><td>2023-2024</td><td>Υ</td></tr>
<tr><td>Υ103</td><td>Προγραμματισμός</td><td>-</td><td>6</td><td>ΙΟΥΝ</td><td>2023-2024</td><td>Υ</td></tr>
<tr><td>Υ104</td><td>Γραμμική Άλγεβρα</td><td>11</td><td>6</td><td>ΙΟΥΝ</td><td>2023-2024</td><td>Υ</td></tr>
</table>
</body></html>`

func TestExtractTargetedTable(t *testing.T) {
	records := Extract(targetedPage)

	want := []GradeRecord{
		{
			Code:         "Υ101",
			Title:        "Φυσική Ι",
			Grade:        8.5,
			Credits:      6,
			Period:       "ΙΟΥΝ",
			AcademicYear: "2023-2024",
			CourseType:   "Υ",
			Passed:       true,
		},
		{
			Code:         "Υ102",
			Title:        "Ανάλυση Ι",
			Grade:        4,
			Credits:      7.5,
			Period:       "ΣΕΠ",
			AcademicYear: "2023-2024",
			CourseType:   "Υ",
			Passed:       false,
		},
	}
	if diff := cmp.Diff(want, records, recordDiff...); diff != "" {
		t.Fatalf("unexpected records (-want +got):\n%s", diff)
	}
}

// cell text is the concatenation of every nested text node, the live
// site wraps parts of course titles in spans and bold tags
func TestCellTextNestedMarkup(t *testing.T) {
	page := `<html><body>
<table id="student_grades">
<tr><th>Κωδ.</th><th>Μάθημα</th><th>Βαθμός</th><th>ECTS</th><th>Περίοδος</th><th>Έτος</th><th>Τύπος</th></tr>
<tr><td>Υ101</td><td><span>Φυσική</span> <b>Ι</b></td><td>8,5</td><td>6</td><td>ΙΟΥΝ</td><td>2023-2024</td><td>Υ</td></tr>
</table>
</body></html>`
	records := Extract(page)
	require.Len(t, records, 1)
	require.Equal(t, "Φυσική Ι", records[0].Title)
}

// once the targeted strategy yields records, the generic scan must
// never append anything, even though its looser contract would also
// match the same rows
func TestStrategyFallbackExclusivity(t *testing.T) {
	page := targetedPage + `
<table>
<tr><td>Κάποιο Μάθημα</td><td>7,0</td><td>3ο</td></tr>
</table>`
	records := Extract(page)
	require.Len(t, records, 2)
	for _, r := range records {
		require.NotEqual(t, "Κάποιο Μάθημα", r.Title)
	}
}

func TestExtractGenericTable(t *testing.T) {
	page := `
<html><body>
<table class="plain">
<tr><td>Φυσική ΙΙ</td><td> 6,5 *</td><td>2ο</td></tr>
<tr><td>Χημεία</td><td>σφάλμα</td><td>1ο</td></tr>
<tr><td></td><td>5,0</td><td>1ο</td></tr>
<tr><td>μόνο δύο</td><td>5,0</td></tr>
</table>
</body></html>`

	records := Extract(page)
	want := []GradeRecord{
		{
			Title:  "Φυσική ΙΙ",
			Grade:  6.5,
			Period: "2ο",
			Passed: true,
		},
	}
	if diff := cmp.Diff(want, records, recordDiff...); diff != "" {
		t.Fatalf("unexpected records (-want +got):\n%s", diff)
	}
}

func diplomaRow(code, name, grade string, checked bool) string {
	checkbox := `<input type="checkbox">`
	if checked {
		checkbox = `<input type="checkbox" checked>`
	}
	return fmt.Sprintf(`<tr>
<td>%s</td><td>%s</td><td>%s</td><td>ΙΟΥΝ</td><td>2023-2024</td>
<td>%s</td><td>%s</td><td>4</td><td>6</td><td>Υ</td><td>Κορμού</td><td>-</td><td>Α</td>
</tr>`, code, name, grade, checkbox, checkbox)
}

func diplomaPage(rows ...string) string {
	page := `<html><body><table id="student_grades_diploma"><tbody>`
	for _, r := range rows {
		page += r
	}
	return page + `</tbody></table></body></html>`
}

func TestExtractDiplomaTable(t *testing.T) {
	page := diplomaPage(
		`<tr><td colspan="13">1ο Εξάμηνο</td></tr>`,
		diplomaRow("Υ101", "Φυσική Ι", "8,5", true),
		diplomaRow("Υ102", "Ανάλυση Ι", "6,0", true),
		diplomaRow("Υ103", "Χημεία", "4,0", false),
	)
	records := ExtractDiploma(page)
	require.Len(t, records, 3)

	require.Equal(t, []bool{true, true, false}, []bool{
		records[0].Passed, records[1].Passed, records[2].Passed,
	})
	require.Equal(t, []float64{8.5, 6.0, 4.0}, []float64{
		records[0].Grade, records[1].Grade, records[2].Grade,
	})

	first := records[0]
	require.Equal(t, "Υ101", first.Code)
	require.Equal(t, "Φυσική Ι", first.Title)
	require.Equal(t, "ΙΟΥΝ", first.Period)
	require.Equal(t, "2023-2024", first.AcademicYear)
	require.Equal(t, 6.0, first.Credits)
	require.Equal(t, "Υ", first.CourseType)
	require.Equal(t, "Κορμού", first.Category)
	require.Equal(t, "-", first.TrackLabel)
	require.Equal(t, "Α", first.GroupLabel)
	require.True(t, first.InDegreeAverage)
	require.True(t, first.InDegreeCredits)
	require.False(t, records[2].InDegreeAverage)
}

// a 12-cell row is a group header, a 13-cell row with a valid title
// and grade is exactly one record
func TestDiplomaRowLengthGating(t *testing.T) {
	twelveCells := `<tr>` +
		`<td>Υ1</td><td>Μισό</td><td>7,0</td><td>ΙΟΥΝ</td><td>2023</td><td></td>` +
		`<td></td><td>4</td><td>6</td><td>Υ</td><td>Κ</td><td>-</td>` +
		`</tr>`
	records := ExtractDiploma(diplomaPage(twelveCells))
	require.Len(t, records, 0)

	records = ExtractDiploma(diplomaPage(diplomaRow("Υ1", "Ολόκληρο", "7,0", false)))
	require.Len(t, records, 1)
}

func TestGradeRangeInvariant(t *testing.T) {
	page := diplomaPage(
		diplomaRow("Υ1", "Εντός ορίων", "10", false),
		diplomaRow("Υ2", "Εκτός ορίων", "10,5", false),
		diplomaRow("Υ3", "Αρνητικός", "-3", false),
		diplomaRow("Υ4", "Αβαθμολόγητο", "", false),
	)
	records := ExtractDiploma(page)
	require.Len(t, records, 1)
	require.Equal(t, "Εντός ορίων", records[0].Title)
	require.Equal(t, 10.0, records[0].Grade)
}

func TestExtractIdempotent(t *testing.T) {
	page := diplomaPage(diplomaRow("Υ1", "Φυσική Ι", "8,5", true))
	first := Extract(page)
	second := Extract(page)
	if diff := cmp.Diff(first, second, recordDiff...); diff != "" {
		t.Fatalf("extraction is not idempotent (-first +second):\n%s", diff)
	}
}

func TestExtractDegradesToEmpty(t *testing.T) {
	require.Empty(t, Extract(""))
	require.Empty(t, Extract("<html><body><p>Καμία βαθμολογία</p></body></html>"))
	require.Empty(t, Extract("<table><tr><td>no grade"))
	require.Empty(t, Extract("%%% not html at all >>>"))
}
