package feedback

import (
	"errors"
	"time"
)

// TimestampLayout is the sheet's timestamp column format.
const TimestampLayout = "2006-01-02 15:04:05"

// IST is India Standard Time as a fixed offset, so formatting does not depend
// on the host's tz database or locale.
var IST = time.FixedZone("IST", 5*60*60+30*60)

// Ratings are the selectable answers to "How helpful was the answer?", in
// display order.
var Ratings = []string{"Very Helpful", "Helpful", "Neutral", "Not Helpful", "Very Not Helpful"}

// ErrInvalidRating is returned for a rating outside Ratings.
var ErrInvalidRating = errors.New("rating must be one of the listed options")

// ValidRating reports whether rating is one of Ratings.
func ValidRating(rating string) bool {
	for _, r := range Ratings {
		if r == rating {
			return true
		}
	}
	return false
}

// FormatTimestamp renders t in IST using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.In(IST).Format(TimestampLayout)
}

// Row is one logged feedback record.
type Row struct {
	Timestamp   string `json:"timestamp"`
	PersonaName string `json:"personaName"`
	Rating      string `json:"rating"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
}

// NewRow stamps a row with now formatted in IST.
func NewRow(now time.Time, personaName, rating, question, answer string) Row {
	return Row{
		Timestamp:   FormatTimestamp(now),
		PersonaName: personaName,
		Rating:      rating,
		Question:    question,
		Answer:      answer,
	}
}

// Values returns the sheet cells in column order.
func (r Row) Values() []string {
	return []string{r.Timestamp, r.PersonaName, r.Rating, r.Question, r.Answer}
}

// RowFromValues is the inverse of Values. Missing trailing cells are empty,
// which is how the sheets API reports blank cells at the end of a row.
func RowFromValues(values []string) Row {
	cell := func(i int) string {
		if i < len(values) {
			return values[i]
		}
		return ""
	}
	return Row{
		Timestamp:   cell(0),
		PersonaName: cell(1),
		Rating:      cell(2),
		Question:    cell(3),
		Answer:      cell(4),
	}
}
