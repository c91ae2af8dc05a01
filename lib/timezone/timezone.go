package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Athens")
	if err != nil {
		panic(err)
	}
}

// force timezone to be in Athens because the SIS renders exam
// periods and academic years in local time, and hosting providers
// tend to put us on UTC machines which shifts Year()/Month()/Day()
func Now() time.Time {
	return time.Now().In(Location)
}
