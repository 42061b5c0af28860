package schedule

import "time"

type Weather string

const (
	WeatherClear  Weather = "clear"
	WeatherCloudy Weather = "cloudy"
	WeatherRainy  Weather = "rainy"
)

type holiday struct {
	month time.Month
	day   int
	name  string
}

var holidays = []holiday{
	{time.January, 1, "New Year's Day"},
	{time.January, 20, "Martin Luther King Jr. Day"},
	{time.February, 17, "Presidents' Day"},
	{time.May, 26, "Memorial Day"},
	{time.June, 19, "Juneteenth"},
	{time.July, 4, "Independence Day"},
	{time.September, 1, "Labor Day"},
	{time.October, 13, "Columbus Day"},
	{time.November, 11, "Veterans Day"},
	{time.November, 27, "Thanksgiving"},
	{time.December, 25, "Christmas"},
}

// IsHoliday reports whether t is a non-working day: a Sunday or an
// entry in the fixed holiday table.
func IsHoliday(t time.Time) bool {
	_, ok := HolidayName(t)
	return ok
}

func HolidayName(t time.Time) (string, bool) {
	if t.Weekday() == time.Sunday {
		return "Sunday", true
	}
	for _, h := range holidays {
		if t.Month() == h.month && t.Day() == h.day {
			return h.name, true
		}
	}
	return "", false
}

// PredictWeather maps the month to a coarse seasonal bucket. It stands
// in for a weather feed; the estimator only needs the bucket.
func PredictWeather(t time.Time) Weather {
	switch t.Month() {
	case time.December, time.January, time.February:
		return WeatherCloudy
	case time.March, time.April, time.May:
		return WeatherRainy
	case time.June, time.July, time.August, time.September:
		return WeatherClear
	default:
		return WeatherCloudy
	}
}
