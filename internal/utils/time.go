package contextutils

import (
	"context"
	"time"
)

// UserTimezoneLookup fetches the IANA timezone name configured for a user.
// Injected to avoid coupling to the user service and to enable testing.
type UserTimezoneLookup func(ctx context.Context, userID int) (string, error)

// LocationForUser resolves the user's time.Location, falling back to UTC when
// the user has no timezone configured or the name is invalid.
func LocationForUser(ctx context.Context, userID int, lookup UserTimezoneLookup) (*time.Location, string) {
	timezone := "UTC"
	if lookup != nil {
		if tz, err := lookup(ctx, userID); err == nil && tz != "" {
			timezone = tz
		}
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC, "UTC"
	}
	return loc, timezone
}

// LocalDay truncates t to the start of its calendar day in loc.
func LocalDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return LocalDay(a, loc).Equal(LocalDay(b, loc))
}

// DaysBetween returns the whole calendar days from a to b in loc. Positive
// when b is after a. Streak continuity is defined in calendar days, not
// 24-hour windows.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	da := LocalDay(a, loc)
	db := LocalDay(b, loc)
	return int(db.Sub(da).Hours() / 24)
}

// ParseDate parses a YYYY-MM-DD date string in the given location.
// The returned error is wrapped with the message "invalid date format".
func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return time.Time{}, WrapError(err, "invalid date format")
	}
	return date, nil
}
