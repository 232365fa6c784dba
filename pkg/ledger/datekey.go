package ledger

import (
	"fmt"
	"time"
)

const dayKeyLayout = "02.01.2006"

type DayKey struct {
	// Key is the zero-padded DD.MM.YYYY identity of a day record.
	Key        string
	MonthLabel string
	Period     string
}

// DateKeyResolver derives day keys in a fixed calendar location.
type DateKeyResolver struct {
	location *time.Location
}

func NewDateKeyResolver(location *time.Location) DateKeyResolver {
	if location == nil {
		location = time.Local
	}
	return DateKeyResolver{location: location}
}

func (r DateKeyResolver) Resolve(t time.Time) DayKey {
	local := t.In(r.location)
	return DayKey{
		Key:        local.Format(dayKeyLayout),
		MonthLabel: local.Month().String(),
		Period:     local.Format("2006-01"),
	}
}

// ParseDayKey parses a DD.MM.YYYY key in the resolver's location.
func (r DateKeyResolver) ParseDayKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(dayKeyLayout, key, r.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", key, err)
	}
	return t, nil
}
