package astrotime

import (
	"sort"
	"time"
)

type leapSecond struct {
	// start is the UTC instant from which offset applies.
	start  time.Time
	offset time.Duration
}

func leap(y int, m time.Month, seconds int) leapSecond {
	return leapSecond{
		start:  time.Date(y, m, 1, 0, 0, 0, 0, time.UTC),
		offset: time.Duration(seconds) * time.Second,
	}
}

// leapSeconds lists TAI-UTC since 1972. Before 1972 the offset is taken as
// 10 s.
var leapSeconds = []leapSecond{
	leap(1972, time.January, 10),
	leap(1972, time.July, 11),
	leap(1973, time.January, 12),
	leap(1974, time.January, 13),
	leap(1975, time.January, 14),
	leap(1976, time.January, 15),
	leap(1977, time.January, 16),
	leap(1978, time.January, 17),
	leap(1979, time.January, 18),
	leap(1980, time.January, 19),
	leap(1981, time.July, 20),
	leap(1982, time.July, 21),
	leap(1983, time.July, 22),
	leap(1985, time.July, 23),
	leap(1988, time.January, 24),
	leap(1990, time.January, 25),
	leap(1991, time.January, 26),
	leap(1992, time.July, 27),
	leap(1993, time.July, 28),
	leap(1994, time.July, 29),
	leap(1996, time.January, 30),
	leap(1997, time.July, 31),
	leap(1999, time.January, 32),
	leap(2006, time.January, 33),
	leap(2009, time.January, 34),
	leap(2012, time.July, 35),
	leap(2015, time.July, 36),
	leap(2017, time.January, 37),
}

// TAIMinusUTC returns the TAI-UTC offset in effect at the UTC instant t.
func TAIMinusUTC(t time.Time) time.Duration {
	i := sort.Search(len(leapSeconds), func(i int) bool {
		return leapSeconds[i].start.After(t)
	})
	if i == 0 {
		return leapSeconds[0].offset
	}
	return leapSeconds[i-1].offset
}

// utcOffsetAtTAI returns the TAI-UTC offset for a TAI calendar reading.
func utcOffsetAtTAI(tai time.Time) time.Duration {
	for i := len(leapSeconds) - 1; i >= 0; i-- {
		ls := leapSeconds[i]
		if !tai.Before(ls.start.Add(ls.offset)) {
			return ls.offset
		}
	}
	return leapSeconds[0].offset
}
