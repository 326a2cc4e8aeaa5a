// Package orbital locates upstream orbital CTP contexts. Orbits are derived
// from the per-satellite HIRS level-1b datalists: one NOAA L1B file per orbit.
package orbital

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// spacecraft maps NOAA L1B spacecraft codes to satellite ids.
var spacecraft = map[string]string{
	"TN": "tiros-n",
	"NA": "noaa-06",
	"NC": "noaa-07",
	"NE": "noaa-08",
	"NF": "noaa-09",
	"NG": "noaa-10",
	"NH": "noaa-11",
	"ND": "noaa-12",
	"NJ": "noaa-14",
	"NK": "noaa-15",
	"NL": "noaa-16",
	"NM": "noaa-17",
	"NN": "noaa-18",
	"NP": "noaa-19",
	"M2": "metop-a",
	"M1": "metop-b",
	"M3": "metop-c",
}

// SatelliteForCode returns the satellite id for an L1B spacecraft code.
func SatelliteForCode(code string) (string, bool) {
	sat, ok := spacecraft[strings.ToUpper(code)]
	return sat, ok
}

// Entry is one orbit listed in a datalist.
type Entry struct {
	Path      string
	Satellite string
	Start     time.Time
	End       time.Time
}

// ParseName parses an L1B file name of the form
// NSS.HIRX.<sc>.D<yyjjj>.S<hhmm>.E<hhmm>[.<more>]. An end time earlier than
// the start belongs to the following day.
func ParseName(name string) (Entry, error) {
	base := filepath.Base(name)
	parts := strings.Split(base, ".")
	if len(parts) < 6 || parts[0] != "NSS" || !strings.HasPrefix(parts[1], "HIR") {
		return Entry{}, fmt.Errorf("not an L1B HIRS file name: %q", base)
	}

	sat, ok := SatelliteForCode(parts[2])
	if !ok {
		return Entry{}, fmt.Errorf("unknown spacecraft code %q in %q", parts[2], base)
	}

	day, err := time.ParseInLocation("D06002", parts[3], time.UTC)
	if err != nil {
		return Entry{}, fmt.Errorf("bad day field in %q: %w", base, err)
	}
	start, err := clockOnDay(day, parts[4], 'S')
	if err != nil {
		return Entry{}, fmt.Errorf("bad start field in %q: %w", base, err)
	}
	end, err := clockOnDay(day, parts[5], 'E')
	if err != nil {
		return Entry{}, fmt.Errorf("bad end field in %q: %w", base, err)
	}
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}

	return Entry{Path: name, Satellite: sat, Start: start, End: end}, nil
}

func clockOnDay(day time.Time, field string, prefix byte) (time.Time, error) {
	if len(field) != 5 || field[0] != prefix {
		return time.Time{}, fmt.Errorf("want %c<hhmm>, got %q", prefix, field)
	}
	t, err := time.Parse("1504", field[1:])
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}

// ParseDatalist reads one file per line; the first whitespace separated field
// is the path. Blank lines and # comments are ignored. Lines that do not name
// an L1B file are returned in skipped rather than failing the whole list.
func ParseDatalist(r io.Reader) (entries []Entry, skipped []string, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		field := strings.Fields(line)[0]
		e, perr := ParseName(field)
		if perr != nil {
			skipped = append(skipped, line)
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("read datalist: %w", err)
	}
	return entries, skipped, nil
}
