// Package product defines the typed parameter sets ("contexts") that identify a
// unit of work and the references to the products those units produce.
package product

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ctpdaily/internal/timeutil"

	"go.uber.org/zap/zapcore"
)

// Deliveries is the chain of delivered software versions a product was built
// with, from the L1B conversion up to the daily CTP binary.
type Deliveries struct {
	HIRS2NC         string `yaml:"hirs2nc" json:"hirs2nc"`
	HIRSAVHRR       string `yaml:"hirs_avhrr" json:"hirs_avhrr"`
	HIRSCSRBDaily   string `yaml:"hirs_csrb_daily" json:"hirs_csrb_daily"`
	HIRSCSRBMonthly string `yaml:"hirs_csrb_monthly" json:"hirs_csrb_monthly"`
	HIRSCTPOrbital  string `yaml:"hirs_ctp_orbital" json:"hirs_ctp_orbital"`
	HIRSCTPDaily    string `yaml:"hirs_ctp_daily" json:"hirs_ctp_daily"`
}

// Validate requires every delivery id up to and including the orbital stage.
// The daily id is only required by the task runner.
func (d Deliveries) Validate() error {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"hirs2nc", d.HIRS2NC},
		{"hirs_avhrr", d.HIRSAVHRR},
		{"hirs_csrb_daily", d.HIRSCSRBDaily},
		{"hirs_csrb_monthly", d.HIRSCSRBMonthly},
		{"hirs_ctp_orbital", d.HIRSCTPOrbital},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing delivery ids: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (d Deliveries) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("hirs2nc", d.HIRS2NC)
	enc.AddString("hirs_avhrr", d.HIRSAVHRR)
	enc.AddString("hirs_csrb_daily", d.HIRSCSRBDaily)
	enc.AddString("hirs_csrb_monthly", d.HIRSCSRBMonthly)
	enc.AddString("hirs_ctp_orbital", d.HIRSCTPOrbital)
	enc.AddString("hirs_ctp_daily", d.HIRSCTPDaily)
	return nil
}

// Context identifies one daily CTP task: one calendar day, one satellite, one
// delivery lineage. Values are built by the context enumerator and never
// modified afterwards.
type Context struct {
	Granule    time.Time  `json:"granule"`
	Satellite  string     `json:"satellite"`
	Deliveries Deliveries `json:"deliveries"`
}

// NewContext validates and returns a daily context for the day containing
// granule.
func NewContext(granule time.Time, satellite string, deliveries Deliveries) (Context, error) {
	if strings.TrimSpace(satellite) == "" {
		return Context{}, errors.New("satellite is required")
	}
	if err := deliveries.Validate(); err != nil {
		return Context{}, err
	}
	return Context{
		Granule:    timeutil.StartOfDay(granule),
		Satellite:  satellite,
		Deliveries: deliveries,
	}, nil
}

// Day returns the calendar day covered by the context.
func (c Context) Day() timeutil.Interval {
	return timeutil.Day(c.Granule)
}

// DayCode returns the D<yy><jjj> code of the context's day.
func (c Context) DayCode() string {
	return timeutil.DayCode(c.Granule)
}

func (c Context) String() string {
	return fmt.Sprintf("%s %s", c.Satellite, c.DayCode())
}

func (c Context) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddTime("granule", c.Granule)
	enc.AddString("satellite", c.Satellite)
	enc.AddString("day", c.DayCode())
	return enc.AddObject("deliveries", c.Deliveries)
}

// OrbitalContext identifies one upstream orbital CTP product.
type OrbitalContext struct {
	Granule    time.Time  `json:"granule"`
	End        time.Time  `json:"end"`
	Satellite  string     `json:"satellite"`
	Deliveries Deliveries `json:"deliveries"`
	// Source is the L1B file the orbit was derived from.
	Source string `json:"source,omitempty"`
}

// Orbit returns the time span covered by the orbit.
func (c OrbitalContext) Orbit() timeutil.Interval {
	return timeutil.Interval{Start: c.Granule, End: c.End}
}

func (c OrbitalContext) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddTime("granule", c.Granule)
	enc.AddTime("end", c.End)
	enc.AddString("satellite", c.Satellite)
	if c.Source != "" {
		enc.AddString("source", c.Source)
	}
	return nil
}
