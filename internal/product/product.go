package product

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	ComputationCTPDaily   = "hirs_ctp_daily"
	ComputationCTPOrbital = "hirs_ctp_orbital"

	// DatasetOut is the single dataset both computations publish.
	DatasetOut = "out"
)

// Product is a reference to a stored (or to-be-stored) file produced by a
// computation for one context.
type Product struct {
	Computation string    `json:"computation"`
	Dataset     string    `json:"dataset"`
	Satellite   string    `json:"satellite"`
	Granule     time.Time `json:"granule"`
	DeliveryID  string    `json:"delivery_id"`
	Filename    string    `json:"filename"`
}

// Key is a stable identifier for the product, suitable for catalog lookups.
func (p Product) Key() string {
	return strings.Join([]string{
		p.Computation,
		p.Dataset,
		p.Satellite,
		p.Granule.UTC().Format(time.RFC3339),
		p.DeliveryID,
	}, ":")
}

func (p Product) Validate() error {
	var missing []string
	if p.Computation == "" {
		missing = append(missing, "computation")
	}
	if p.Dataset == "" {
		missing = append(missing, "dataset")
	}
	if p.Satellite == "" {
		missing = append(missing, "satellite")
	}
	if p.Granule.IsZero() {
		missing = append(missing, "granule")
	}
	if p.Filename == "" {
		missing = append(missing, "filename")
	}
	if len(missing) > 0 {
		return fmt.Errorf("product is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func (p Product) String() string {
	return p.Computation + "/" + p.Dataset + "/" + p.Filename
}

func (p Product) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("computation", p.Computation)
	enc.AddString("dataset", p.Dataset)
	enc.AddString("satellite", p.Satellite)
	enc.AddTime("granule", p.Granule)
	enc.AddString("delivery_id", p.DeliveryID)
	enc.AddString("filename", p.Filename)
	return nil
}

// DailyFilename is the output file name for a daily context:
// hirs_ctp_daily_<satellite>_D<yy><jjj>.nc
func DailyFilename(c Context) string {
	return fmt.Sprintf("%s_%s_%s.nc", ComputationCTPDaily, c.Satellite, c.DayCode())
}

// Daily returns the product reference for a daily context's output.
func Daily(c Context) Product {
	return Product{
		Computation: ComputationCTPDaily,
		Dataset:     DatasetOut,
		Satellite:   c.Satellite,
		Granule:     c.Granule,
		DeliveryID:  c.Deliveries.HIRSCTPDaily,
		Filename:    DailyFilename(c),
	}
}

// OrbitalFilename is the file name of an orbital CTP product:
// hirs_ctp_orbital_<satellite>_D<yy><jjj>.S<hhmm>.E<hhmm>.nc
func OrbitalFilename(c OrbitalContext) string {
	g := c.Granule.UTC()
	return fmt.Sprintf("%s_%s_%s.S%s.E%s.nc",
		ComputationCTPOrbital, c.Satellite, g.Format("D06002"), g.Format("1504"), c.End.UTC().Format("1504"))
}

// Orbital returns the product reference for an orbital context.
func Orbital(c OrbitalContext) Product {
	return Product{
		Computation: ComputationCTPOrbital,
		Dataset:     DatasetOut,
		Satellite:   c.Satellite,
		Granule:     c.Granule.UTC(),
		DeliveryID:  c.Deliveries.HIRSCTPOrbital,
		Filename:    OrbitalFilename(c),
	}
}
