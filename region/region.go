// Package region holds the per-region channel plans the modem is configured
// with before joining, and the spreading factor to data rate mapping.
package region

import (
	"errors"
	"fmt"
	"strings"
)

// Plan identifies a LoRaWAN frequency plan.
type Plan int

const (
	EU868 Plan = iota + 1
	US915
	AU915
	AS920_923
	AS923_925
	KR920_923
	IN865_867
)

var (
	// ErrUnknownPlan is returned for a Plan outside the supported set.
	ErrUnknownPlan = errors.New("unknown frequency plan")

	// ErrInvalidSpreadingFactor is returned when a spreading factor has
	// no data rate in the selected plan.
	ErrInvalidSpreadingFactor = errors.New("invalid spreading factor")

	// ErrInvalidSubBand is returned for a frequency sub-band outside 0..8.
	ErrInvalidSubBand = errors.New("invalid frequency sub-band")
)

var planNames = map[Plan]string{
	EU868:     "EU868",
	US915:     "US915",
	AU915:     "AU915",
	AS920_923: "AS920_923",
	AS923_925: "AS923_925",
	KR920_923: "KR920_923",
	IN865_867: "IN865_867",
}

func (p Plan) String() string {
	if name, ok := planNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Plan(%d)", int(p))
}

// Valid reports whether p is one of the supported plans.
func (p Plan) Valid() bool {
	_, ok := planNames[p]
	return ok
}

// ADRSupported reports whether the modem firmware handles adaptive data
// rate for the plan. For the others ADR is switched off while configuring.
func (p Plan) ADRSupported() bool {
	switch p {
	case EU868, US915, AU915:
		return true
	}
	return false
}

// PowerIndex is the default transmit power index for the plan.
func (p Plan) PowerIndex() string {
	switch p {
	case US915, AU915:
		return "5"
	}
	// AS/KR/IN should be 0, but RN2903AS firmware rejects it and still
	// interprets the index like EU868 (1 = 14 dBm).
	return "1"
}

// ParsePlan accepts the plan names as printed by String, case-insensitive,
// with '-' as an alternative separator ("as923-925").
func ParsePlan(s string) (Plan, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for p, name := range planNames {
		if name == norm {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPlan, s)
}

// SpreadingFactors returns the valid spreading factor range of the plan.
func (p Plan) SpreadingFactors() (lowest, highest int) {
	switch p {
	case US915, AU915:
		return 7, 10
	}
	return 7, 12
}

// DataRate converts a spreading factor into the data rate index of the plan:
// 12-sf for the 125 kHz plans, 10-sf for US915 and AU915.
func DataRate(p Plan, sf int) (int, error) {
	if !p.Valid() {
		return 0, fmt.Errorf("%w: %v", ErrUnknownPlan, p)
	}
	lo, hi := p.SpreadingFactors()
	if sf < lo || sf > hi {
		return 0, fmt.Errorf("%w: SF%d in %v", ErrInvalidSpreadingFactor, sf, p)
	}
	switch p {
	case US915, AU915:
		return 10 - sf, nil
	}
	return 12 - sf, nil
}
