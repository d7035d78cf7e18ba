package region

import (
	"fmt"
	"strconv"

	"i4.energy/across/loranode/rn"
)

// DefaultRetransmissions is the number of retransmissions of a confirmed
// uplink, set for every plan.
const DefaultRetransmissions = "7"

// Channel counts of the wide plans: 64 125 kHz channels followed by 8
// 500 kHz channels.
const (
	wideChannels   = 72
	wide500kHzBase = 63
	subBandSize    = 8
)

// Commands returns the command sequence configuring the modem's channels for
// plan. subBand selects the 8-channel block of US915/AU915 (1..8, 0 for the
// full plan) and is ignored by the other plans.
func Commands(plan Plan, subBand int) ([]rn.Command, error) {
	if subBand < 0 || subBand > 8 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSubBand, subBand)
	}

	var cmds []rn.Command
	switch plan {
	case EU868:
		cmds = eu868()
	case US915, AU915:
		cmds = wide(plan, subBand)
	case AS920_923:
		cmds = as923(922000000)
	case AS923_925:
		cmds = as923(923600000)
	case KR920_923:
		cmds = kr920()
	case IN865_867:
		cmds = in865()
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownPlan, plan)
	}
	return append(cmds, rn.MacSet(rn.MacRetX, DefaultRetransmissions)), nil
}

func freq(hz uint32) string {
	return strconv.FormatUint(uint64(hz), 10)
}

func eu868() []rn.Command {
	cmds := []rn.Command{
		rn.MacSet(rn.MacRx2, "3 869525000"),
		rn.MacSetCh(rn.ChDRRange, 1, "0 6"),
	}
	f := uint32(867100000)
	for ch := 0; ch < 8; ch++ {
		cmds = append(cmds, rn.MacSetCh(rn.ChDutyCycle, ch, "799"))
		// 0..2 are the mandatory join channels, already set up by the modem
		if ch > 2 {
			cmds = append(cmds,
				rn.MacSetCh(rn.ChFreq, ch, freq(f)),
				rn.MacSetCh(rn.ChDRRange, ch, "0 5"),
				rn.MacSetCh(rn.ChStatus, ch, rn.On),
			)
			f += 200000
		}
	}
	return append(cmds, rn.MacSet(rn.MacPwrIdx, EU868.PowerIndex()))
}

// wide enables one 8-channel sub-band plus its 500 kHz channel and disables
// everything else.
func wide(plan Plan, fsb int) []rn.Command {
	chLow, chHigh := 0, wideChannels-1
	if fsb > 0 {
		chLow = (fsb - 1) * subBandSize
		chHigh = chLow + subBandSize - 1
	}
	ch500 := fsb + wide500kHzBase

	var cmds []rn.Command
	for ch := 0; ch < wideChannels; ch++ {
		if ch == ch500 || (ch >= chLow && ch <= chHigh) {
			cmds = append(cmds, rn.MacSetCh(rn.ChStatus, ch, rn.On))
			if ch < wide500kHzBase {
				cmds = append(cmds, rn.MacSetCh(rn.ChDRRange, ch, "0 3"))
			}
			continue
		}
		cmds = append(cmds, rn.MacSetCh(rn.ChStatus, ch, rn.Off))
	}
	return append(cmds, rn.MacSet(rn.MacPwrIdx, plan.PowerIndex()))
}

// as923 covers both AS plans; RN2903AS defaults CH0/CH1 to 923.2/923.4 MHz.
func as923(start uint32) []rn.Command {
	cmds := []rn.Command{
		rn.MacSet(rn.MacADR, rn.Off),
		rn.MacSet(rn.MacRx2, "2 923200000"),
	}
	f := start
	for ch := 0; ch < 8; ch++ {
		cmds = append(cmds, rn.MacSetCh(rn.ChDutyCycle, ch, "799"))
		if ch > 1 {
			cmds = append(cmds,
				rn.MacSetCh(rn.ChFreq, ch, freq(f)),
				rn.MacSetCh(rn.ChDRRange, ch, "0 5"),
				rn.MacSetCh(rn.ChStatus, ch, rn.On),
			)
			f += 200000
		}
	}
	// TODO: add the SF7BW250 (DR6) channel once RN2903AS firmware accepts it.
	return append(cmds, rn.MacSet(rn.MacPwrIdx, AS920_923.PowerIndex()))
}

func kr920() []rn.Command {
	cmds := []rn.Command{
		rn.MacSet(rn.MacADR, rn.Off),
		// KR still uses SF12 for RX2
		rn.MacSet(rn.MacRx2, "0 921900000"),
		rn.MacSetCh(rn.ChStatus, 0, rn.Off),
		rn.MacSetCh(rn.ChStatus, 1, rn.Off),
	}
	f := uint32(922100000)
	for ch := 2; ch < 9; ch++ {
		cmds = append(cmds,
			rn.MacSetCh(rn.ChDutyCycle, ch, "799"),
			rn.MacSetCh(rn.ChFreq, ch, freq(f)),
			rn.MacSetCh(rn.ChDRRange, ch, "0 5"),
			rn.MacSetCh(rn.ChStatus, ch, rn.On),
		)
		f += 200000
	}
	return append(cmds, rn.MacSet(rn.MacPwrIdx, KR920_923.PowerIndex()))
}

func in865() []rn.Command {
	cmds := []rn.Command{
		rn.MacSet(rn.MacADR, rn.Off),
		rn.MacSet(rn.MacRx2, "2 866550000"),
		rn.MacSetCh(rn.ChStatus, 0, rn.Off),
		rn.MacSetCh(rn.ChStatus, 1, rn.Off),
		rn.MacSetCh(rn.ChStatus, 2, rn.Off),
	}
	for i, f := range []uint32{865062500, 865402500, 865985000} {
		ch := 3 + i
		cmds = append(cmds,
			rn.MacSetCh(rn.ChDutyCycle, ch, "299"),
			rn.MacSetCh(rn.ChFreq, ch, freq(f)),
			rn.MacSetCh(rn.ChDRRange, ch, "0 5"),
			rn.MacSetCh(rn.ChStatus, ch, rn.On),
		)
	}
	return append(cmds, rn.MacSet(rn.MacPwrIdx, IN865_867.PowerIndex()))
}
