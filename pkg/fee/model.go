// Package fee implements the Fee & Tip Model (C3): lamport cost estimation,
// tip computation, and lamport-to-input-token conversion (§4.3).
package fee

import "cosmossdk.io/math"

// TipMode selects fixed or output-proportional tip computation.
type TipMode string

const (
	TipFixed   TipMode = "fixed"
	TipDynamic TipMode = "dynamic"
)

// Params bundles the per-candidate fee inputs (§4.3).
type Params struct {
	BaseFeeLamports   math.Int
	RentBufferLamports math.Int
	ComputeUnitLimit  math.Int
	ComputeUnitPrice  math.Int // micro-lamports per CU
	TxCount           math.Int // 1 atomic, 2 sequential/Ultra
	SigsPerTx         math.Int // 1 Primary, provider-declared for Secondary (default 3)

	Tip TipParams
}

// TipParams bundles the tip mode and its bounds.
type TipParams struct {
	Mode      TipMode
	Fixed     math.Int
	Bps       int64
	MinTip    math.Int
	MaxTip    math.Int
	AIsNative bool
}

// Tip computes the tip in lamports: fixed mode is max(0, tipLamports);
// dynamic mode only applies when aMint is native, otherwise it falls back
// to fixed (§4.3). gross is minOutₙ - in, the pre-fee conservative spread.
func Tip(p TipParams, gross math.Int) math.Int {
	if p.Mode == TipFixed || !p.AIsNative {
		if p.Fixed.IsNegative() {
			return math.ZeroInt()
		}
		return p.Fixed
	}
	if !gross.IsPositive() {
		return math.ZeroInt()
	}
	raw := gross.MulRaw(p.Bps).QuoRaw(10_000)
	if raw.LT(p.MinTip) {
		return p.MinTip
	}
	if raw.GT(p.MaxTip) {
		return p.MaxTip
	}
	return raw
}

// PriorityLamports computes the integer priority-fee cost per tx:
// floor(cuLimit * cuPriceMicroLamports / 1_000_000).
func PriorityLamports(cuLimit, cuPriceMicroLamports math.Int) math.Int {
	return cuLimit.Mul(cuPriceMicroLamports).QuoRaw(1_000_000)
}

// EstimateLamports computes the full per-transaction lamport cost:
// fee = baseFee*txCount*sigsPerTx + rentBuffer*txCount + priority*txCount + tip
// (§4.3).
func EstimateLamports(p Params, tipLamports math.Int) math.Int {
	base := p.BaseFeeLamports.Mul(p.TxCount).Mul(p.SigsPerTx)
	rent := p.RentBufferLamports.Mul(p.TxCount)
	priority := PriorityLamports(p.ComputeUnitLimit, p.ComputeUnitPrice).Mul(p.TxCount)
	return base.Add(rent).Add(priority).Add(tipLamports)
}

// InA converts a lamport fee into A-denominated units via a reference
// native-unit->A quote. If aMint is native, the fee is already in A.
// feeInA = ceil(feeLamports * outPerSol / 1e9) (§4.3).
func InA(feeLamports, outPerSol math.Int, aIsNative bool) math.Int {
	if aIsNative {
		return feeLamports
	}
	num := feeLamports.Mul(outPerSol)
	return ceilDiv(num, math.NewInt(1_000_000_000))
}

func ceilDiv(num, den math.Int) math.Int {
	q := num.Quo(den)
	r := num.Mod(den)
	if r.IsZero() {
		return q
	}
	return q.AddRaw(1)
}
