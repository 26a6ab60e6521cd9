package expr

import "math/big"

// BitVectorValue is an arbitrary-precision unsigned magnitude truncated to a
// declared width (§4.A: "BitVector constants use arbitrary-precision
// unsigned magnitudes truncated to the declared width").
type BitVectorValue struct {
	magnitude *big.Int
	bits      int
}

// NewBitVectorValue builds a value from a uint64, trimmed to bits.
func NewBitVectorValue(value uint64, bits int) BitVectorValue {
	return NewBitVectorValueBig(new(big.Int).SetUint64(value), bits)
}

// NewBitVectorValueBig builds a value from an arbitrary-precision magnitude,
// trimmed to bits.
func NewBitVectorValueBig(value *big.Int, bits int) BitVectorValue {
	return BitVectorValue{magnitude: trim(value, bits), bits: bits}
}

func trim(v *big.Int, bits int) *big.Int {
	mask := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	mask.Sub(mask, big.NewInt(1))
	return new(big.Int).And(v, mask)
}

func (v BitVectorValue) Bits() int          { return v.bits }
func (v BitVectorValue) Magnitude() *big.Int { return new(big.Int).Set(v.magnitude) }
func (v BitVectorValue) IsZero() bool       { return v.magnitude.Sign() == 0 }

func (v BitVectorValue) Uint64() (uint64, bool) {
	if !v.magnitude.IsUint64() {
		return 0, false
	}
	return v.magnitude.Uint64(), true
}

// Int64 sign-extends the value to a signed two's-complement interpretation
// and returns it as an int64 when it fits.
func (v BitVectorValue) Int64() (int64, bool) {
	signed := v.signedMagnitude()
	if !signed.IsInt64() {
		return 0, false
	}
	return signed.Int64(), true
}

// signedMagnitude interprets the bit pattern as a two's-complement signed
// integer.
func (v BitVectorValue) signedMagnitude() *big.Int {
	signBit := new(big.Int).Lsh(big.NewInt(1), uint(v.bits-1))
	if v.magnitude.Cmp(signBit) < 0 {
		return new(big.Int).Set(v.magnitude)
	}
	full := new(big.Int).Lsh(big.NewInt(1), uint(v.bits))
	return new(big.Int).Sub(v.magnitude, full)
}

func (v BitVectorValue) Equal(o BitVectorValue) bool {
	return v.bits == o.bits && v.magnitude.Cmp(o.magnitude) == 0
}

func (v BitVectorValue) String() string {
	return v.magnitude.Text(10) + "#" + itoa(v.bits)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// arithmetic helpers used by Fold (§4.A) and by the loader's immediate
// encoding. Each truncates the result to `bits`.

func (v BitVectorValue) Add(o BitVectorValue) BitVectorValue {
	return NewBitVectorValueBig(new(big.Int).Add(v.magnitude, o.magnitude), v.bits)
}

func (v BitVectorValue) Sub(o BitVectorValue) BitVectorValue {
	return NewBitVectorValueBig(new(big.Int).Sub(v.magnitude, o.magnitude), v.bits)
}

func (v BitVectorValue) Mul(o BitVectorValue) BitVectorValue {
	return NewBitVectorValueBig(new(big.Int).Mul(v.magnitude, o.magnitude), v.bits)
}

func (v BitVectorValue) UDiv(o BitVectorValue) (BitVectorValue, bool) {
	if o.IsZero() {
		return BitVectorValue{}, false
	}
	return NewBitVectorValueBig(new(big.Int).Div(v.magnitude, o.magnitude), v.bits), true
}

func (v BitVectorValue) URem(o BitVectorValue) (BitVectorValue, bool) {
	if o.IsZero() {
		return BitVectorValue{}, false
	}
	return NewBitVectorValueBig(new(big.Int).Mod(v.magnitude, o.magnitude), v.bits), true
}

func (v BitVectorValue) SDiv(o BitVectorValue) (BitVectorValue, bool) {
	if o.IsZero() {
		return BitVectorValue{}, false
	}
	q := new(big.Int).Quo(v.signedMagnitude(), o.signedMagnitude())
	return NewBitVectorValueBig(q, v.bits), true
}

func (v BitVectorValue) SRem(o BitVectorValue) (BitVectorValue, bool) {
	if o.IsZero() {
		return BitVectorValue{}, false
	}
	r := new(big.Int).Rem(v.signedMagnitude(), o.signedMagnitude())
	return NewBitVectorValueBig(r, v.bits), true
}

func (v BitVectorValue) And(o BitVectorValue) BitVectorValue {
	return NewBitVectorValueBig(new(big.Int).And(v.magnitude, o.magnitude), v.bits)
}

func (v BitVectorValue) Or(o BitVectorValue) BitVectorValue {
	return NewBitVectorValueBig(new(big.Int).Or(v.magnitude, o.magnitude), v.bits)
}

func (v BitVectorValue) Xor(o BitVectorValue) BitVectorValue {
	return NewBitVectorValueBig(new(big.Int).Xor(v.magnitude, o.magnitude), v.bits)
}

func (v BitVectorValue) Not() BitVectorValue {
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(v.bits)), big.NewInt(1))
	return NewBitVectorValueBig(new(big.Int).Xor(v.magnitude, mask), v.bits)
}

func (v BitVectorValue) Neg() BitVectorValue {
	return NewBitVectorValueBig(new(big.Int).Neg(v.magnitude), v.bits)
}

func (v BitVectorValue) Shl(n uint) BitVectorValue {
	return NewBitVectorValueBig(new(big.Int).Lsh(v.magnitude, n), v.bits)
}

func (v BitVectorValue) LShr(n uint) BitVectorValue {
	return NewBitVectorValueBig(new(big.Int).Rsh(v.magnitude, n), v.bits)
}

func (v BitVectorValue) AShr(n uint) BitVectorValue {
	signed := new(big.Int).Rsh(v.signedMagnitude(), n)
	return NewBitVectorValueBig(signed, v.bits)
}

func (v BitVectorValue) ZExt(bits int) BitVectorValue {
	return NewBitVectorValueBig(v.magnitude, bits)
}

func (v BitVectorValue) SExt(bits int) BitVectorValue {
	return NewBitVectorValueBig(v.signedMagnitude(), bits)
}

func (v BitVectorValue) Trunc(bits int) BitVectorValue {
	return NewBitVectorValueBig(v.magnitude, bits)
}

func (v BitVectorValue) Concat(lower BitVectorValue) BitVectorValue {
	shifted := new(big.Int).Lsh(v.magnitude, uint(lower.bits))
	combined := new(big.Int).Or(shifted, lower.magnitude)
	return NewBitVectorValueBig(combined, v.bits+lower.bits)
}

func (v BitVectorValue) Extract(hi, lo int) BitVectorValue {
	shifted := new(big.Int).Rsh(v.magnitude, uint(lo))
	return NewBitVectorValueBig(shifted, hi-lo+1)
}

func (v BitVectorValue) ULt(o BitVectorValue) bool { return v.magnitude.Cmp(o.magnitude) < 0 }
func (v BitVectorValue) ULe(o BitVectorValue) bool { return v.magnitude.Cmp(o.magnitude) <= 0 }
func (v BitVectorValue) UGt(o BitVectorValue) bool { return v.magnitude.Cmp(o.magnitude) > 0 }
func (v BitVectorValue) UGe(o BitVectorValue) bool { return v.magnitude.Cmp(o.magnitude) >= 0 }

func (v BitVectorValue) SLt(o BitVectorValue) bool {
	return v.signedMagnitude().Cmp(o.signedMagnitude()) < 0
}
func (v BitVectorValue) SLe(o BitVectorValue) bool {
	return v.signedMagnitude().Cmp(o.signedMagnitude()) <= 0
}
func (v BitVectorValue) SGt(o BitVectorValue) bool {
	return v.signedMagnitude().Cmp(o.signedMagnitude()) > 0
}
func (v BitVectorValue) SGe(o BitVectorValue) bool {
	return v.signedMagnitude().Cmp(o.signedMagnitude()) >= 0
}
