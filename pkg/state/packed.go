package state

import (
	"github.com/holiman/uint256"
)

// The vault packs several fields into single storage words. The layouts are
// fixed by the contract and must not be re-derived anywhere else.
//
// NAV word: expiration timestamp in bits [0,128), lifespan seconds in
// bits [128,256), both unsigned.
//
// Epoch word: four 40-bit unsigned counters,
//   deposit epoch id          bits [0,40)
//   last deposit epoch settled bits [40,80)
//   redeem epoch id           bits [80,120)
//   last redeem epoch settled  bits [120,160)
const (
	navWordLifespanShift = 128

	epochWordWidth            = 40
	epochWordLastDepositShift = 40
	epochWordRedeemShift      = 80
	epochWordLastRedeemShift  = 120
)

var (
	navWordHalfMask  = bitMask(128)
	epochCounterMask = bitMask(epochWordWidth)
)

func bitMask(bits uint) *uint256.Int {
	one := uint256.NewInt(1)
	m := new(uint256.Int).Lsh(one, bits)
	return m.Sub(m, one)
}

// NavWord is the unpacked expiration/lifespan storage word.
type NavWord struct {
	Expiration uint64
	Lifespan   uint64
}

// UnpackNavWord splits the packed expiration/lifespan word. Values are
// 128-bit on chain but fit in uint64 for any real timestamp or duration.
func UnpackNavWord(word *uint256.Int) NavWord {
	lo := new(uint256.Int).And(word, navWordHalfMask)
	hi := new(uint256.Int).Rsh(word, navWordLifespanShift)
	return NavWord{
		Expiration: lo.Uint64(),
		Lifespan:   hi.Uint64(),
	}
}

// EpochWord is the unpacked epoch-counter storage word.
type EpochWord struct {
	DepositEpochID          uint64
	LastDepositEpochSettled uint64
	RedeemEpochID           uint64
	LastRedeemEpochSettled  uint64
}

// UnpackEpochWord splits the packed epoch-counter word.
func UnpackEpochWord(word *uint256.Int) EpochWord {
	field := func(shift uint) uint64 {
		v := new(uint256.Int).Rsh(word, shift)
		return v.And(v, epochCounterMask).Uint64()
	}
	return EpochWord{
		DepositEpochID:          field(0),
		LastDepositEpochSettled: field(epochWordLastDepositShift),
		RedeemEpochID:           field(epochWordRedeemShift),
		LastRedeemEpochSettled:  field(epochWordLastRedeemShift),
	}
}
