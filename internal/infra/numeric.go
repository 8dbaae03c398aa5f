package infra

import (
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
)

// Money columns are numeric(15,0) holding minor units.

// NumericToInt64 converts a pgtype.Numeric read from a numeric(15,0) column to int64.
// NULL, NaN, infinities, fractional values and int64 overflow are errors.
func NumericToInt64(n pgtype.Numeric) (int64, error) {
	if !n.Valid {
		return 0, fmt.Errorf("numeric value is NULL")
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return 0, fmt.Errorf("numeric value is not finite")
	}
	if n.Int == nil {
		return 0, nil
	}

	bi := new(big.Int).Set(n.Int)
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs32(n.Exp))), nil)
	switch {
	case n.Exp > 0:
		bi.Mul(bi, pow)
	case n.Exp < 0:
		var rem big.Int
		bi.QuoRem(bi, pow, &rem)
		if rem.Sign() != 0 {
			return 0, fmt.Errorf("numeric value has a fractional part")
		}
	}

	if !bi.IsInt64() {
		return 0, fmt.Errorf("numeric value %s overflows int64", bi.String())
	}
	return bi.Int64(), nil
}

// Int64ToNumeric converts minor units to a pgtype.Numeric for a numeric(15,0) column.
func Int64ToNumeric(v int64) pgtype.Numeric {
	return pgtype.Numeric{
		Int:              big.NewInt(v),
		Exp:              0,
		InfinityModifier: pgtype.Finite,
		Valid:            true,
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
