package domain

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// lamportExp is the decimal exponent between lamports and SOL.
const lamportExp = -9

// FormatLamports renders a lamport amount as a SOL decimal string, e.g.
// 1_500_000_000 -> "1.5".
func FormatLamports(amount uint64) string {
	return LamportsToSOL(amount).String()
}

// LamportsToSOL converts a lamport amount to a SOL decimal.
func LamportsToSOL(amount uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), lamportExp)
}

// SOLToLamports converts a SOL decimal to lamports, truncating sub-lamport
// precision. Negative values yield zero.
func SOLToLamports(sol decimal.Decimal) uint64 {
	if sol.Sign() <= 0 {
		return 0
	}
	lamports := sol.Mul(decimal.NewFromInt(int64(solana.LAMPORTS_PER_SOL))).Truncate(0)
	return lamports.BigInt().Uint64()
}
