package fast

import "github.com/zkir-project/zkir/zkgo/zkir"

// Arithmetic in the scalar field. Inputs are assumed reduced; every result is.

func fieldAdd(a, b uint32) uint32 {
	return uint32((uint64(a) + uint64(b)) % uint64(zkir.Modulus))
}

func fieldSub(a, b uint32) uint32 {
	return uint32((uint64(a) + uint64(zkir.Modulus) - uint64(b)) % uint64(zkir.Modulus))
}

func fieldMul(a, b uint32) uint32 {
	return uint32(uint64(a) * uint64(b) % uint64(zkir.Modulus))
}

func fieldNeg(a uint32) uint32 {
	if a == 0 {
		return 0
	}
	return zkir.Modulus - a
}

// fieldInv computes a^(p-2) by square-and-multiply. The caller rejects a == 0.
func fieldInv(a uint32) uint32 {
	result := uint64(1)
	base := uint64(a)
	exp := uint64(zkir.Modulus - 2)
	mod := uint64(zkir.Modulus)
	for exp > 0 {
		if exp&1 == 1 {
			result = result * base % mod
		}
		base = base * base % mod
		exp >>= 1
	}
	return uint32(result)
}

func fieldPow7(x uint32) uint32 {
	x2 := fieldMul(x, x)
	x4 := fieldMul(x2, x2)
	return fieldMul(x4, fieldMul(x2, x))
}
