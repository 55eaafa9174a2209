package permission

// Mask64 is a 64-bit permission bitmask, one bit per capability.
type Mask64 uint64

// Has reports whether the capability bit is set.
func (m Mask64) Has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	return (m & (1 << bit)) != 0
}

// Set returns the mask with the capability bit set.
func (m Mask64) Set(bit int) Mask64 {
	if bit < 0 || bit >= 64 {
		return m
	}
	return m | (1 << bit)
}

// Union returns the bitwise OR of both masks.
func (m Mask64) Union(other Mask64) Mask64 {
	return m | other
}

// Raw returns the mask as a plain uint64.
func (m Mask64) Raw() uint64 {
	return uint64(m)
}

// AllBits is the mask with every capability bit set.
const AllBits Mask64 = ^Mask64(0)
