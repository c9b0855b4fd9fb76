package core

// FoldASCII returns a copy of data with ASCII upper-case letters lowered.
// Non-ASCII bytes pass through untouched, so offsets into the folded copy
// are valid offsets into the original.
func FoldASCII(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}
		out[i] = b
	}
	return out
}
