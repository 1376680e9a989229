// Package cipher implements the rail-fence (zig-zag) transposition used
// on every payload exchanged between railrelay clients and the server.
//
// The key is the number of rails.  Text is written down and up across
// the rails one character per column, then read off rail by rail.
// Characters are Unicode code points, so multi-byte text survives a
// round trip unchanged.
package cipher

import (
	"fmt"

	rrerr "railrelay/internal/errors"
)

// ValidKey reports whether key can be used with a text of the given
// content.  A key must lie in [1, len(text)]; empty text accepts any
// positive key.
func ValidKey(text string, key int) error {
	n := len([]rune(text))
	return validKey(n, key)
}

func validKey(n, key int) error {
	if key < 1 || (n > 0 && key > n) {
		return fmt.Errorf("%w: key %d for text of length %d", rrerr.ErrInvalidKey, key, n)
	}
	return nil
}

// Encode writes message across key rails and returns the rails read in
// order.
func Encode(message string, key int) (string, error) {
	plain := []rune(message)
	if err := validKey(len(plain), key); err != nil {
		return "", err
	}
	if key == 1 || len(plain) == 0 {
		return message, nil
	}

	path := zigzag(len(plain), key)
	out := make([]rune, 0, len(plain))
	for rail := 0; rail < key; rail++ {
		for col, r := range path {
			if r == rail {
				out = append(out, plain[col])
			}
		}
	}
	return string(out), nil
}

// Decode reverses Encode for the same key.
func Decode(ciphertext string, key int) (string, error) {
	ct := []rune(ciphertext)
	if err := validKey(len(ct), key); err != nil {
		return "", err
	}
	if key == 1 || len(ct) == 0 {
		return ciphertext, nil
	}

	path := zigzag(len(ct), key)

	// How many cells each rail owns.
	counts := make([]int, key)
	for _, r := range path {
		counts[r]++
	}

	// Fill the rails row-major from the ciphertext.
	rails := make([][]rune, key)
	off := 0
	for r := range rails {
		rails[r] = ct[off : off+counts[r]]
		off += counts[r]
	}

	// Read them back along the path.
	next := make([]int, key)
	out := make([]rune, len(ct))
	for col, r := range path {
		out[col] = rails[r][next[r]]
		next[r]++
	}
	return string(out), nil
}

// zigzag returns the rail index of each of n columns for key rails.
// The row starts at 0 and turns around whenever it touches rail 0 or
// rail key-1.
func zigzag(n, key int) []int {
	path := make([]int, n)
	row, down := 0, false
	for col := 0; col < n; col++ {
		if row == 0 || row == key-1 {
			down = !down
		}
		path[col] = row
		if down {
			row++
		} else {
			row--
		}
	}
	return path
}
