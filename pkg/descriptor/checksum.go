package descriptor

import (
	"fmt"
	"strings"
)

const (
	inputCharset    = "0123456789()[],'/*abcdefgh@:$%{}IJKLMNOPQRSTUVWXYZ&+-.;<=>?!^_|~ijklmnopqrstuvwxyzABCDEFGH`#\"\\ "
	checksumCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"
	checksumLength  = 8
)

var polymodGenerators = [5]uint64{
	0xf5dee51989, 0xa9fdca3312, 0x1bab10e32d, 0x3706b1677a, 0x644d626ffd,
}

func polymod(c uint64, val uint64) uint64 {
	c0 := c >> 35
	c = ((c & 0x7ffffffff) << 5) ^ val
	for i, gen := range polymodGenerators {
		if (c0>>uint(i))&1 != 0 {
			c ^= gen
		}
	}
	return c
}

// Checksum computes the 8 character checksum of a descriptor string
// without the trailing "#checksum" part.
func Checksum(desc string) (string, error) {
	c := uint64(1)
	cls := uint64(0)
	clsCount := 0
	for _, ch := range desc {
		pos := strings.IndexRune(inputCharset, ch)
		if pos < 0 {
			return "", fmt.Errorf(
				"%w: character %q not allowed", ErrInvalidDescriptor, ch,
			)
		}
		c = polymod(c, uint64(pos&31))
		cls = cls*3 + uint64(pos>>5)
		clsCount++
		if clsCount == 3 {
			c = polymod(c, cls)
			cls = 0
			clsCount = 0
		}
	}
	if clsCount > 0 {
		c = polymod(c, cls)
	}
	for i := 0; i < checksumLength; i++ {
		c = polymod(c, 0)
	}
	c ^= 1

	sum := make([]byte, checksumLength)
	for i := 0; i < checksumLength; i++ {
		sum[i] = checksumCharset[(c>>(5*(7-i)))&31]
	}
	return string(sum), nil
}

// AddChecksum returns the descriptor with its checksum appended.
func AddChecksum(desc string) (string, error) {
	sum, err := Checksum(desc)
	if err != nil {
		return "", err
	}
	return desc + "#" + sum, nil
}

// splitChecksum strips and verifies the checksum, if any.
func splitChecksum(desc string) (string, error) {
	body, sum, found := strings.Cut(desc, "#")
	if !found {
		return desc, nil
	}
	if len(sum) != checksumLength {
		return "", fmt.Errorf(
			"%w: expected %d characters, got %d",
			ErrInvalidChecksum, checksumLength, len(sum),
		)
	}
	expected, err := Checksum(body)
	if err != nil {
		return "", err
	}
	if sum != expected {
		return "", fmt.Errorf(
			"%w: expected %s, got %s", ErrInvalidChecksum, expected, sum,
		)
	}
	return body, nil
}
