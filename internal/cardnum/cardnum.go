// Package cardnum generates and validates Luhn-checked card numbers.
package cardnum

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

// NumberLength is the full length of an issued card number, check digit
// included.
const NumberLength = 16

// Generator produces card numbers under a fixed issuer BIN.
type Generator struct {
	bin  string
	rand io.Reader
}

// NewGenerator validates the 6-digit issuer prefix. The random source is
// crypto/rand; tests may swap it with WithRand.
func NewGenerator(bin string) (*Generator, error) {
	if len(bin) != 6 || !allDigits(bin) {
		return nil, fmt.Errorf("issuer BIN must be 6 digits, got %q", bin)
	}
	return &Generator{bin: bin, rand: rand.Reader}, nil
}

// WithRand replaces the random source and returns the generator.
func (g *Generator) WithRand(r io.Reader) *Generator {
	g.rand = r
	return g
}

// Generate returns a 16-digit number: BIN, 9 random digits, Luhn check digit.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, NumberLength-len(g.bin)-1)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("failed to read random digits: %w", err)
	}

	var b strings.Builder
	b.WriteString(g.bin)
	for _, v := range buf {
		b.WriteByte(v%10 + '0')
	}

	partial := b.String()
	b.WriteByte(byte(checkDigit(partial)) + '0')
	return b.String(), nil
}

// Valid reports whether number is all digits and Luhn-valid.
func Valid(number string) bool {
	if len(number) == 0 || !allDigits(number) {
		return false
	}
	return luhnSum(number, false)%10 == 0
}

// checkDigit computes the Luhn check digit for a number missing it.
func checkDigit(partial string) int {
	return (10 - luhnSum(partial, true)%10) % 10
}

// luhnSum sums digits right to left, doubling every second one. shifted is
// true when the rightmost digit of s sits next to a future check digit.
func luhnSum(s string, shifted bool) int {
	sum := 0
	double := shifted
	for i := len(s) - 1; i >= 0; i-- {
		d := int(s[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
