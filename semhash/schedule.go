package semhash

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// UnknownStep is the step given to the bottleneck when no training
// step count is available. Schedules treat it as fully annealed.
const UnknownStep = -1

/*
InverseExpDecay takes a number of steps, a minimum value and a
step and returns a value growing exponentially from minValue at
step 0 to 1 at maxStep, and staying at 1 afterwards. A negative
step is unknown and yields 1.
*/
func InverseExpDecay(maxStep int, minValue float64, step int) float64 {
	if step < 0 || maxStep <= 0 {
		return 1
	}
	invBase := math.Exp(math.Log(minValue) / float64(maxStep))
	return math.Pow(invBase, math.Max(float64(maxStep-step), 0))
}

/*
BitsToInt takes a slice of digits in the given base, least
significant first, and returns the number they represent.
*/
func BitsToInt(bits []int, base int) int {
	result, mult := 0, 1
	for _, b := range bits {
		result += b * mult
		mult *= base
	}
	return result
}

// IntToBits returns the n digits of code in the given base, least
// significant first.
func IntToBits(code, n, base int) []int {
	bits := make([]int, n)
	for i := range bits {
		bits[i] = code % base
		code /= base
	}
	return bits
}

const (
	codeTokenPrefix = "<cl"
	codeTokenSuffix = ">"
)

// CodeToken returns the vocabulary token standing for a code
func CodeToken(code int) string {
	return fmt.Sprintf("%s%d%s", codeTokenPrefix, code, codeTokenSuffix)
}

// ParseCodeToken returns the code a token stands for, and false
// if the token is not a code token.
func ParseCodeToken(token string) (int, bool) {
	if !strings.HasPrefix(token, codeTokenPrefix) || !strings.HasSuffix(token, codeTokenSuffix) {
		return 0, false
	}
	code, err := strconv.Atoi(token[len(codeTokenPrefix) : len(token)-len(codeTokenSuffix)])
	if err != nil || code < 0 {
		return 0, false
	}
	return code, true
}
