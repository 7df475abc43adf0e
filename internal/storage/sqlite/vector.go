package sqlite

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// stringToVector backs the string_to_vector SQL function: it turns the
// bracketed literal "[0.1,-0.2,...]" into packed little-endian float32s.
func stringToVector(literal string) ([]byte, error) {
	s := strings.TrimSpace(literal)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("string_to_vector: literal must be bracket-delimited")
	}

	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, fmt.Errorf("string_to_vector: empty vector")
	}

	parts := strings.Split(body, ",")
	buf := make([]byte, 4*len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("string_to_vector: component %d: %w", i, err)
		}
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(f)))
	}

	return buf, nil
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(blob))
	}

	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vec, nil
}

// vectorToString backs vector_to_string, the inverse of string_to_vector.
func vectorToString(blob []byte) (string, error) {
	vec, err := decodeVector(blob)
	if err != nil {
		return "", fmt.Errorf("vector_to_string: %w", err)
	}

	var b strings.Builder
	b.WriteByte('[')
	for i, x := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', 6, 32))
	}
	b.WriteByte(']')
	return b.String(), nil
}
