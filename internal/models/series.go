package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Series последовательность отсчетов сигнала.
// NaN и бесконечности кодируются в JSON как null, null декодируется обратно в NaN.
type Series []float64

// MarshalJSON реализует json.Marshaler
func (s Series) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	buf.Grow(len(s) * 8)
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON реализует json.Unmarshaler
func (s *Series) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Series, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	*s = out
	return nil
}

// FiniteAt сообщает, является ли отсчет i конечным числом
func (s Series) FiniteAt(i int) bool {
	v := s[i]
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
