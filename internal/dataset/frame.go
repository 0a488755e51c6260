// Package dataset читает CSV файлы run: одна строка на отсчет,
// колонка index, колонки метрик и probe-колонки.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"vizlab-service/internal/models"
)

// IndexColumn колонка с номером отсчета
const IndexColumn = "index"

// Frame содержимое файла run. Колонки разбираются в числа по запросу,
// поэтому нечисловая посторонняя колонка не мешает читать метрики.
type Frame struct {
	path    string
	header  []string
	columns map[string]int
	rows    [][]string
}

// ReadFrame читает CSV файл целиком
func ReadFrame(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", models.ErrMalformedData, path, err)
	}
	defer f.Close()

	return parseFrame(path, f)
}

func parseFrame(path string, r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %s: empty file", models.ErrMalformedData, path)
		}
		return nil, fmt.Errorf("%w: %s: header: %v", models.ErrMalformedData, path, err)
	}

	fr := &Frame{
		path:    path,
		header:  make([]string, len(header)),
		columns: make(map[string]int, len(header)),
	}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		fr.header[i] = h
		if _, dup := fr.columns[h]; !dup {
			fr.columns[h] = i
		}
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrMalformedData, path, err)
		}
		fr.rows = append(fr.rows, rec)
	}
	return fr, nil
}

// Len возвращает количество строк
func (f *Frame) Len() int {
	return len(f.rows)
}

// Columns возвращает заголовок файла
func (f *Frame) Columns() []string {
	return append([]string(nil), f.header...)
}

// Has сообщает, есть ли колонка
func (f *Frame) Has(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Column разбирает колонку в последовательность чисел в порядке строк.
// Пустые ячейки и nan дают NaN, любой другой нечисловой текст - ErrMalformedData.
func (f *Frame) Column(name string) ([]float64, error) {
	idx, ok := f.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: column %q in %s", models.ErrNotFound, name, f.path)
	}

	out := make([]float64, len(f.rows))
	for i, row := range f.rows {
		v, err := parseCell(row, idx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: column %q row %d: %v", models.ErrMalformedData, f.path, name, i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// Index возвращает ось времени: колонку index, если она целочисленная,
// иначе номера строк
func (f *Frame) Index() []int {
	out := make([]int, len(f.rows))
	if col, err := f.Column(IndexColumn); err == nil {
		ok := true
		for i, v := range col {
			if math.IsNaN(v) || v != math.Trunc(v) {
				ok = false
				break
			}
			out[i] = int(v)
		}
		if ok {
			return out
		}
	}
	for i := range out {
		out[i] = i
	}
	return out
}

func parseCell(row []string, idx int) (float64, error) {
	if idx >= len(row) {
		return math.NaN(), nil
	}
	s := strings.TrimSpace(row[idx])
	switch strings.ToLower(s) {
	case "", "nan", "na", "null":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
