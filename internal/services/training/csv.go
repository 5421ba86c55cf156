package training

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"soilsense/internal/domain/soil"
	"soilsense/pkg/errors"
)

// ReadCSV parses a training table. The header must name all seven features;
// extra columns such as a crop label are ignored. Every feature cell must be a finite number.
func ReadCSV(r io.Reader) ([]soil.Sample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.Wrap(errors.ErrInsufficientData, "training table is empty")
		}
		return nil, errors.Wrap(err, "read csv header")
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	index := make([]int, soil.NumFeatures)
	shapeErr := &errors.InputShapeError{}
	for j, name := range soil.FeatureNames {
		i, ok := columns[name]
		if !ok {
			shapeErr.Add(name, "missing column", nil)
			continue
		}
		index[j] = i
	}
	if err := shapeErr.ToError(); err != nil {
		return nil, err
	}

	var samples []soil.Sample
	values := make([]float64, soil.NumFeatures)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read csv line %d", line)
		}

		for j, i := range index {
			cell := strings.TrimSpace(record[i])
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Wrapf(
					errors.NewInputShapeError(soil.FeatureNames[j], "must be a finite number", cell),
					"csv line %d", line,
				)
			}
			values[j] = v
		}

		fv, err := soil.FromSlice(values)
		if err != nil {
			return nil, err
		}
		samples = append(samples, soil.Sample{ID: int64(line - 1), FeatureVector: fv})
	}

	return samples, nil
}

// CSVSource reads samples from a file on every List call
type CSVSource struct {
	Path string
}

// List implements SampleSource
func (s CSVSource) List(ctx context.Context) ([]soil.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "open training table %s", s.Path)
	}
	defer f.Close()

	samples, err := ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", s.Path)
	}
	return samples, nil
}
