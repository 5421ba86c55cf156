package bundle

import (
	"encoding/csv"
	"io"
	"strconv"

	"soilsense/pkg/errors"
)

// WriteCentersCSV writes one row per cluster with its center in original units
func WriteCentersCSV(w io.Writer, b *Bundle) error {
	centers, err := b.CentersOriginal()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := append([]string{"cluster"}, b.Features...)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write centers header")
	}

	for c, center := range centers {
		record := make([]string, 0, len(center)+1)
		record = append(record, strconv.Itoa(c))
		for _, v := range center {
			record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "write center %d", c)
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flush centers csv")
}
