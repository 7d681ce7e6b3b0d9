package cities

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	dErrors "agora/pkg/domain-errors"
)

// ImportResult summarizes a CSV import run.
type ImportResult struct {
	Imported        int
	SkippedCounties int
}

// ImportCSV reads `County,City` rows and upserts each known-county city.
// Rows naming an unknown county are counted and skipped; a malformed row
// aborts the import with a validation error naming the line.
func ImportCSV(ctx context.Context, store Store, r io.Reader, logger *slog.Logger) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2

	var result ImportResult
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return result, dErrors.Wrap(err, dErrors.CodeValidation,
				fmt.Sprintf("malformed CSV row at line %d", line))
		}
		county := strings.TrimSpace(record[0])
		name := strings.TrimSpace(record[1])

		// Header row.
		if line == 1 && strings.EqualFold(county, "County") && strings.EqualFold(name, "City") {
			continue
		}
		if county == "" || name == "" {
			return result, dErrors.Newf(dErrors.CodeValidation,
				"empty county or city at line %d", line)
		}
		if !knownCounty(county) {
			result.SkippedCounties++
			if logger != nil {
				logger.Debug("skipping unknown county", "county", county, "line", line)
			}
			continue
		}
		if err := store.Upsert(ctx, City{Name: name, County: county}); err != nil {
			return result, dErrors.Wrap(err, dErrors.CodeInternal, "store city")
		}
		result.Imported++
	}
	return result, nil
}
