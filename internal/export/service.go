package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/thomst/searchkit/internal/domain"
	"github.com/thomst/searchkit/internal/query"
	"github.com/thomst/searchkit/internal/repository"
)

// Format selects the export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnknownFormat is returned for a format other than csv or xlsx.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat maps a user-supplied format string to a Format. An empty
// string defaults to CSV.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, value)
	}
}

// ContentType returns the MIME type for download responses.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// ResultSource applies a compiled predicate and returns the matching rows.
type ResultSource interface {
	Apply(ctx context.Context, model string, p *query.Predicate) (query.ResultSet, error)
}

// Service streams the result rows of a saved search as a downloadable file.
type Service struct {
	searches repository.SearchRepository
	results  ResultSource
	now      func() time.Time
}

// NewService creates a new export service
func NewService(searches repository.SearchRepository, results ResultSource) *Service {
	return &Service{
		searches: searches,
		results:  results,
		now:      time.Now,
	}
}

// Export runs the saved search and writes its result rows to w in the
// given format. It returns the suggested file name.
func (s *Service) Export(ctx context.Context, searchID uuid.UUID, format Format, w io.Writer) (string, error) {
	search, err := s.searches.GetByID(ctx, searchID)
	if err != nil {
		return "", err
	}

	result, err := s.results.Apply(ctx, search.Model, query.Compile(search.Rules))
	if err != nil {
		return "", err
	}

	switch format {
	case FormatCSV:
		err = writeCSV(w, result)
	case FormatXLSX:
		err = writeXLSX(w, result)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return "", err
	}
	return s.fileName(search, format), nil
}

func (s *Service) fileName(search domain.Search, format Format) string {
	name := sanitizeFileComponent(search.Name)
	stamp := s.now().UTC().Format("20060102-150405")
	return fmt.Sprintf("%s_%s.%s", name, stamp, format)
}

func writeCSV(w io.Writer, result query.ResultSet) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(result.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i, column := range result.Columns {
			record[i] = formatValue(row[column])
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, result query.ResultSet) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	header := make([]any, len(result.Columns))
	for i, column := range result.Columns {
		header[i] = column
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, row := range result.Rows {
		record := make([]any, len(result.Columns))
		for j, column := range result.Columns {
			record[j] = cellValue(row[column])
		}
		if err := setRow(f, sheet, i+2, record); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

// cellValue keeps types excelize can render natively and stringifies the
// rest, so numeric columns stay numeric in the workbook.
func cellValue(value any) any {
	switch value.(type) {
	case nil:
		return ""
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64, string, time.Time:
		return value
	default:
		return formatValue(value)
	}
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "export"
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "export"
	}
	return result
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	// time.Time implements fmt.Stringer, so it must be matched first to
	// keep timestamps in RFC3339 instead of Go's debug format.
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	case float32, float64, int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%v", v)
	case []byte:
		return string(v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
