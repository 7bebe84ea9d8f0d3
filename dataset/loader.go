package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"unicode"

	"carprice/logging"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	textunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	DefaultMileageColumn = "km"
	DefaultPriceColumn   = "price"
)

type loaderOptions struct {
	logger        *zap.Logger
	mileageColumn string
	priceColumn   string
	delimiter     rune
	encoding      string
	rules         []RowRule
}

type Option func(*loaderOptions)

func WithLogger(logger *zap.Logger) Option {
	return func(o *loaderOptions) {
		o.logger = logger
	}
}

// WithColumns overrides the header names of the mileage and price columns.
func WithColumns(mileage, price string) Option {
	return func(o *loaderOptions) {
		o.mileageColumn = mileage
		o.priceColumn = price
	}
}

func WithDelimiter(delimiter rune) Option {
	return func(o *loaderOptions) {
		o.delimiter = delimiter
	}
}

// WithEncoding decodes the source with a WHATWG encoding label such as "windows-1252" or "gbk".
func WithEncoding(name string) Option {
	return func(o *loaderOptions) {
		o.encoding = name
	}
}

// WithRule appends a rule after the default ones.
func WithRule(rule RowRule) Option {
	return func(o *loaderOptions) {
		o.rules = append(o.rules, rule)
	}
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string, opts ...Option) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("file '%s': %w", path, ErrSourceNotFound)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("file '%s': %w", path, ErrPermissionDenied)
		default:
			return nil, fmt.Errorf("open dataset: %w", err)
		}
	}
	defer file.Close()

	return Load(file, path, opts...)
}

// Load parses delimited text from r. Rows that fail to parse or fail a rule are skipped
// and reported; schema problems and an empty result are returned as errors.
func Load(r io.Reader, name string, opts ...Option) (*Dataset, error) {
	options := loaderOptions{
		mileageColumn: DefaultMileageColumn,
		priceColumn:   DefaultPriceColumn,
		delimiter:     ',',
		encoding:      "utf-8",
		rules:         DefaultRules(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	logger := logging.OrNop(options.logger).With(zap.String("source", name))

	decoded, err := decodeReader(r, options.encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(decoded)
	reader.Comma = options.delimiter
	reader.FieldsPerRecord = -1
	// with a whitespace delimiter the csv reader would swallow empty fields; values are
	// trimmed in parseRow instead
	reader.TrimLeadingSpace = !unicode.IsSpace(options.delimiter)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: missing header row: %w", name, ErrSchema)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}

	xIdx, yIdx, err := columnIndexes(header, options.mileageColumn, options.priceColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	b := newBuilder(name, options.rules)
	b.onSkip = func(issue RowIssue) {
		logger.Warn("skipping row",
			zap.Int("row", issue.Row),
			zap.String("rule", issue.Rule),
			zap.String("reason", issue.Reason))
	}

	// header is row 1
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				b.add(rowResult{row: row, issue: &RowIssue{Row: row, Rule: "parse", Reason: parseErr.Err.Error()}})
				continue
			}
			return nil, fmt.Errorf("%s: read row %d: %w", name, row, err)
		}
		b.add(parseRow(row, record, xIdx, yIdx))
	}

	dataset, err := b.build()
	if err != nil {
		return nil, err
	}
	logger.Debug("dataset loaded",
		zap.Int("accepted", dataset.stats.Accepted),
		zap.Int("skipped", dataset.stats.Skipped))
	return dataset, nil
}

func decodeReader(r io.Reader, name string) (io.Reader, error) {
	if name == "" {
		name = "utf-8"
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	// BOMOverride strips a UTF-8 BOM and honours UTF-16 BOMs before falling back to enc.
	return transform.NewReader(r, textunicode.BOMOverride(enc.NewDecoder())), nil
}

func columnIndexes(header []string, mileage, price string) (int, int, error) {
	xIdx, yIdx := -1, -1
	for i, column := range header {
		column = strings.TrimSpace(column)
		if column == mileage && xIdx == -1 {
			xIdx = i
		}
		if column == price && yIdx == -1 {
			yIdx = i
		}
	}

	var missing []string
	if xIdx == -1 {
		missing = append(missing, mileage)
	}
	if yIdx == -1 {
		missing = append(missing, price)
	}
	if len(missing) > 0 {
		return -1, -1, fmt.Errorf("CSV must contain '%s' and '%s' columns, missing %s: %w",
			mileage, price, strings.Join(missing, ", "), ErrSchema)
	}
	return xIdx, yIdx, nil
}

func parseRow(row int, record []string, xIdx, yIdx int) rowResult {
	if xIdx >= len(record) || yIdx >= len(record) {
		return rowResult{row: row, issue: &RowIssue{
			Row:    row,
			Rule:   "parse",
			Reason: fmt.Sprintf("expected at least %d fields, got %d", max(xIdx, yIdx)+1, len(record)),
		}}
	}

	x, err := strconv.ParseFloat(strings.TrimSpace(record[xIdx]), 64)
	if err != nil {
		return rowResult{row: row, issue: &RowIssue{Row: row, Rule: "parse", Reason: fmt.Sprintf("invalid km %q", record[xIdx])}}
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(record[yIdx]), 64)
	if err != nil {
		return rowResult{row: row, issue: &RowIssue{Row: row, Rule: "parse", Reason: fmt.Sprintf("invalid price %q", record[yIdx])}}
	}
	return rowResult{row: row, sample: Sample{X: x, Y: y}}
}
