package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/JakeFAU/leaderboard-crawler/internal/leaderboard"
)

// File formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

var csvHeader = []string{
	"name", "tagline", "tags", "upvotes", "comment_count",
	"product_url", "week", "year", "comments_list",
}

// File writes products to a local file. JSON output is a single array that
// is complete only after Close; JSONL and CSV stream one row per product.
type File struct {
	mu     sync.Mutex
	path   string
	format string
	f      *os.File
	w      *bufio.Writer
	csv    *csv.Writer
	count  int
}

// NewFile creates (or truncates) path and prepares it for format.
func NewFile(path, format string) (*File, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case FormatJSON, FormatJSONL, FormatCSV:
	case "":
		format = FormatJSON
	default:
		return nil, fmt.Errorf("unsupported file format %q", format)
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("file path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	// #nosec G304 -- output path comes from operator configuration.
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	s := &File{path: path, format: format, f: f, w: bufio.NewWriter(f)}
	switch format {
	case FormatJSON:
		_, err = s.w.WriteString("[")
	case FormatCSV:
		s.csv = csv.NewWriter(s.w)
		err = s.csv.Write(csvHeader)
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return s, nil
}

// Path returns the output file location.
func (s *File) Path() string {
	return s.path
}

// Write appends p.
func (s *File) Write(ctx context.Context, p leaderboard.Product) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("file sink is closed")
	}

	switch s.format {
	case FormatCSV:
		row, err := csvRow(p)
		if err != nil {
			return err
		}
		if err := s.csv.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal product: %w", err)
		}
		if s.format == FormatJSON {
			sep := "\n  "
			if s.count > 0 {
				sep = ",\n  "
			}
			if _, err := s.w.WriteString(sep); err != nil {
				return fmt.Errorf("write %s: %w", s.path, err)
			}
		}
		if _, err := s.w.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", s.path, err)
		}
		if s.format == FormatJSONL {
			if err := s.w.WriteByte('\n'); err != nil {
				return fmt.Errorf("write %s: %w", s.path, err)
			}
		}
	}
	s.count++
	return nil
}

func csvRow(p leaderboard.Product) ([]string, error) {
	comments := p.Comments
	if comments == nil {
		comments = []leaderboard.Comment{}
	}
	commentsJSON, err := json.Marshal(comments)
	if err != nil {
		return nil, fmt.Errorf("marshal comments: %w", err)
	}
	return []string{
		p.Name,
		p.Tagline,
		strings.Join(p.Tags, "|"),
		p.Upvotes,
		p.CommentCount,
		p.ProductURL,
		strconv.Itoa(p.Week),
		strconv.Itoa(p.Year),
		string(commentsJSON),
	}, nil
}

// Close finishes the document and closes the file. It is safe to call twice.
func (s *File) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	var errs []error
	switch s.format {
	case FormatJSON:
		tail := "]\n"
		if s.count > 0 {
			tail = "\n]\n"
		}
		if _, err := s.w.WriteString(tail); err != nil {
			errs = append(errs, err)
		}
	case FormatCSV:
		s.csv.Flush()
		if err := s.csv.Error(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.w.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := s.f.Close(); err != nil {
		errs = append(errs, err)
	}
	s.f = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}
