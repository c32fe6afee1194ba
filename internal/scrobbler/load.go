package scrobbler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"
)

// LoadRequests reads a request file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as CSV.
func LoadRequests(path string) ([]Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open request file: %w", err)
	}
	defer f.Close()

	var reqs []Request
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		reqs, err = ParseYAML(f)
	default:
		reqs, err = ParseCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reqs, nil
}

// ParseCSV reads rows of artist,track[,album[,count]]. A first row whose
// first column is "artist" is treated as a header. A missing or empty
// count means one play.
func ParseCSV(r io.Reader) ([]Request, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var reqs []Request
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}
		line++

		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "artist") {
			continue
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: expected at least artist and track", line)
		}

		req := Request{
			Artist: strings.TrimSpace(record[0]),
			Track:  strings.TrimSpace(record[1]),
			Count:  1,
		}
		if len(record) > 2 {
			req.Album = strings.TrimSpace(record[2])
		}
		if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
			count, err := strconv.Atoi(strings.TrimSpace(record[3]))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid count %q", line, record[3])
			}
			req.Count = count
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// yamlRequest keeps count optional so that a missing count means one play.
type yamlRequest struct {
	Artist string `yaml:"artist"`
	Track  string `yaml:"track"`
	Album  string `yaml:"album"`
	Count  *int   `yaml:"count"`
}

// ParseYAML reads a list of requests, either as a top-level sequence or
// under a "requests" key.
func ParseYAML(r io.Reader) ([]Request, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read yaml: %w", err)
	}

	var items []yamlRequest
	if err := yaml.Unmarshal(data, &items); err != nil {
		var doc struct {
			Requests []yamlRequest `yaml:"requests"`
		}
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
		items = doc.Requests
	}

	reqs := make([]Request, 0, len(items))
	for _, item := range items {
		req := Request{
			Artist: strings.TrimSpace(item.Artist),
			Track:  strings.TrimSpace(item.Track),
			Album:  strings.TrimSpace(item.Album),
			Count:  1,
		}
		if item.Count != nil {
			req.Count = *item.Count
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}
