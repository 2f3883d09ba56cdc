// Package scenario defines the data-driven test-case records and the
// per-scenario report handed to downstream sinks.
package scenario

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fareprobe/internal/resolve"
)

// Case is one data-driven scenario record.
type Case struct {
	TestID        string  `json:"test_id"`
	Description   string  `json:"description"`
	FromCity      string  `json:"from_city"`
	ToCity        string  `json:"to_city"`
	DepartureDate string  `json:"departure_date"` // YYYY-MM-DD
	StopsFilter   string  `json:"stops_filter"`
	PriceMin      float64 `json:"price_min"`
	PriceMax      float64 `json:"price_max"`
}

// FormDate converts the record's YYYY-MM-DD date to the DD/MM/YYYY format
// the search form expects.
func (c Case) FormDate() (string, error) {
	parts := strings.Split(strings.TrimSpace(c.DepartureDate), "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("departure date %q: want YYYY-MM-DD", c.DepartureDate)
	}
	return fmt.Sprintf("%s/%s/%s", parts[2], parts[1], parts[0]), nil
}

// Validate checks the record is usable before a browser ever opens.
func (c Case) Validate() error {
	if strings.TrimSpace(c.TestID) == "" {
		return fmt.Errorf("missing test_id")
	}
	if strings.TrimSpace(c.FromCity) == "" || strings.TrimSpace(c.ToCity) == "" {
		return fmt.Errorf("%s: missing from_city or to_city", c.TestID)
	}
	if c.PriceMin > c.PriceMax {
		return fmt.Errorf("%s: price_min %v exceeds price_max %v", c.TestID, c.PriceMin, c.PriceMax)
	}
	if _, err := c.FormDate(); err != nil {
		return fmt.Errorf("%s: %w", c.TestID, err)
	}
	return nil
}

// Report is the terminal per-scenario record. Rendering (Excel, HTML) is
// entirely external; this is the machine-readable contract.
type Report struct {
	TestID        string         `json:"test_id"`
	Description   string         `json:"description,omitempty"`
	Origin        resolve.Result `json:"resolved_origin"`
	Destination   resolve.Result `json:"resolved_destination"`
	BeforeCount   int            `json:"before_count"`
	AfterCount    int            `json:"after_count"`
	OffersChecked int            `json:"offers_checked"`
	OffersPassed  int            `json:"offers_passed"`
	OffersFailed  int            `json:"offers_failed"`
	Status        string         `json:"status"` // PASS, FAIL, ERROR
	Reason        string         `json:"reason,omitempty"`
}

// Load reads test cases from a JSONL or CSV file, chosen by extension.
func Load(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cases: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return LoadCSV(f)
	}
	return LoadJSONL(f)
}

// LoadJSONL reads one JSON case object per line, skipping blanks.
func LoadJSONL(r io.Reader) ([]Case, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var cases []Case
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var c Case
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	return cases, nil
}

// LoadCSV reads cases from a CSV with a header row naming the same fields
// as the JSON form.
func LoadCSV(r io.Reader) ([]Case, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}

	get := func(rec []string, name string) string {
		if i, ok := col[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var cases []Case
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		c := Case{
			TestID:        get(rec, "test_id"),
			Description:   get(rec, "description"),
			FromCity:      get(rec, "from_city"),
			ToCity:        get(rec, "to_city"),
			DepartureDate: get(rec, "departure_date"),
			StopsFilter:   get(rec, "stops_filter"),
		}
		if v := get(rec, "price_min"); v != "" {
			if c.PriceMin, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("%s: price_min: %w", c.TestID, err)
			}
		}
		if v := get(rec, "price_max"); v != "" {
			if c.PriceMax, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("%s: price_max: %w", c.TestID, err)
			}
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}
