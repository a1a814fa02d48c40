package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"dropcheck/internal/recommendation"
)

var BundleHeader = []string{"section", "kind", "title", "text"}

const (
	kindIntroduction   = "introduction"
	kindRecommendation = "recommendation"
	kindRationale      = "rationale"
)

// BundleFilename is the suggested download name for a bundle export.
func BundleFilename(testID, ext string) string {
	return fmt.Sprintf("dropcheck_recommendations_%s.%s", testID, ext)
}

// WriteBundleCSV writes one introduction row, one row per recommendation and
// one rationale row for each section, in bundle order.
func WriteBundleCSV(w io.Writer, b recommendation.Bundle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(BundleHeader); err != nil {
		return err
	}
	for _, s := range b.Sections() {
		rows := [][]string{{s.Name, kindIntroduction, "", s.Introduction}}
		for _, item := range s.Recommendations {
			rows = append(rows, []string{s.Name, kindRecommendation, item.Title, item.Description})
		}
		rows = append(rows, []string{s.Name, kindRationale, "", s.ScientificRationale})
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadBundleCSV rebuilds a bundle from WriteBundleCSV output. Sections must
// appear in bundle order and the result must pass bundle validation.
func ReadBundleCSV(r io.Reader) (recommendation.Bundle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(BundleHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return recommendation.Bundle{}, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if len(records) == 0 || strings.Join(records[0], ",") != strings.Join(BundleHeader, ",") {
		return recommendation.Bundle{}, fmt.Errorf("%w: missing bundle header", ErrBadFormat)
	}

	var b recommendation.Bundle
	next := 0
	var current string
	var section recommendation.Section

	flush := func() error {
		if current == "" {
			return nil
		}
		return b.SetSection(current, section)
	}

	for i, rec := range records[1:] {
		name, kind := rec[0], rec[1]
		if name != current {
			if err := flush(); err != nil {
				return recommendation.Bundle{}, err
			}
			if next >= len(recommendation.SectionOrder) || recommendation.SectionOrder[next] != name {
				return recommendation.Bundle{}, fmt.Errorf("%w: line %d: section %q out of order", ErrBadFormat, i+2, name)
			}
			next++
			current = name
			section = recommendation.Section{Recommendations: []recommendation.Item{}}
		}

		switch kind {
		case kindIntroduction:
			section.Introduction = rec[3]
		case kindRecommendation:
			section.Recommendations = append(section.Recommendations, recommendation.Item{Title: rec[2], Description: rec[3]})
		case kindRationale:
			section.ScientificRationale = rec[3]
		default:
			return recommendation.Bundle{}, fmt.Errorf("%w: line %d: unknown row kind %q", ErrBadFormat, i+2, kind)
		}
	}
	if err := flush(); err != nil {
		return recommendation.Bundle{}, err
	}
	if next != len(recommendation.SectionOrder) {
		return recommendation.Bundle{}, fmt.Errorf("%w: expected %d sections, found %d", ErrBadFormat, len(recommendation.SectionOrder), next)
	}
	if err := b.Validate(); err != nil {
		return recommendation.Bundle{}, err
	}
	return b, nil
}

// WriteBundleJSON writes the bundle in the same shape the model returns.
func WriteBundleJSON(w io.Writer, b recommendation.Bundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// ReadBundleJSON parses and validates a JSON bundle export.
func ReadBundleJSON(r io.Reader) (recommendation.Bundle, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return recommendation.Bundle{}, err
	}
	return recommendation.ParseBundle(string(raw))
}
