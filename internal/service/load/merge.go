package load

import (
	"fmt"
	"strconv"
	"time"

	"icuts/internal/domain"
)

// timestampLayouts are the wire formats adapters are known to return for the
// obs_time alias, tried in order.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// merge concatenates the per-descriptor row sets into the normalized output
// schema, mapping each physical code back to its concept identifier through
// the catalog's reverse index. Row order follows descriptor order, and
// within a descriptor the adapter's row order.
func (s *Service) merge(database string, descriptors []domain.QueryDescriptor, rowSets [][]domain.Row) ([]domain.ResultRow, error) {
	var out []domain.ResultRow
	for i, d := range descriptors {
		for _, raw := range rowSets[i] {
			row, err := s.mergeRow(database, d, raw)
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Service) mergeRow(database string, d domain.QueryDescriptor, raw domain.Row) (domain.ResultRow, error) {
	code, err := codeString(raw["code"])
	if err != nil {
		return domain.ResultRow{}, fmt.Errorf("merge %s: %w", d.QualifiedTable(), err)
	}

	concept, err := s.catalog.ReverseLookup(database, d.Schema, d.Table, code)
	if err != nil {
		return domain.ResultRow{}, err
	}

	entity, err := toInt64(raw["entity_id"])
	if err != nil {
		return domain.ResultRow{}, fmt.Errorf("merge %s: entity_id: %w", d.QualifiedTable(), err)
	}

	ts, err := toTime(raw["obs_time"])
	if err != nil {
		return domain.ResultRow{}, fmt.Errorf("merge %s: obs_time: %w", d.QualifiedTable(), err)
	}

	row := domain.ResultRow{
		EntityID:    entity,
		Concept:     concept.Identifier,
		Timestamp:   ts,
		Unit:        toString(raw["unit"]),
		SourceTable: d.QualifiedTable(),
	}

	switch v := raw["value"].(type) {
	case nil:
		// Missing measurement value: keep the event, both value fields zero.
	case float64:
		row.Value = v
	case int64:
		row.Value = float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			row.Value = f
		} else {
			row.ValueText = v
		}
	default:
		row.ValueText = fmt.Sprint(v)
	}

	return row, nil
}

// codeString canonicalizes a scanned code value to the catalog's text form.
func codeString(v any) (string, error) {
	switch c := v.(type) {
	case int64:
		return strconv.FormatInt(c, 10), nil
	case string:
		return c, nil
	case float64:
		return strconv.FormatInt(int64(c), 10), nil
	default:
		return "", fmt.Errorf("unexpected code type %T", v)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected entity type %T", v)
	}
}

func toTime(v any) (time.Time, error) {
	switch ts := v.(type) {
	case time.Time:
		return ts, nil
	case string:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, ts); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", ts)
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
