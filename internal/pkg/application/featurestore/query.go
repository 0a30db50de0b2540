package featurestore

import (
	"fmt"
	"strings"

	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/application/featurestore/filter"
	"github.com/Geomatys/geotoolkit-sub039/internal/pkg/domain"
)

type SortBy struct {
	Property   string
	Descending bool
}

// ParseSortBy understands "name", "-name", "+name" and "name DESC"
func ParseSortBy(value string) []SortBy {
	result := []SortBy{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		sb := SortBy{}
		fields := strings.Fields(part)
		if len(fields) == 2 {
			part = fields[0]
			sb.Descending = strings.EqualFold(fields[1], "DESC") || strings.EqualFold(fields[1], "D")
		}

		switch part[0] {
		case '-':
			sb.Descending = true
			part = part[1:]
		case '+':
			part = part[1:]
		}

		sb.Property = part
		result = append(result, sb)
	}
	return result
}

type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
)

// Join pairs each feature of the queried type with the features of
// TypeName whose RightProperty equals the feature's LeftProperty.
type Join struct {
	TypeName      string
	LeftProperty  string
	RightProperty string
	Kind          JoinKind
	Filter        filter.Filter
}

// Query describes what to read from a feature type. Zero values mean
// everything: no filter, all properties, store order, no paging and
// the native coordinate reference system.
type Query struct {
	TypeName    string
	Filter      filter.Filter
	Properties  []string
	SortBy      []SortBy
	StartIndex  int
	MaxFeatures int
	CRS         string
	Join        *Join
}

func NewQuery(typeName string) Query {
	return Query{TypeName: typeName}
}

func (q Query) Validate() error {
	if q.TypeName == "" {
		return fmt.Errorf("%w: no type name", ErrInvalidQuery)
	}
	if q.StartIndex < 0 {
		return fmt.Errorf("%w: negative start index %d", ErrInvalidQuery, q.StartIndex)
	}
	if q.MaxFeatures < 0 {
		return fmt.Errorf("%w: negative max features %d", ErrInvalidQuery, q.MaxFeatures)
	}
	if q.Join != nil && (q.Join.TypeName == "" || q.Join.LeftProperty == "" || q.Join.RightProperty == "") {
		return fmt.Errorf("%w: incomplete join", ErrInvalidQuery)
	}
	if q.CRS != "" {
		if _, err := domain.LookupCRS(q.CRS); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
	}
	return nil
}

// Unpaged returns the query without start index and max features
func (q Query) Unpaged() Query {
	q.StartIndex = 0
	q.MaxFeatures = 0
	return q
}

func (q Query) WithFilter(flt filter.Filter) Query {
	q.Filter = filter.AllOf(q.Filter, flt)
	return q
}
