package params

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// The path addressor gives every consumer (optimizer, Monte Carlo,
// sensitivity sweeps) a single way to read or override one leaf of the tree
// without knowing its shape. The grammar is deliberately small: dot-separated
// segment names, where a segment may carry one non-negative index in
// brackets, e.g. "financing.interestRate" or "expenses[2].amount". Paths are
// a private contract between this package and its callers, not a stable
// public format.

type segment struct {
	name     string
	index    int
	hasIndex bool
}

// Path is a parsed leaf address.
type Path struct {
	raw      string
	segments []segment
}

// String returns the original path text.
func (p Path) String() string { return p.raw }

// ParsePath parses the closed path grammar. The resolved tree position is
// checked later, at Get/Set time, against a concrete tree.
func ParsePath(raw string) (Path, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Path{}, fmt.Errorf("path cannot be empty")
	}
	parts := strings.Split(trimmed, ".")
	segments := make([]segment, 0, len(parts))
	for _, part := range parts {
		seg := segment{name: part}
		if open := strings.IndexByte(part, '['); open >= 0 {
			if !strings.HasSuffix(part, "]") {
				return Path{}, fmt.Errorf("path %q: malformed index in segment %q", raw, part)
			}
			idx, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil || idx < 0 {
				return Path{}, fmt.Errorf("path %q: invalid index in segment %q", raw, part)
			}
			seg.name = part[:open]
			seg.index = idx
			seg.hasIndex = true
		}
		if seg.name == "" {
			return Path{}, fmt.Errorf("path %q: empty segment", raw)
		}
		segments = append(segments, seg)
	}
	return Path{raw: trimmed, segments: segments}, nil
}

// leaf walks the parsed path against the known tree shape and returns a
// pointer to the addressed parameter. Unknown or wrong-shaped paths fail
// loudly; the engine never silently reads zero for a typo.
func (t *ParameterTree) leaf(p Path) (*ScalarOrRange, error) {
	if len(p.segments) != 2 {
		return nil, fmt.Errorf("path %q: expected group.parameter", p.raw)
	}
	head, tail := p.segments[0], p.segments[1]
	if tail.hasIndex {
		return nil, fmt.Errorf("path %q: parameter segment cannot be indexed", p.raw)
	}

	if head.hasIndex {
		if head.name != "expenses" {
			return nil, fmt.Errorf("path %q: only the expenses list is indexable", p.raw)
		}
		if head.index >= len(t.Expenses) {
			return nil, fmt.Errorf("path %q: expense index %d out of range (%d lines)", p.raw, head.index, len(t.Expenses))
		}
		if tail.name != "amount" {
			return nil, fmt.Errorf("path %q: expense lines expose only the amount parameter", p.raw)
		}
		return &t.Expenses[head.index].Amount, nil
	}

	switch head.name {
	case "property":
		switch tail.name {
		case "purchasePrice":
			return &t.Property.PurchasePrice, nil
		case "municipalAssessment":
			return &t.Property.MunicipalAssessment, nil
		case "appreciationRate":
			return &t.Property.AppreciationRate, nil
		}
	case "financing":
		switch tail.name {
		case "downPayment":
			return &t.Financing.DownPayment, nil
		case "interestRate":
			return &t.Financing.InterestRate, nil
		case "amortizationYears":
			return &t.Financing.AmortizationYears, nil
		}
	case "revenue":
		switch tail.name {
		case "dailyRate":
			return &t.Revenue.DailyRate, nil
		case "occupancyRate":
			return &t.Revenue.OccupancyRate, nil
		case "daysPerYear":
			return &t.Revenue.DaysPerYear, nil
		}
	case "acquisition":
		switch tail.name {
		case "notaryFees":
			return &t.Acquisition.NotaryFees, nil
		case "otherFees":
			return &t.Acquisition.OtherFees, nil
		}
	}
	return nil, fmt.Errorf("path %q does not address a known parameter", p.raw)
}

// Get resolves a path to its effective value (the scalar-or-range rule).
func Get(t *ParameterTree, path string) (float64, error) {
	parsed, err := ParsePath(path)
	if err != nil {
		return 0, err
	}
	leaf, err := t.leaf(parsed)
	if err != nil {
		return 0, err
	}
	return leaf.Effective(), nil
}

// Set returns a deep copy of the tree with one leaf's effective value
// changed. The write lands in Range.Default when the leaf's range is active
// and in Value otherwise, so callers never inspect the leaf's shape first.
func Set(t *ParameterTree, path string, value float64) (*ParameterTree, error) {
	return Apply(t, map[string]float64{path: value})
}

// Apply clones the tree once and writes every override through the path
// addressor. This is the optimizer and Monte Carlo hot path: one copy per
// trial regardless of how many variables the trial touches.
func Apply(t *ParameterTree, overrides map[string]float64) (*ParameterTree, error) {
	out := t.Clone()
	// Deterministic application order keeps error reporting stable.
	paths := make([]string, 0, len(overrides))
	for path := range overrides {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		parsed, err := ParsePath(path)
		if err != nil {
			return nil, err
		}
		leaf, err := out.leaf(parsed)
		if err != nil {
			return nil, err
		}
		leaf.SetEffective(overrides[path])
	}
	return out, nil
}

// Leaf pairs a canonical path with a pointer to its parameter.
type Leaf struct {
	Path  string
	Param *ScalarOrRange
}

// Leaves enumerates every addressable parameter of the tree, including each
// expense line amount. The Monte Carlo extractor and tree validation walk
// the tree through this list; its paths are always resolvable by Get.
func Leaves(t *ParameterTree) []Leaf {
	leaves := []Leaf{
		{"property.purchasePrice", &t.Property.PurchasePrice},
		{"property.municipalAssessment", &t.Property.MunicipalAssessment},
		{"property.appreciationRate", &t.Property.AppreciationRate},
		{"financing.downPayment", &t.Financing.DownPayment},
		{"financing.interestRate", &t.Financing.InterestRate},
		{"financing.amortizationYears", &t.Financing.AmortizationYears},
		{"revenue.dailyRate", &t.Revenue.DailyRate},
		{"revenue.occupancyRate", &t.Revenue.OccupancyRate},
		{"revenue.daysPerYear", &t.Revenue.DaysPerYear},
		{"acquisition.notaryFees", &t.Acquisition.NotaryFees},
		{"acquisition.otherFees", &t.Acquisition.OtherFees},
	}
	// The expense list is the tree's one heterogeneous collection; it cannot
	// be walked generically by key so its amounts are appended structurally.
	for i := range t.Expenses {
		leaves = append(leaves, Leaf{
			Path:  fmt.Sprintf("expenses[%d].amount", i),
			Param: &t.Expenses[i].Amount,
		})
	}
	return leaves
}
