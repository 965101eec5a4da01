package model

import "fmt"

// ResizeMode selects the resize algorithm.
type ResizeMode uint8

const (
	ResizeNormal    ResizeMode = 0
	ResizeSeamCarve ResizeMode = 1
)

var resizeModeNames = map[ResizeMode]string{
	ResizeNormal:    "normal",
	ResizeSeamCarve: "seam_carve",
}

// Valid reports whether m is a declared mode.
func (m ResizeMode) Valid() bool {
	_, ok := resizeModeNames[m]
	return ok
}

func (m ResizeMode) String() string {
	if name, ok := resizeModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("resize_mode(%d)", uint8(m))
}

func (m ResizeMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid resize mode %d", uint8(m))
	}
	return []byte(m.String()), nil
}

func (m *ResizeMode) UnmarshalText(text []byte) error {
	v, err := lookup(resizeModeNames, string(text), "resize mode")
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// SampleFilter is the resampling filter used by a normal resize.
// Undefined is accepted and resamples with the nearest neighbour.
type SampleFilter uint8

const (
	SampleUndefined  SampleFilter = 0
	SampleNearest    SampleFilter = 1
	SampleTriangle   SampleFilter = 2
	SampleCatmullRom SampleFilter = 3
	SampleGaussian   SampleFilter = 4
	SampleLanczos3   SampleFilter = 5
)

var sampleFilterNames = map[SampleFilter]string{
	SampleUndefined:  "undefined",
	SampleNearest:    "nearest",
	SampleTriangle:   "triangle",
	SampleCatmullRom: "catmull_rom",
	SampleGaussian:   "gaussian",
	SampleLanczos3:   "lanczos3",
}

// Valid reports whether f is a declared sample filter.
func (f SampleFilter) Valid() bool {
	_, ok := sampleFilterNames[f]
	return ok
}

func (f SampleFilter) String() string {
	if name, ok := sampleFilterNames[f]; ok {
		return name
	}
	return fmt.Sprintf("sample_filter(%d)", uint8(f))
}

func (f SampleFilter) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid sample filter %d", uint8(f))
	}
	return []byte(f.String()), nil
}

func (f *SampleFilter) UnmarshalText(text []byte) error {
	v, err := lookup(sampleFilterNames, string(text), "sample filter")
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// FilterKind is a named color filter. Values are appended, never renumbered.
type FilterKind uint8

const (
	FilterUnspecified FilterKind = 0
	FilterOceanic     FilterKind = 1
	FilterIslands     FilterKind = 2
	FilterMarine      FilterKind = 3
	FilterGrayscale   FilterKind = 4
	FilterSepia       FilterKind = 5
	FilterInvert      FilterKind = 6
)

var filterKindNames = map[FilterKind]string{
	FilterUnspecified: "unspecified",
	FilterOceanic:     "oceanic",
	FilterIslands:     "islands",
	FilterMarine:      "marine",
	FilterGrayscale:   "grayscale",
	FilterSepia:       "sepia",
	FilterInvert:      "invert",
}

// FilterKinds returns every declared filter kind in numeric order.
func FilterKinds() []FilterKind {
	kinds := make([]FilterKind, 0, len(filterKindNames))
	for k := FilterKind(0); int(k) < len(filterKindNames); k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// SampleFilters returns every declared sample filter in numeric order.
func SampleFilters() []SampleFilter {
	filters := make([]SampleFilter, 0, len(sampleFilterNames))
	for f := SampleFilter(0); int(f) < len(sampleFilterNames); f++ {
		filters = append(filters, f)
	}
	return filters
}

// Valid reports whether k is a declared filter kind.
func (k FilterKind) Valid() bool {
	_, ok := filterKindNames[k]
	return ok
}

func (k FilterKind) String() string {
	if name, ok := filterKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("filter(%d)", uint8(k))
}

func (k FilterKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid filter kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *FilterKind) UnmarshalText(text []byte) error {
	v, err := lookup(filterKindNames, string(text), "filter kind")
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func lookup[T comparable](names map[T]string, name, what string) (T, error) {
	for v, n := range names {
		if n == name {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q", what, name)
}
