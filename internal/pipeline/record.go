package pipeline

import (
	"fmt"

	"github.com/aliskhannn/image-proxy/internal/model"
)

// Document is the serialized form of a pipeline.
//
// Every struct below uses integer map keys. A key, once assigned, keeps its
// meaning forever: new transform kinds get new Record keys and new fields get
// new keys inside their record, so tokens issued earlier keep decoding to the
// same pipeline.
type Document struct {
	Specs []Record `cbor:"1,keyasint" json:"specs"`
}

// Record holds exactly one transform.
type Record struct {
	Resize    *ResizeRecord    `cbor:"1,keyasint,omitempty" json:"resize,omitempty"`
	Crop      *CropRecord      `cbor:"2,keyasint,omitempty" json:"crop,omitempty"`
	Filter    *FilterRecord    `cbor:"3,keyasint,omitempty" json:"filter,omitempty"`
	Watermark *WatermarkRecord `cbor:"4,keyasint,omitempty" json:"watermark,omitempty"`
}

type ResizeRecord struct {
	Width  uint32             `cbor:"1,keyasint" json:"width"`
	Height uint32             `cbor:"2,keyasint" json:"height"`
	Mode   model.ResizeMode   `cbor:"3,keyasint" json:"mode"`
	Filter model.SampleFilter `cbor:"4,keyasint" json:"filter"`
}

type CropRecord struct {
	X0 uint32 `cbor:"1,keyasint" json:"x0"`
	Y0 uint32 `cbor:"2,keyasint" json:"y0"`
	X1 uint32 `cbor:"3,keyasint" json:"x1"`
	Y1 uint32 `cbor:"4,keyasint" json:"y1"`
}

type FilterRecord struct {
	Kind model.FilterKind `cbor:"1,keyasint" json:"kind"`
}

type WatermarkRecord struct {
	X uint32 `cbor:"1,keyasint" json:"x"`
	Y uint32 `cbor:"2,keyasint" json:"y"`
}

// ToRecords converts a pipeline into its serializable records.
func ToRecords(p model.Pipeline) ([]Record, error) {
	records := make([]Record, 0, len(p))

	for i, spec := range p {
		var r Record

		switch s := spec.(type) {
		case model.Resize:
			r.Resize = &ResizeRecord{Width: s.Width, Height: s.Height, Mode: s.Mode, Filter: s.Filter}
		case model.Crop:
			r.Crop = &CropRecord{X0: s.X0, Y0: s.Y0, X1: s.X1, Y1: s.Y1}
		case model.ColorFilter:
			r.Filter = &FilterRecord{Kind: s.Filter}
		case model.Watermark:
			r.Watermark = &WatermarkRecord{X: s.X, Y: s.Y}
		default:
			return nil, fmt.Errorf("spec %d: unsupported transform %T", i, spec)
		}

		records = append(records, r)
	}

	return records, nil
}

// FromRecords converts records back into a pipeline and validates it.
// A record with no transform, or with more than one, is rejected.
func FromRecords(records []Record) (model.Pipeline, error) {
	p := make(model.Pipeline, 0, len(records))

	for i, r := range records {
		spec, err := r.spec()
		if err != nil {
			return nil, fmt.Errorf("spec %d: %w", i, err)
		}
		p = append(p, spec)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

func (r Record) spec() (model.TransformSpec, error) {
	var (
		spec model.TransformSpec
		n    int
	)

	if r.Resize != nil {
		n++
		spec = model.Resize{Width: r.Resize.Width, Height: r.Resize.Height, Mode: r.Resize.Mode, Filter: r.Resize.Filter}
	}
	if r.Crop != nil {
		n++
		spec = model.Crop{X0: r.Crop.X0, Y0: r.Crop.Y0, X1: r.Crop.X1, Y1: r.Crop.Y1}
	}
	if r.Filter != nil {
		n++
		spec = model.ColorFilter{Filter: r.Filter.Kind}
	}
	if r.Watermark != nil {
		n++
		spec = model.Watermark{X: r.Watermark.X, Y: r.Watermark.Y}
	}

	switch n {
	case 0:
		return nil, fmt.Errorf("no transform in record")
	case 1:
		return spec, nil
	default:
		return nil, fmt.Errorf("record holds %d transforms, want 1", n)
	}
}
