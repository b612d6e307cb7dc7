// Package fqp implements the FQP container: a little-endian binary file
// holding prepared per-layer requantization plans (scales, zero points,
// multiplier mantissa and shift) keyed by layer name. Plans are computed once
// at model-preparation time and read back by inference tooling without
// recomputation.
package fqp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/samcharles93/fixq/pkg/qparams"
	"github.com/samcharles93/fixq/pkg/requant"
)

const (
	// Magic is the 4-byte file signature, "FQP1" little-endian.
	Magic uint32 = 0x31505146

	Version uint32 = 1

	headerSize = 16
	recordSize = 64
)

// LayerRecord is the prepared requantization state for one layer.
// On disk it is a fixed 64-byte record plus a name slice into the trailing
// string blob.
type LayerRecord struct {
	Name string

	FanIn    uint32
	Shift    uint32
	Mantissa int64

	WScale float64
	XScale float64
	YScale float64

	WZero int32
	XZero int32
	YZero int32
}

// FromPlan converts a prepared plan into its on-disk record.
func FromPlan(name string, pl *requant.Plan) LayerRecord {
	return LayerRecord{
		Name:     name,
		FanIn:    uint32(pl.FanIn),
		Shift:    uint32(pl.Mult.Shift),
		Mantissa: pl.Mult.Mantissa,
		WScale:   pl.Weights.Scale,
		XScale:   pl.Input.Scale,
		YScale:   pl.Output.Scale,
		WZero:    pl.Weights.ZeroPoint,
		XZero:    pl.Input.ZeroPoint,
		YZero:    pl.Output.ZeroPoint,
	}
}

// Plan reconstructs the in-memory plan from the stored record. The stored
// mantissa and shift are used as-is; nothing is re-derived.
func (r LayerRecord) Plan() *requant.Plan {
	w := qparams.Params{Scale: r.WScale, ZeroPoint: r.WZero}
	x := qparams.Params{Scale: r.XScale, ZeroPoint: r.XZero}
	y := qparams.Params{Scale: r.YScale, ZeroPoint: r.YZero}
	return &requant.Plan{
		Weights:         w,
		Input:           x,
		Output:          y,
		M:               w.Scale * x.Scale / y.Scale,
		Mult:            requant.Candidate{Shift: uint(r.Shift), Mantissa: r.Mantissa},
		FanIn:           int(r.FanIn),
		AccumulatorBits: requant.AccumulatorBits(int(r.FanIn)),
	}
}

func (r LayerRecord) validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: empty layer name", ErrCorruptFile)
	}
	if r.FanIn == 0 {
		return fmt.Errorf("%w: layer %q has zero fan-in", ErrCorruptFile, r.Name)
	}
	if r.Mantissa < 0 {
		return fmt.Errorf("%w: layer %q has negative mantissa", ErrCorruptFile, r.Name)
	}
	for _, s := range []float64{r.WScale, r.XScale, r.YScale} {
		if !(s > 0) || math.IsInf(s, 1) {
			return fmt.Errorf("%w: layer %q has non-positive scale", ErrCorruptFile, r.Name)
		}
	}
	return nil
}

// File is a parsed view over FQP bytes. The backing data may be an mmap,
// released by Close; records are decoded copies and stay valid afterwards.
type File struct {
	data    []byte
	records []LayerRecord
	byName  map[string]int
	mmapped bool
}

// Count returns the number of layer records.
func (f *File) Count() int {
	if f == nil {
		return 0
	}
	return len(f.records)
}

// Record returns the i-th layer record.
func (f *File) Record(i int) (LayerRecord, error) {
	if f == nil || i < 0 || i >= len(f.records) {
		return LayerRecord{}, ErrCorruptFile
	}
	return f.records[i], nil
}

// Records returns all layer records in file order.
func (f *File) Records() []LayerRecord {
	if f == nil {
		return nil
	}
	return f.records
}

// Layer looks up a record by exact layer name. Names form an explicit table;
// there is no substring or pattern matching.
func (f *File) Layer(name string) (LayerRecord, bool) {
	if f == nil {
		return LayerRecord{}, false
	}
	i, ok := f.byName[name]
	if !ok {
		return LayerRecord{}, false
	}
	return f.records[i], true
}

// Encode builds an FQP payload: header, fixed-size records, name blob.
func Encode(records []LayerRecord) ([]byte, error) {
	if len(records) > int(^uint32(0)) {
		return nil, errors.New("fqp: too many layer records")
	}

	blobLen := 0
	for _, r := range records {
		if err := r.validate(); err != nil {
			return nil, err
		}
		blobLen += len(r.Name)
	}
	if blobLen > int(^uint32(0)) {
		return nil, errors.New("fqp: name blob too large")
	}

	total := headerSize + len(records)*recordSize + blobLen
	out := make([]byte, total)
	binary.LittleEndian.PutUint32(out[0:4], Magic)
	binary.LittleEndian.PutUint32(out[4:8], Version)
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(records)))
	binary.LittleEndian.PutUint32(out[12:16], uint32(blobLen))

	nameOff := 0
	blobStart := headerSize + len(records)*recordSize
	for i, r := range records {
		off := headerSize + i*recordSize
		binary.LittleEndian.PutUint32(out[off+0:off+4], uint32(nameOff))
		binary.LittleEndian.PutUint32(out[off+4:off+8], uint32(len(r.Name)))
		binary.LittleEndian.PutUint32(out[off+8:off+12], r.FanIn)
		binary.LittleEndian.PutUint32(out[off+12:off+16], r.Shift)
		binary.LittleEndian.PutUint64(out[off+16:off+24], uint64(r.Mantissa))
		binary.LittleEndian.PutUint64(out[off+24:off+32], math.Float64bits(r.WScale))
		binary.LittleEndian.PutUint64(out[off+32:off+40], math.Float64bits(r.XScale))
		binary.LittleEndian.PutUint64(out[off+40:off+48], math.Float64bits(r.YScale))
		binary.LittleEndian.PutUint32(out[off+48:off+52], uint32(r.WZero))
		binary.LittleEndian.PutUint32(out[off+52:off+56], uint32(r.XZero))
		binary.LittleEndian.PutUint32(out[off+56:off+60], uint32(r.YZero))
		// out[off+60:off+64] reserved, zero.

		copy(out[blobStart+nameOff:], r.Name)
		nameOff += len(r.Name)
	}

	return out, nil
}

// Parse validates FQP bytes and returns a view over them.
func Parse(data []byte) (*File, error) {
	return parse(data, false)
}

func parse(data []byte, mmapped bool) (*File, error) {
	if len(data) < headerSize {
		return nil, ErrCorruptFile
	}
	if binary.LittleEndian.Uint32(data[0:4]) != Magic {
		return nil, ErrInvalidMagic
	}
	if binary.LittleEndian.Uint32(data[4:8]) != Version {
		return nil, ErrUnsupportedVersion
	}
	count := binary.LittleEndian.Uint32(data[8:12])
	blobLen := binary.LittleEndian.Uint32(data[12:16])

	recBytes, ok := mulUint64(uint64(count), recordSize)
	if !ok {
		return nil, ErrCorruptFile
	}
	need := uint64(headerSize) + recBytes + uint64(blobLen)
	if need != uint64(len(data)) {
		return nil, ErrCorruptFile
	}

	blobStart := headerSize + int(count)*recordSize
	blob := data[blobStart:]

	records := make([]LayerRecord, 0, count)
	byName := make(map[string]int, count)
	for i := 0; i < int(count); i++ {
		off := headerSize + i*recordSize
		nameOff := binary.LittleEndian.Uint32(data[off+0 : off+4])
		nameLen := binary.LittleEndian.Uint32(data[off+4 : off+8])
		if uint64(nameOff)+uint64(nameLen) > uint64(len(blob)) {
			return nil, ErrCorruptFile
		}

		r := LayerRecord{
			Name:     string(blob[nameOff : nameOff+nameLen]),
			FanIn:    binary.LittleEndian.Uint32(data[off+8 : off+12]),
			Shift:    binary.LittleEndian.Uint32(data[off+12 : off+16]),
			Mantissa: int64(binary.LittleEndian.Uint64(data[off+16 : off+24])),
			WScale:   math.Float64frombits(binary.LittleEndian.Uint64(data[off+24 : off+32])),
			XScale:   math.Float64frombits(binary.LittleEndian.Uint64(data[off+32 : off+40])),
			YScale:   math.Float64frombits(binary.LittleEndian.Uint64(data[off+40 : off+48])),
			WZero:    int32(binary.LittleEndian.Uint32(data[off+48 : off+52])),
			XZero:    int32(binary.LittleEndian.Uint32(data[off+52 : off+56])),
			YZero:    int32(binary.LittleEndian.Uint32(data[off+56 : off+60])),
		}
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, dup := byName[r.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate layer %q", ErrCorruptFile, r.Name)
		}
		byName[r.Name] = i
		records = append(records, r)
	}

	return &File{data: data, records: records, byName: byName, mmapped: mmapped}, nil
}

func mulUint64(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > ^uint64(0)/b {
		return 0, false
	}
	return a * b, true
}
