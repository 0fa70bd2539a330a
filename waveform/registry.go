package waveform

import (
	"fmt"
	"sort"

	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/vlr"
)

// Registry holds the file's waveform packet descriptors keyed by the
// descriptor index points carry. It is built once per open and read-only
// after that.
//
// All descriptors in a supported file agree on bits per sample, sample
// count and temporal spacing, so the registry exposes one packet size and
// one sample spacing for the whole file.
type Registry struct {
	byIndex    map[uint8]Descriptor
	packetSize int
	spacing    uint32
}

// RegistryFromVLRs builds the registry from the file's VLR catalog.
//
// Records outside the reserved waveform descriptor id range are ignored. An
// empty registry is not an error; it means the file carries no waveform
// data and downstream waveform operations are no-ops.
func RegistryFromVLRs(vlrs []vlr.VLR) (*Registry, error) {
	var records []vlr.VLR
	for _, v := range vlrs {
		if vlr.IsWaveformDescriptor(v) {
			records = append(records, v)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RecordID < records[j].RecordID
	})

	reg := &Registry{byIndex: make(map[uint8]Descriptor, len(records))}
	var ref Descriptor
	for _, rec := range records {
		d, err := DecodeDescriptor(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("descriptor record %d: %w", rec.RecordID, err)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("descriptor record %d: %w", rec.RecordID, err)
		}

		if len(reg.byIndex) == 0 {
			ref = d
			size, err := d.PacketSize()
			if err != nil {
				return nil, err
			}
			reg.packetSize = size
			reg.spacing = d.TemporalSpacing
		} else if d.BitsPerSample != ref.BitsPerSample ||
			d.NumberOfSamples != ref.NumberOfSamples ||
			d.TemporalSpacing != ref.TemporalSpacing {
			return nil, fmt.Errorf("descriptor record %d disagrees with record %d: %w",
				rec.RecordID, records[0].RecordID, errs.ErrHeterogeneousDescriptors)
		}

		idx := uint8(rec.RecordID - vlr.WaveformDescriptorIDOffset)
		reg.byIndex[idx] = d
	}

	return reg, nil
}

// Empty reports whether the file has no waveform descriptors.
func (r *Registry) Empty() bool {
	return len(r.byIndex) == 0
}

// Len returns the number of descriptors.
func (r *Registry) Len() int {
	return len(r.byIndex)
}

// Descriptor returns the descriptor for the index a point carries. Index 0
// means "no waveform" and never resolves.
func (r *Registry) Descriptor(index uint8) (Descriptor, bool) {
	if index == 0 {
		return Descriptor{}, false
	}
	d, ok := r.byIndex[index]

	return d, ok
}

// PacketSize returns the fixed packet byte size shared by every
// descriptor. Zero for an empty registry.
func (r *Registry) PacketSize() int {
	return r.packetSize
}

// SampleSpacing returns the temporal sample spacing in picoseconds.
func (r *Registry) SampleSpacing() uint32 {
	return r.spacing
}

// ValidMask reports, per point, whether its descriptor index resolves to a
// registered descriptor.
func (r *Registry) ValidMask(indexes []uint8) []bool {
	mask := make([]bool, len(indexes))
	for i, idx := range indexes {
		_, mask[i] = r.Descriptor(idx)
	}

	return mask
}
