package volume

// Constants of the normalized encoding used for MAR model inputs and
// outputs: x = HU/1000*MARScale + MAROffset.
const (
	MARScale  = 0.192
	MAROffset = 0.192
)

// Provenance records where a volume's samples came from, which decides how
// they are brought back into HU for display.
type Provenance int

const (
	// ProvenanceDICOM volumes hold stored values calibrated by the rescale
	// slope and intercept only.
	ProvenanceDICOM Provenance = iota

	// ProvenanceModel volumes hold MAR model output in the normalized [0,1]
	// encoding, which needs the fixed HU inverse after slope/intercept.
	ProvenanceModel
)

func (p Provenance) String() string {
	if p == ProvenanceModel {
		return "model"
	}

	return "dicom"
}

// Rescale maps stored sample values to physical intensity:
// raw*slope + intercept.
func Rescale(raw []int, slope, intercept float64) []float32 {
	out := make([]float32, len(raw))
	for k, v := range raw {
		out[k] = float32(float64(v)*slope + intercept)
	}

	return out
}

// RescalePlane applies slope and intercept to every sample of p.
func RescalePlane(p *Plane, slope, intercept float64) *Plane {
	if slope == 1 && intercept == 0 {
		return p.Map(func(v float32) float32 { return v })
	}

	return p.Map(func(v float32) float32 {
		return float32(float64(v)*slope + intercept)
	})
}

// MAR01ToHU inverts the normalized encoding: HU = (x-0.192)/0.192*1000.
func MAR01ToHU(x float64) float64 {
	return (x - MAROffset) / MARScale * 1000.0
}

// HUToMAR01 is the forward normalized encoding.
func HUToMAR01(hu float64) float64 {
	return hu/1000.0*MARScale + MAROffset
}

// PlaneMAR01ToHU applies MAR01ToHU to every sample.
func PlaneMAR01ToHU(p *Plane) *Plane {
	return p.Map(func(v float32) float32 {
		return float32(MAR01ToHU(float64(v)))
	})
}

// ToHU brings a plane read from a volume of the given provenance into HU,
// using the volume's header slope and intercept.
func ToHU(p *Plane, prov Provenance, slope, intercept float64) *Plane {
	out := RescalePlane(p, slope, intercept)
	if prov == ProvenanceModel {
		for k, v := range out.Data {
			out.Data[k] = float32(MAR01ToHU(float64(v)))
		}
	}

	return out
}

// Floor clamps every sample of p from below, in place, and returns p.
func Floor(p *Plane, lo float32) *Plane {
	for k, v := range p.Data {
		if v < lo {
			p.Data[k] = lo
		}
	}

	return p
}
