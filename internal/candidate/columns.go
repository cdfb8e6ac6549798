package candidate

// Slot names a particle within a candidate.
type Slot string

// Particle slots.
const (
	L1 Slot = "L1"
	L2 Slot = "L2"
	H  Slot = "H"
)

// Composite prefixes used by the recomputed kinematics.
const (
	B    = "B"
	Jpsi = "Jpsi"
)

// Slots lists every particle slot in processing order.
var Slots = []Slot{L1, L2, H}

// Leptons lists the lepton slots in processing order.
var Leptons = []Slot{L1, L2}

// Lepton reports whether s is a lepton slot.
func (s Slot) Lepton() bool {
	return s == L1 || s == L2
}

// Column field names. The full column is "<slot>_<field>".
const (
	PX                   = "PX"
	PY                   = "PY"
	PZ                   = "PZ"
	PT                   = "PT"
	ETA                  = "ETA"
	PHI                  = "PHI"
	HasBremAdded         = "HASBREMADDED"
	BremHypoRow          = "BREMHYPOROW"
	BremHypoCol          = "BREMHYPOCOL"
	BremHypoArea         = "BREMHYPOAREA"
	BremHypoEnergy       = "BREMHYPOENERGY"
	BremTrackBasedEnergy = "BREMTRACKBASEDENERGY"
	BPVX                 = "BPVX"
	BPVY                 = "BPVY"
	BPVZ                 = "BPVZ"
	EndVX                = "END_VX"
	EndVY                = "END_VY"
	EndVZ                = "END_VZ"
	TrueM                = "TRUEM"
	TrueID               = "TRUEID"
	TrackPrefix          = "TRACK_"
)

// Event-level columns.
const (
	EventNumber = "EVENTNUMBER"
	RunNumber   = "RUNNUMBER"
	Block       = "block"
)

// Column returns the column name of field for a slot or composite prefix.
func Column[S ~string](prefix S, field string) string {
	return string(prefix) + "_" + field
}

// TrackColumn returns the track-only column of field for a slot,
// e.g. L1_TRACK_PX.
func TrackColumn(s Slot, field string) string {
	return string(s) + "_" + TrackPrefix + field
}
