package domain

// ResolutionKind tells which of the three outcomes a resolution produced.
type ResolutionKind string

const (
	// ResolutionMatched means a feature contains the point.
	ResolutionMatched ResolutionKind = "matched"
	// ResolutionNearest means nothing contains the point; candidates are ranked by distance.
	ResolutionNearest ResolutionKind = "nearest"
	// ResolutionEmpty means the set holds no polygon features at all.
	ResolutionEmpty ResolutionKind = "empty"
)

// MaxCandidates caps the nearest list.
const MaxCandidates = 6

// Match is the first feature whose area contains the point.
type Match struct {
	Feature *Feature
	Name    string
	Named   bool
}

// Candidate is a feature ranked by the distance to its centroid.
type Candidate struct {
	Feature        *Feature
	Name           string
	Centroid       GeoPoint
	DistanceMeters float64
}

// Resolution is the outcome of resolving a point against a FeatureSet.
type Resolution struct {
	Kind       ResolutionKind
	Point      GeoPoint
	Checked    int
	Match      *Match
	Candidates []Candidate
}

// ServerName returns the matched feature's name, if any.
func (r Resolution) ServerName() (string, bool) {
	if r.Kind != ResolutionMatched || r.Match == nil || !r.Match.Named {
		return "", false
	}
	return r.Match.Name, true
}
