package pose

// SchemaSize is the number of landmarks in one full-body frame.
const SchemaSize = 33

// SchemaNames is the fixed ordered landmark schema produced by the pose
// detector. The index of a name is its default reference index.
var SchemaNames = [SchemaSize]string{
	"nose",
	"left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear",
	"mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_pinky", "right_pinky",
	"left_index", "right_index",
	"left_thumb", "right_thumb",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

// Reference point names used by the normalizer and the measurement
// extractor.
const (
	Nose          = "nose"
	LeftShoulder  = "left_shoulder"
	RightShoulder = "right_shoulder"
	LeftElbow     = "left_elbow"
	RightElbow    = "right_elbow"
	LeftWrist     = "left_wrist"
	RightWrist    = "right_wrist"
	LeftHip       = "left_hip"
	RightHip      = "right_hip"
	LeftKnee      = "left_knee"
	RightKnee     = "right_knee"
	LeftAnkle     = "left_ankle"
	RightAnkle    = "right_ankle"
)

// Calibration pose names, in capture order.
const (
	PoseTPose           = "T-Pose"
	PoseNeutralStanding = "Neutral Standing"
	PoseSeatedNeutral   = "Seated Neutral"
)

// CalibrationPoses lists the poses of a full calibration capture.
var CalibrationPoses = []string{PoseTPose, PoseNeutralStanding, PoseSeatedNeutral}

var schemaIndex = func() map[string]int {
	m := make(map[string]int, SchemaSize)
	for i, name := range SchemaNames {
		m[name] = i
	}
	return m
}()

// SchemaIndex returns the schema index of a landmark name.
func SchemaIndex(name string) (int, bool) {
	idx, ok := schemaIndex[name]
	return idx, ok
}

// ReferencePoints maps body-part names to landmark indices. It is passed
// explicitly to Normalize so arbitrary schemas can be normalized.
type ReferencePoints map[string]int

// DefaultReferencePoints returns the reference points used when the caller
// supplies none.
func DefaultReferencePoints() ReferencePoints {
	return ReferencePoints{
		Nose:          0,
		LeftShoulder:  11,
		RightShoulder: 12,
		LeftHip:       23,
		RightHip:      24,
		LeftKnee:      25,
		RightKnee:     26,
		LeftAnkle:     27,
		RightAnkle:    28,
	}
}

// Index resolves name to an index. Names missing from r fall back to their
// schema index; -1 is returned when neither knows the name.
func (r ReferencePoints) Index(name string) int {
	if idx, ok := r[name]; ok {
		return idx
	}
	if idx, ok := SchemaIndex(name); ok {
		return idx
	}
	return -1
}

// indexIn resolves name and reports whether the index addresses one of n
// points.
func (r ReferencePoints) indexIn(name string, n int) (int, bool) {
	idx := r.Index(name)
	return idx, idx >= 0 && idx < n
}

// CenterPoint selects the origin used by Normalize. The zero value selects the
// centroid of all points; any other value is "chest", "hip" or a reference
// point name.
type CenterPoint string

const (
	CenterCentroid CenterPoint = ""
	CenterChest    CenterPoint = "chest"
	CenterHip      CenterPoint = "hip"
)
