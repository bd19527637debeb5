package caliper

// ══════════════════════════════════════════════════════════════════════════════
// INPUT RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// Section describes a course section of the imaginary school.
type Section struct {
	CourseName    string `yaml:"course_name"`
	SchoolID      string `yaml:"school_id"`
	CourseNumber  string `yaml:"course_number"`
	SectionNumber string `yaml:"section_number"`
	YearAbbr      string `yaml:"year"` // e.g. 1617
	TermAbbr      string `yaml:"term"` // FY, T1, ...
}

// AssessmentSpec describes an assessment before it becomes an entity.
type AssessmentSpec struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	MaxAttempts int     `yaml:"max_attempts"`
	MaxSubmits  int     `yaml:"max_submits"`
	MaxScore    float64 `yaml:"max_score"`
}

// ItemResponse is the answer a student gives to one item.
type ItemResponse struct {
	ID     string       `yaml:"id"`
	Kind   ResponseKind `yaml:"kind"`
	Values []string     `yaml:"values"`
}

// ItemSpec describes one assessment item and the answer given to it.
type ItemSpec struct {
	ID              string       `yaml:"id"`
	Name            string       `yaml:"name"`
	MaxAttempts     int          `yaml:"max_attempts"`
	MaxSubmits      int          `yaml:"max_submits"`
	MaxScore        float64      `yaml:"max_score"`
	IsTimeDependent bool         `yaml:"time_dependent"`
	AttemptID       string       `yaml:"attempt_id"`
	Response        ItemResponse `yaml:"response"`
}

// ResultSpec holds the grading outcome of an assessment attempt.
// Extra credit, penalty and curve factor default to zero.
type ResultSpec struct {
	Comment          string  `yaml:"comment"`
	NormalScore      float64 `yaml:"normal_score"`
	ExtraCreditScore float64 `yaml:"extra_credit_score"`
	PenaltyScore     float64 `yaml:"penalty_score"`
	CurveFactor      float64 `yaml:"curve_factor"`
}

// NewResultSpec returns a result with only a comment and a normal score.
func NewResultSpec(comment string, normalScore float64) ResultSpec {
	return ResultSpec{Comment: comment, NormalScore: normalScore}
}

// TotalScore is the normal score adjusted by extra credit and penalty.
func (r ResultSpec) TotalScore() float64 {
	return r.NormalScore + r.ExtraCreditScore - r.PenaltyScore
}

// CurvedTotalScore equals TotalScore; curving is not applied by the generator.
func (r ResultSpec) CurvedTotalScore() float64 {
	return r.TotalScore()
}
