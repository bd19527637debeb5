package caliper

import (
	"github.com/alem-hub/caliper-fixtures/internal/domain/shared"
	"github.com/alem-hub/caliper-fixtures/pkg/isoduration"
)

// ══════════════════════════════════════════════════════════════════════════════
// VOCABULARY
// ══════════════════════════════════════════════════════════════════════════════

// Context is the JSON-LD context carried by every event.
const Context = "http://purl.imsglobal.org/ctx/caliper/v1/Context"

// EntityType is the JSON-LD @type of an entity.
type EntityType string

const (
	TypePerson              EntityType = "http://purl.imsglobal.org/caliper/v1/lis/Person"
	TypeCourseOffering      EntityType = "http://purl.imsglobal.org/caliper/v1/lis/CourseOffering"
	TypeCourseSection       EntityType = "http://purl.imsglobal.org/caliper/v1/lis/CourseSection"
	TypeGroup               EntityType = "http://purl.imsglobal.org/caliper/v1/lis/Group"
	TypeMembership          EntityType = "http://purl.imsglobal.org/caliper/v1/lis/Membership"
	TypeSession             EntityType = "http://purl.imsglobal.org/caliper/v1/Session"
	TypeSoftwareApplication EntityType = "http://purl.imsglobal.org/caliper/v1/SoftwareApplication"
	TypeWebPage             EntityType = "http://purl.imsglobal.org/caliper/v1/WebPage"
	TypeEpubVolume          EntityType = "http://www.idpf.org/epub/vocab/structure/#volume"
	TypeEpubSubChapter      EntityType = "http://www.idpf.org/epub/vocab/structure/#subchapter"
	TypeAssessment          EntityType = "http://purl.imsglobal.org/caliper/v1/Assessment"
	TypeAssessmentItem      EntityType = "http://purl.imsglobal.org/caliper/v1/AssessmentItem"
	TypeAttempt             EntityType = "http://purl.imsglobal.org/caliper/v1/Attempt"
	TypeResult              EntityType = "http://purl.imsglobal.org/caliper/v1/Result"
)

// Role is a membership role IRI.
type Role string

const (
	RoleLearner    Role = "http://purl.imsglobal.org/vocab/lis/v2/membership#Learner"
	RoleInstructor Role = "http://purl.imsglobal.org/vocab/lis/v2/membership#Instructor"
)

// Status is a membership status IRI.
type Status string

const (
	StatusActive   Status = "http://purl.imsglobal.org/vocab/lis/v2/status#Active"
	StatusInactive Status = "http://purl.imsglobal.org/vocab/lis/v2/status#Inactive"
)

// Entity is anything that can occupy an actor, object or generated slot of an event.
type Entity interface {
	EntityID() string
	EntityType() EntityType
}

// ══════════════════════════════════════════════════════════════════════════════
// BASE
// ══════════════════════════════════════════════════════════════════════════════

// Base holds the fields shared by every entity.
type Base struct {
	ID           string     `json:"@id" yaml:"@id"`
	Type         EntityType `json:"@type" yaml:"@type"`
	Name         string     `json:"name,omitempty" yaml:"name,omitempty"`
	Description  string     `json:"description,omitempty" yaml:"description,omitempty"`
	DateCreated  string     `json:"dateCreated,omitempty" yaml:"dateCreated,omitempty"`
	DateModified string     `json:"dateModified,omitempty" yaml:"dateModified,omitempty"`
}

// EntityID implements Entity.
func (b Base) EntityID() string { return b.ID }

// EntityType implements Entity.
func (b Base) EntityType() EntityType { return b.Type }

// ══════════════════════════════════════════════════════════════════════════════
// PEOPLE AND ORGANIZATIONS
// ══════════════════════════════════════════════════════════════════════════════

// PersonExtensions carries the school-local identifiers of a student.
type PersonExtensions struct {
	LocalID string `json:"local_id" yaml:"local_id"`
	SSID    string `json:"ssid" yaml:"ssid"`
}

// Person is a learner or instructor.
type Person struct {
	Base       `yaml:",inline"`
	Extensions PersonExtensions `json:"extensions" yaml:"extensions"`
}

// CourseOffering is a course independent of any section.
type CourseOffering struct {
	Base            `yaml:",inline"`
	AcademicSession string `json:"academicSession" yaml:"academicSession"`
	CourseNumber    string `json:"courseNumber" yaml:"courseNumber"`
}

// CourseSection is one taught section of a CourseOffering.
type CourseSection struct {
	Base              `yaml:",inline"`
	AcademicSession   string         `json:"academicSession" yaml:"academicSession"`
	CourseNumber      string         `json:"courseNumber" yaml:"courseNumber"`
	SubOrganizationOf CourseOffering `json:"subOrganizationOf" yaml:"subOrganizationOf"`
}

// Group is a set of students inside a section.
type Group struct {
	Base              `yaml:",inline"`
	SubOrganizationOf CourseSection `json:"subOrganizationOf" yaml:"subOrganizationOf"`
}

// Membership is a roster entry tying a person to a section.
type Membership struct {
	Base         `yaml:",inline"`
	Member       Person        `json:"member" yaml:"member"`
	Organization CourseSection `json:"organization" yaml:"organization"`
	Roles        []Role        `json:"roles" yaml:"roles"`
	Status       Status        `json:"status" yaml:"status"`
}

// HasRole reports whether r is one of the membership roles.
func (m Membership) HasRole(r Role) bool {
	for _, role := range m.Roles {
		if role == r {
			return true
		}
	}
	return false
}

// Session is a federated login session of an actor.
type Session struct {
	Base          `yaml:",inline"`
	Actor         Person `json:"actor" yaml:"actor"`
	StartedAtTime string `json:"startedAtTime" yaml:"startedAtTime"`
}

// SoftwareApplication is the learning tool (edApp) that observed an event.
type SoftwareApplication struct {
	Base `yaml:",inline"`
}

// LearningContext groups the contextual entities attached to every event.
type LearningContext struct {
	EdApp      SoftwareApplication
	Group      Group
	Membership Membership
	Session    Session
}

// ══════════════════════════════════════════════════════════════════════════════
// READING
// ══════════════════════════════════════════════════════════════════════════════

// WebPage is a navigable page, such as a course landing page.
type WebPage struct {
	Base    `yaml:",inline"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// EpubVolume is an EPUB book volume.
type EpubVolume struct {
	Base    `yaml:",inline"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// EpubSubChapter is a sub-chapter inside an EpubVolume.
type EpubSubChapter struct {
	Base     `yaml:",inline"`
	IsPartOf EpubVolume `json:"isPartOf" yaml:"isPartOf"`
	Version  string     `json:"version,omitempty" yaml:"version,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT
// ══════════════════════════════════════════════════════════════════════════════

// Assessment is an assignable quiz or test.
type Assessment struct {
	Base           `yaml:",inline"`
	DatePublished  string  `json:"datePublished,omitempty" yaml:"datePublished,omitempty"`
	DateToActivate string  `json:"dateToActivate,omitempty" yaml:"dateToActivate,omitempty"`
	DateToShow     string  `json:"dateToShow,omitempty" yaml:"dateToShow,omitempty"`
	DateToStartOn  string  `json:"dateToStartOn,omitempty" yaml:"dateToStartOn,omitempty"`
	DateToSubmit   string  `json:"dateToSubmit,omitempty" yaml:"dateToSubmit,omitempty"`
	MaxAttempts    int     `json:"maxAttempts" yaml:"maxAttempts"`
	MaxSubmits     int     `json:"maxSubmits" yaml:"maxSubmits"`
	MaxScore       float64 `json:"maxScore" yaml:"maxScore"`
	Version        string  `json:"version,omitempty" yaml:"version,omitempty"`
}

// AssessmentItem is a single question of an Assessment.
type AssessmentItem struct {
	Base            `yaml:",inline"`
	IsPartOf        Assessment `json:"isPartOf" yaml:"isPartOf"`
	Version         string     `json:"version,omitempty" yaml:"version,omitempty"`
	MaxAttempts     int        `json:"maxAttempts" yaml:"maxAttempts"`
	MaxSubmits      int        `json:"maxSubmits" yaml:"maxSubmits"`
	MaxScore        float64    `json:"maxScore" yaml:"maxScore"`
	IsTimeDependent bool       `json:"isTimeDependent" yaml:"isTimeDependent"`
}

// Attempt records one try at an assessment or one of its items.
// Item attempts are assignable to the parent assessment.
type Attempt struct {
	Base          `yaml:",inline"`
	Assignable    Assessment `json:"assignable" yaml:"assignable"`
	Actor         Person     `json:"actor" yaml:"actor"`
	Count         int        `json:"count" yaml:"count"`
	StartedAtTime string     `json:"startedAtTime" yaml:"startedAtTime"`
	EndedAtTime   string     `json:"endedAtTime,omitempty" yaml:"endedAtTime,omitempty"`
	Duration      string     `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// Completed reports whether the attempt has an end time.
func (a Attempt) Completed() bool {
	return a.EndedAtTime != ""
}

// Complete returns a copy of the attempt ended at end, with the elapsed time
// since StartedAtTime as an ISO-8601 duration.
func (a Attempt) Complete(end string) (Attempt, error) {
	if a.Completed() {
		return Attempt{}, shared.ErrAttemptCompleted
	}
	d, err := elapsed("CompleteAttempt", a.StartedAtTime, end)
	if err != nil {
		return Attempt{}, err
	}
	a.EndedAtTime = end
	a.Duration = d
	return a, nil
}

// Result is the scored outcome of an assessment attempt.
type Result struct {
	Base             `yaml:",inline"`
	Actor            Person              `json:"actor" yaml:"actor"`
	Assignable       Assessment          `json:"assignable" yaml:"assignable"`
	Comment          string              `json:"comment,omitempty" yaml:"comment,omitempty"`
	CurvedTotalScore float64             `json:"curvedTotalScore" yaml:"curvedTotalScore"`
	CurveFactor      float64             `json:"curveFactor" yaml:"curveFactor"`
	ExtraCreditScore float64             `json:"extraCreditScore" yaml:"extraCreditScore"`
	NormalScore      float64             `json:"normalScore" yaml:"normalScore"`
	PenaltyScore     float64             `json:"penaltyScore" yaml:"penaltyScore"`
	ScoredBy         SoftwareApplication `json:"scoredBy" yaml:"scoredBy"`
	TotalScore       float64             `json:"totalScore" yaml:"totalScore"`
}

// elapsed wraps duration formatting so malformed timestamps surface as invalid
// format errors while keeping the *timeutil.ParseError reachable.
func elapsed(op, start, end string) (string, error) {
	d, err := isoduration.Format(start, end)
	if err != nil {
		return "", shared.WrapError("caliper", op, shared.ErrInvalidFormat,
			"timestamp is not a valid instant", err)
	}
	return d, nil
}
