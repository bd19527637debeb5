// Package builder assembles Caliper entities for the fixture school.
//
// Identifiers are derived from a configurable base IRI by nesting: a section id
// extends its course id, an item attempt id extends its item id, and so on.
// Fixed timestamps come from config.Fixture; attempt and response start times
// come from the builder's clock.
package builder

import (
	"fmt"

	"github.com/alem-hub/caliper-fixtures/config"
	"github.com/alem-hub/caliper-fixtures/internal/domain/caliper"
	"github.com/alem-hub/caliper-fixtures/internal/domain/shared"
	"github.com/alem-hub/caliper-fixtures/pkg/isoduration"
	"github.com/alem-hub/caliper-fixtures/pkg/timeutil"
)

// Builder creates entities and identifiers. It is safe for concurrent use when
// its clock and id generator are.
type Builder struct {
	cfg   config.Fixture
	clock timeutil.Clock
	ids   IDGenerator
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the clock derived from the fixture configuration.
func WithClock(clock timeutil.Clock) Option {
	return func(b *Builder) {
		b.clock = clock
	}
}

// WithIDGenerator overrides the event id generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(b *Builder) {
		b.ids = ids
	}
}

// New creates a Builder for cfg.
func New(cfg config.Fixture, opts ...Option) (*Builder, error) {
	if cfg.IDBase == "" {
		return nil, shared.NewDomainError("builder", "New", shared.ErrEmptyValue, "id base is required")
	}

	b := &Builder{cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}

	if b.clock == nil {
		clock, err := NewClock(cfg)
		if err != nil {
			return nil, err
		}
		b.clock = clock
	}
	if b.ids == nil {
		ids, err := NewIDGenerator(cfg.EventIDs, b.SensorID())
		if err != nil {
			return nil, err
		}
		b.ids = ids
	}
	return b, nil
}

// NewClock returns the clock selected by cfg.Clock. A fixed clock starts at
// cfg.EventTime and advances cfg.ClockStep on every reading.
func NewClock(cfg config.Fixture) (timeutil.Clock, error) {
	switch cfg.Clock {
	case config.ClockSystem:
		return timeutil.SystemClock{}, nil
	case config.ClockFixed, "":
		start, err := timeutil.ParseInstant(cfg.EventTime)
		if err != nil {
			return nil, shared.WrapError("builder", "NewClock", shared.ErrInvalidFormat, "bad event time", err)
		}
		return timeutil.NewSteppingClock(start, cfg.ClockStep), nil
	default:
		return nil, shared.NewDomainError("builder", "NewClock", shared.ErrInvalidInput,
			fmt.Sprintf("unknown clock mode %q", cfg.Clock))
	}
}

// NewIDGenerator returns the generator selected by mode.
func NewIDGenerator(mode config.IDMode, namespace string) (IDGenerator, error) {
	switch mode {
	case config.IDDeterministic, "":
		return NewSequentialIDs(namespace), nil
	case config.IDRandom:
		return RandomIDs{}, nil
	case config.IDNone:
		return NoIDs{}, nil
	default:
		return nil, shared.NewDomainError("builder", "NewIDGenerator", shared.ErrInvalidInput,
			fmt.Sprintf("unknown event id mode %q", mode))
	}
}

// Fixture returns the configuration the builder stamps onto entities.
func (b *Builder) Fixture() config.Fixture { return b.cfg }

// Now returns the clock's current time as an instant string.
func (b *Builder) Now() string {
	return timeutil.NowInstant(b.clock)
}

// Duration is the ISO-8601 duration between two instant strings.
func (b *Builder) Duration(start, end string) (string, error) {
	return isoduration.Format(start, end)
}

// EventID returns the next event identifier.
func (b *Builder) EventID() string {
	return b.ids.GenerateID()
}

// ══════════════════════════════════════════════════════════════════════════════
// IDENTIFIERS
// ══════════════════════════════════════════════════════════════════════════════

// AcademicSession formats a section's year and term, e.g. "1617-FY".
func AcademicSession(s caliper.Section) string {
	return s.YearAbbr + "-" + s.TermAbbr
}

// SensorID is the IRI of the configured sensor.
func (b *Builder) SensorID() string {
	return b.SensorIDFor(b.cfg.SensorID)
}

// SensorIDFor is the IRI of sensor id.
func (b *Builder) SensorIDFor(id string) string {
	return b.cfg.IDBase + "/sensor/" + id
}

func (b *Builder) FederatedSessionID(id string) string {
	return b.cfg.IDBase + "/session/" + id
}

func (b *Builder) StudentID(id string) string {
	return b.cfg.IDBase + "/student/" + id
}

func (b *Builder) CourseID(s caliper.Section) string {
	return fmt.Sprintf("%s/year/%s/school/%s/course/%s", b.cfg.IDBase, s.YearAbbr, s.SchoolID, s.CourseNumber)
}

func SectionID(course caliper.CourseOffering, id string) string {
	return course.ID + "/section/" + id
}

func SectionGroupID(section caliper.CourseSection, id string) string {
	return section.ID + "/group/" + id
}

func SectionEnrollmentID(section caliper.CourseSection, studentID string) string {
	return section.ID + "/student/" + studentID
}

func AssessmentID(section caliper.CourseSection, id string) string {
	return section.ID + "/assessment/" + id
}

func AssessmentAttemptID(assessment caliper.Assessment, id string) string {
	return assessment.ID + "/a/" + id
}

func AssessmentItemID(assessment caliper.Assessment, id string) string {
	return assessment.ID + "/item/" + id
}

func ItemAttemptID(item caliper.AssessmentItem, id string) string {
	return item.ID + "/a/" + id
}

func ResponseID(itemAttempt caliper.Attempt, id string) string {
	return itemAttempt.ID + "/r/" + id
}

func ResultID(attempt caliper.Attempt) string {
	return attempt.ID + "/result"
}

// ══════════════════════════════════════════════════════════════════════════════
// PEOPLE AND ORGANIZATIONS
// ══════════════════════════════════════════════════════════════════════════════

// BuildStudent creates the student with school-local identifiers.
func (b *Builder) BuildStudent(studentID, ssid string) caliper.Person {
	return caliper.Person{
		Base: caliper.Base{
			ID:           b.StudentID(studentID),
			Type:         caliper.TypePerson,
			DateCreated:  b.cfg.CreateTime,
			DateModified: b.cfg.ModTime,
		},
		Extensions: caliper.PersonExtensions{LocalID: studentID, SSID: ssid},
	}
}

// BuildCourse creates the course offering a section belongs to.
func (b *Builder) BuildCourse(s caliper.Section) caliper.CourseOffering {
	return caliper.CourseOffering{
		Base: caliper.Base{
			ID:           b.CourseID(s),
			Type:         caliper.TypeCourseOffering,
			Name:         s.CourseName,
			DateCreated:  b.cfg.CreateTime,
			DateModified: b.cfg.ModTime,
		},
		AcademicSession: AcademicSession(s),
		CourseNumber:    s.CourseNumber,
	}
}

// BuildSection creates a section that inherits the course's name, number and session.
func (b *Builder) BuildSection(course caliper.CourseOffering, sectionID string) caliper.CourseSection {
	return caliper.CourseSection{
		Base: caliper.Base{
			ID:           SectionID(course, sectionID),
			Type:         caliper.TypeCourseSection,
			Name:         course.Name,
			DateCreated:  b.cfg.CreateTime,
			DateModified: b.cfg.ModTime,
		},
		AcademicSession:   course.AcademicSession,
		CourseNumber:      course.CourseNumber,
		SubOrganizationOf: course,
	}
}

func (b *Builder) BuildSectionGroup(section caliper.CourseSection, groupID, name string) caliper.Group {
	return caliper.Group{
		Base: caliper.Base{
			ID:          SectionGroupID(section, groupID),
			Type:        caliper.TypeGroup,
			Name:        name,
			DateCreated: b.cfg.CreateTime,
		},
		SubOrganizationOf: section,
	}
}

// BuildSectionEnrollment creates an active learner membership for student.
func (b *Builder) BuildSectionEnrollment(section caliper.CourseSection, student caliper.Person) caliper.Membership {
	return caliper.Membership{
		Base: caliper.Base{
			ID:          SectionEnrollmentID(section, student.Extensions.LocalID),
			Type:        caliper.TypeMembership,
			Name:        section.Name,
			Description: "Roster entry",
			DateCreated: b.cfg.CreateTime,
		},
		Member:       student,
		Organization: section,
		Roles:        []caliper.Role{caliper.RoleLearner},
		Status:       caliper.StatusActive,
	}
}

func (b *Builder) BuildFederatedSession(actor caliper.Person, sessionID string) caliper.Session {
	return caliper.Session{
		Base: caliper.Base{
			ID:          b.FederatedSessionID(sessionID),
			Type:        caliper.TypeSession,
			DateCreated: b.cfg.CreateTime,
		},
		Actor:         actor,
		StartedAtTime: b.cfg.StartTime,
	}
}

// BuildLearningContext bundles the tool with the group, membership and session.
func (b *Builder) BuildLearningContext(group caliper.Group, membership caliper.Membership,
	session caliper.Session, toolID, toolName string) caliper.LearningContext {
	return caliper.LearningContext{
		EdApp: caliper.SoftwareApplication{Base: caliper.Base{
			ID:          toolID,
			Type:        caliper.TypeSoftwareApplication,
			Name:        toolName,
			DateCreated: b.cfg.CreateTime,
		}},
		Group:      group,
		Membership: membership,
		Session:    session,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// READING
// ══════════════════════════════════════════════════════════════════════════════

func (b *Builder) BuildCourseLandingPage(url, title string) caliper.WebPage {
	return caliper.WebPage{
		Base: caliper.Base{
			ID:           url,
			Type:         caliper.TypeWebPage,
			Name:         title,
			DateCreated:  b.cfg.CreateTime,
			DateModified: b.cfg.ModTime,
		},
		Version: b.cfg.VersionNumber,
	}
}

func (b *Builder) BuildEpubVolume(id, name string) caliper.EpubVolume {
	return caliper.EpubVolume{
		Base: caliper.Base{
			ID:           id,
			Type:         caliper.TypeEpubVolume,
			Name:         name,
			DateCreated:  b.cfg.CreateTime,
			DateModified: b.cfg.ModTime,
		},
		Version: b.cfg.VersionEdition,
	}
}

func (b *Builder) BuildEpubSubChapter(volume caliper.EpubVolume, id, name string) caliper.EpubSubChapter {
	return caliper.EpubSubChapter{
		Base: caliper.Base{
			ID:           id,
			Type:         caliper.TypeEpubSubChapter,
			Name:         name,
			DateCreated:  b.cfg.CreateTime,
			DateModified: b.cfg.ModTime,
		},
		IsPartOf: volume,
		Version:  b.cfg.VersionEdition,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT AND OUTCOME
// ══════════════════════════════════════════════════════════════════════════════

// BuildAssessment creates an assessment with the fixture's publication schedule.
func (b *Builder) BuildAssessment(section caliper.CourseSection, spec caliper.AssessmentSpec) caliper.Assessment {
	return caliper.Assessment{
		Base: caliper.Base{
			ID:           AssessmentID(section, spec.ID),
			Type:         caliper.TypeAssessment,
			Name:         spec.Name,
			DateCreated:  b.cfg.CreateTime,
			DateModified: b.cfg.ModTime,
		},
		DatePublished:  b.cfg.PubTime,
		DateToActivate: b.cfg.ActTime,
		DateToShow:     b.cfg.ShowTime,
		DateToStartOn:  b.cfg.StartOnTime,
		DateToSubmit:   b.cfg.SubmitTime,
		MaxAttempts:    spec.MaxAttempts,
		MaxSubmits:     spec.MaxSubmits,
		MaxScore:       spec.MaxScore,
		Version:        b.cfg.VersionNumber,
	}
}

func (b *Builder) BuildAssessmentItem(assessment caliper.Assessment, spec caliper.ItemSpec) caliper.AssessmentItem {
	return caliper.AssessmentItem{
		Base: caliper.Base{
			ID:   AssessmentItemID(assessment, spec.ID),
			Type: caliper.TypeAssessmentItem,
			Name: spec.Name,
		},
		IsPartOf:        assessment,
		Version:         b.cfg.VersionNumber,
		MaxAttempts:     spec.MaxAttempts,
		MaxSubmits:      spec.MaxSubmits,
		MaxScore:        spec.MaxScore,
		IsTimeDependent: spec.IsTimeDependent,
	}
}

// BuildAssessmentAttempt starts an attempt at assessment now.
func (b *Builder) BuildAssessmentAttempt(assessment caliper.Assessment, actor caliper.Person,
	attemptID string, count int) caliper.Attempt {
	start := b.Now()
	return caliper.Attempt{
		Base: caliper.Base{
			ID:          AssessmentAttemptID(assessment, attemptID),
			Type:        caliper.TypeAttempt,
			DateCreated: start,
		},
		Assignable:    assessment,
		Actor:         actor,
		Count:         count,
		StartedAtTime: start,
	}
}

// BuildItemAttempt starts an attempt at item now. The attempt is assignable to
// the item's parent assessment.
func (b *Builder) BuildItemAttempt(item caliper.AssessmentItem, actor caliper.Person,
	attemptID string, count int) caliper.Attempt {
	start := b.Now()
	return caliper.Attempt{
		Base: caliper.Base{
			ID:          ItemAttemptID(item, attemptID),
			Type:        caliper.TypeAttempt,
			DateCreated: start,
		},
		Assignable:    item.IsPartOf,
		Actor:         actor,
		Count:         count,
		StartedAtTime: start,
	}
}

// BuildResponse records answer r to the item attempted by itemAttempt. The
// response starts now and inherits the attempt's assignable.
func (b *Builder) BuildResponse(itemAttempt caliper.Attempt, actor caliper.Person,
	r caliper.ItemResponse) (caliper.Response, error) {
	values, err := caliper.ResponseValues(r.Kind, r.Values)
	if err != nil {
		return caliper.Response{}, err
	}

	start := b.Now()
	return caliper.Response{
		Base: caliper.Base{
			ID:          ResponseID(itemAttempt, r.ID),
			Type:        r.Kind.EntityType(),
			DateCreated: start,
		},
		Kind:          r.Kind,
		Assignable:    itemAttempt.Assignable,
		Actor:         actor,
		Attempt:       itemAttempt,
		StartedAtTime: start,
		Values:        values,
	}, nil
}

// BuildAssessmentResult scores attempt on behalf of scoredBy.
func (b *Builder) BuildAssessmentResult(attempt caliper.Attempt, actor caliper.Person,
	scoredBy caliper.SoftwareApplication, spec caliper.ResultSpec) caliper.Result {
	return caliper.Result{
		Base: caliper.Base{
			ID:          ResultID(attempt),
			Type:        caliper.TypeResult,
			DateCreated: b.Now(),
		},
		Actor:            actor,
		Assignable:       attempt.Assignable,
		Comment:          spec.Comment,
		CurvedTotalScore: spec.CurvedTotalScore(),
		CurveFactor:      spec.CurveFactor,
		ExtraCreditScore: spec.ExtraCreditScore,
		NormalScore:      spec.NormalScore,
		PenaltyScore:     spec.PenaltyScore,
		ScoredBy:         scoredBy,
		TotalScore:       spec.TotalScore(),
	}
}

// Envelope wraps events for the configured sensor at the fixture send time.
func (b *Builder) Envelope(events ...caliper.Event) caliper.Envelope {
	return caliper.NewEnvelope(b.SensorID(), b.cfg.EventSendTime, events...)
}
