// Package scenario replays scripted learning sessions through a sensor.
package scenario

import (
	"context"
	"fmt"
	"strconv"

	"github.com/alem-hub/caliper-fixtures/config"
	"github.com/alem-hub/caliper-fixtures/internal/application/builder"
	"github.com/alem-hub/caliper-fixtures/internal/domain/caliper"
	"github.com/alem-hub/caliper-fixtures/internal/domain/shared"
	"github.com/alem-hub/caliper-fixtures/internal/infrastructure/messaging"
	"github.com/alem-hub/caliper-fixtures/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// OUTCOME SCENARIO
// A student reads, takes a quiz and gets graded.
// Flow: Navigate → Start Assignable → Start Assessment →
//
//	(Start Item → Complete Item)* → Submit → Grade
//
// ══════════════════════════════════════════════════════════════════════════════

// Step names one stage of the outcome scenario.
type Step string

const (
	StepPrepare          Step = "prepare"
	StepNavigate         Step = "navigate"
	StepStartAssignable  Step = "start_assignable"
	StepStartAssessment  Step = "start_assessment"
	StepStartItem        Step = "start_item"
	StepCompleteItem     Step = "complete_item"
	StepSubmitAssessment Step = "submit_assessment"
	StepGrade            Step = "grade"
	StepComplete         Step = "complete"
)

// Result is what a successful run produced.
type Result struct {
	// Events in the order they were sent.
	Events []caliper.Event

	// Attempt is the completed assessment attempt.
	Attempt caliper.Attempt

	// Outcome is the graded result.
	Outcome caliper.Result

	// StartedAt and CompletedAt are instants read from the builder's clock.
	StartedAt   string
	CompletedAt string
}

// school holds the entities shared by every step.
type school struct {
	student    caliper.Person
	section    caliper.CourseSection
	assessment caliper.Assessment
	items      []caliper.AssessmentItem
	context    caliper.LearningContext
	landing    caliper.WebPage
	volume     caliper.EpubVolume
	subChapter caliper.EpubSubChapter
}

// state tracks a single run.
type state struct {
	current Step
	item    int // index of the item being processed, -1 outside item steps
	school  school
	attempt caliper.Attempt
	events  []caliper.Event
}

// OutcomeScenario sends the assessment-and-outcome event sequence.
type OutcomeScenario struct {
	builder *builder.Builder
	sensor  messaging.Sensor
	school  config.School
	log     *logger.Logger
}

// NewOutcomeScenario creates a scenario for the given school.
func NewOutcomeScenario(b *builder.Builder, sensor messaging.Sensor, sc config.School, log *logger.Logger) *OutcomeScenario {
	if log == nil {
		log = logger.Nop()
	}
	return &OutcomeScenario{
		builder: b,
		sensor:  sensor,
		school:  sc,
		log:     log.With(logger.Component("outcome_scenario")),
	}
}

// Execute runs every step in order. Each event is sent as soon as it is built;
// a failure stops the run and is reported as a *StepError.
func (s *OutcomeScenario) Execute(ctx context.Context) (*Result, error) {
	st := &state{current: StepPrepare, item: -1}
	startedAt := s.builder.Now()

	if err := s.prepare(st); err != nil {
		return nil, s.wrapError(st, err)
	}

	steps := []struct {
		step Step
		run  func(context.Context, *state) error
	}{
		{StepNavigate, s.navigate},
		{StepStartAssignable, s.startAssignable},
		{StepStartAssessment, s.startAssessment},
	}
	for _, step := range steps {
		st.current = step.step
		if err := step.run(ctx, st); err != nil {
			return nil, s.wrapError(st, err)
		}
	}

	for i := range st.school.items {
		st.item = i
		st.current = StepStartItem
		itemAttempt, err := s.startItem(ctx, st)
		if err != nil {
			return nil, s.wrapError(st, err)
		}

		st.current = StepCompleteItem
		if err := s.completeItem(ctx, st, itemAttempt); err != nil {
			return nil, s.wrapError(st, err)
		}
	}
	st.item = -1

	st.current = StepSubmitAssessment
	if err := s.submit(ctx, st); err != nil {
		return nil, s.wrapError(st, err)
	}

	st.current = StepGrade
	outcome, err := s.grade(ctx, st)
	if err != nil {
		return nil, s.wrapError(st, err)
	}

	st.current = StepComplete
	s.log.Info("scenario complete",
		logger.Int("events", len(st.events)),
		logger.ISODuration(st.attempt.Duration),
	)

	return &Result{
		Events:      st.events,
		Attempt:     st.attempt,
		Outcome:     outcome,
		StartedAt:   startedAt,
		CompletedAt: s.builder.Now(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCENARIO STEPS
// ══════════════════════════════════════════════════════════════════════════════

// prepare builds the school entities that do not depend on the clock.
func (s *OutcomeScenario) prepare(st *state) error {
	if len(s.school.Items) == 0 {
		return shared.ErrNoAssessmentItems
	}

	b := s.builder
	sc := s.school

	course := b.BuildCourse(sc.Section)
	section := b.BuildSection(course, sc.Section.SectionNumber)
	assessment := b.BuildAssessment(section, sc.Assessment)
	student := b.BuildStudent(sc.Student.ID, sc.Student.SSID)

	items := make([]caliper.AssessmentItem, 0, len(sc.Items))
	for _, spec := range sc.Items {
		items = append(items, b.BuildAssessmentItem(assessment, spec))
	}

	group := b.BuildSectionGroup(section, sc.Group.ID, sc.Group.Name)
	membership := b.BuildSectionEnrollment(section, student)
	session := b.BuildFederatedSession(student, sc.SessionID)
	volume := b.BuildEpubVolume(sc.EpubVolume.ID, sc.EpubVolume.Name)

	st.school = school{
		student:    student,
		section:    section,
		assessment: assessment,
		items:      items,
		context:    b.BuildLearningContext(group, membership, session, sc.Tool.ID, sc.Tool.Name),
		landing:    b.BuildCourseLandingPage(sc.CoursePage.ID, sc.CoursePage.Name),
		volume:     volume,
		subChapter: b.BuildEpubSubChapter(volume, sc.EpubSubChapter.ID, sc.EpubSubChapter.Name),
	}
	return nil
}

// navigate: the student opens the reading assigned in the LMS.
func (s *OutcomeScenario) navigate(ctx context.Context, st *state) error {
	ended := s.builder.Now()
	return s.send(ctx, st, s.newEvent(st, caliper.EventNavigation, caliper.ActionNavigatedTo, caliper.EventParams{
		Actor:         st.school.student,
		Object:        st.school.volume,
		Target:        st.school.subChapter,
		NavigatedFrom: st.school.landing,
		EndedAtTime:   ended,
		EventTime:     s.builder.Now(),
	}))
}

// startAssignable: the student starts the assignment and an attempt is generated.
func (s *OutcomeScenario) startAssignable(ctx context.Context, st *state) error {
	st.attempt = s.builder.BuildAssessmentAttempt(st.school.assessment, st.school.student,
		s.assessmentAttemptID(), 1)

	return s.send(ctx, st, s.newEvent(st, caliper.EventAssignable, caliper.ActionStarted, caliper.EventParams{
		Actor:     st.school.student,
		Object:    st.school.assessment,
		Generated: st.attempt,
		EventTime: s.builder.Now(),
	}))
}

// startAssessment: the assessment tool reports the same attempt as started.
func (s *OutcomeScenario) startAssessment(ctx context.Context, st *state) error {
	return s.send(ctx, st, s.newEvent(st, caliper.EventAssessment, caliper.ActionStarted, caliper.EventParams{
		Actor:     st.school.student,
		Object:    st.school.assessment,
		Generated: st.attempt,
		EventTime: s.builder.Now(),
	}))
}

// startItem: the student opens the current question.
func (s *OutcomeScenario) startItem(ctx context.Context, st *state) (caliper.Attempt, error) {
	item := st.school.items[st.item]
	spec := s.school.Items[st.item]

	itemAttempt := s.builder.BuildItemAttempt(item, st.school.student, s.itemAttemptID(st.item), 1)

	err := s.send(ctx, st, s.newEvent(st, caliper.EventAssessmentItem, caliper.ActionStarted, caliper.EventParams{
		Actor:           st.school.student,
		Object:          item,
		Generated:       itemAttempt,
		EventTime:       s.builder.Now(),
		IsTimeDependent: caliper.Bool(spec.IsTimeDependent),
	}))
	return itemAttempt, err
}

// completeItem: the student answers the current question. The response is
// recorded as ending when the item attempt started, so its duration clamps to zero.
func (s *OutcomeScenario) completeItem(ctx context.Context, st *state, itemAttempt caliper.Attempt) error {
	item := st.school.items[st.item]
	spec := s.school.Items[st.item]

	done, err := itemAttempt.Complete(s.builder.Now())
	if err != nil {
		return err
	}

	response, err := s.builder.BuildResponse(done, st.school.student, spec.Response)
	if err != nil {
		return err
	}
	response, err = response.Complete(done.StartedAtTime)
	if err != nil {
		return err
	}

	return s.send(ctx, st, s.newEvent(st, caliper.EventAssessmentItem, caliper.ActionCompleted, caliper.EventParams{
		Actor:           st.school.student,
		Object:          item,
		Generated:       response,
		EventTime:       s.builder.Now(),
		IsTimeDependent: caliper.Bool(spec.IsTimeDependent),
	}))
}

// submit: the student submits the assessment; the attempt gets its duration.
func (s *OutcomeScenario) submit(ctx context.Context, st *state) error {
	done, err := st.attempt.Complete(s.builder.Now())
	if err != nil {
		return err
	}
	st.attempt = done

	return s.send(ctx, st, s.newEvent(st, caliper.EventAssessment, caliper.ActionSubmitted, caliper.EventParams{
		Actor:     st.school.student,
		Object:    st.school.assessment,
		Generated: st.attempt,
		EventTime: s.builder.Now(),
	}))
}

// grade: the tool grades the attempt. The actor is the tool itself.
func (s *OutcomeScenario) grade(ctx context.Context, st *state) (caliper.Result, error) {
	edApp := st.school.context.EdApp
	outcome := s.builder.BuildAssessmentResult(st.attempt, st.school.student, edApp, s.school.Result)

	err := s.send(ctx, st, s.newEvent(st, caliper.EventOutcome, caliper.ActionGraded, caliper.EventParams{
		Actor:     edApp,
		Object:    st.attempt,
		Generated: outcome,
		EventTime: s.builder.Now(),
	}))
	return outcome, err
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// newEvent builds an event with the next id and the run's learning context.
func (s *OutcomeScenario) newEvent(st *state, t caliper.EventType, action caliper.Action, p caliper.EventParams) caliper.Event {
	p.ID = s.builder.EventID()
	p.Context = &st.school.context
	return caliper.NewEvent(t, action, p)
}

// send delivers e and records it.
func (s *OutcomeScenario) send(ctx context.Context, st *state, e caliper.Event) error {
	if err := s.sensor.Send(ctx, e); err != nil {
		return err
	}
	st.events = append(st.events, e)

	s.log.Debug("event sent",
		logger.Step(string(st.current)),
		logger.EventType(e.Type.Short()),
		logger.Action(e.Action.Short()),
		logger.EntityID(e.Object.EntityID()),
	)
	return nil
}

func (s *OutcomeScenario) assessmentAttemptID() string {
	if s.school.AssessmentAttemptID != "" {
		return s.school.AssessmentAttemptID
	}
	return "1"
}

// itemAttemptID defaults to the assessment attempt id followed by the item's
// 1-based position, e.g. "11" for the first item of attempt "1".
func (s *OutcomeScenario) itemAttemptID(i int) string {
	if id := s.school.Items[i].AttemptID; id != "" {
		return id
	}
	return s.assessmentAttemptID() + strconv.Itoa(i+1)
}

func (s *OutcomeScenario) wrapError(st *state, err error) error {
	msg := fmt.Sprintf("outcome scenario failed at step '%s'", st.current)
	if st.item >= 0 {
		msg = fmt.Sprintf("outcome scenario failed at step '%s' (item %d)", st.current, st.item+1)
	}
	s.log.Error("scenario step failed", logger.Step(string(st.current)), logger.Err(err))

	return &StepError{
		Step:    st.current,
		Item:    st.item,
		Cause:   err,
		Message: msg,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// StepError reports the step at which a scenario run stopped.
type StepError struct {
	Step    Step
	Item    int // 0-based item index, -1 when the step is not per item
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return e.Message + ": " + e.Cause.Error()
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Cause
}

// Is matches shared.ErrStepFailed.
func (e *StepError) Is(target error) bool {
	return target == shared.ErrStepFailed
}
