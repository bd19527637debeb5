package caliper

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/caliper-fixtures/internal/domain/shared"
	"github.com/alem-hub/caliper-fixtures/pkg/timeutil"
)

const (
	startTime = "2015-09-15T10:15:00.000000Z"
	endTime   = "2015-09-15T11:05:00.000000Z"
)

func testStudent() Person {
	return Person{
		Base: Base{
			ID:   "https://kentfieldschools.org/student/123456",
			Type: TypePerson,
		},
		Extensions: PersonExtensions{LocalID: "123456", SSID: "10736344450"},
	}
}

func testAttempt() Attempt {
	return Attempt{
		Base:          Base{ID: "https://example.edu/assessment/1/a/1", Type: TypeAttempt, DateCreated: startTime},
		Actor:         testStudent(),
		Count:         1,
		StartedAtTime: startTime,
	}
}

func TestAttempt_Complete(t *testing.T) {
	a := testAttempt()

	done, err := a.Complete(endTime)
	require.NoError(t, err)

	assert.Equal(t, endTime, done.EndedAtTime)
	assert.Equal(t, "PT50M00S", done.Duration)
	assert.True(t, done.Completed())

	// receiver unchanged
	assert.Empty(t, a.EndedAtTime)
	assert.Empty(t, a.Duration)
	assert.False(t, a.Completed())
}

func TestAttempt_Complete_Twice(t *testing.T) {
	done, err := testAttempt().Complete(endTime)
	require.NoError(t, err)

	_, err = done.Complete(endTime)
	assert.ErrorIs(t, err, shared.ErrAttemptCompleted)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestAttempt_Complete_EndBeforeStart(t *testing.T) {
	done, err := testAttempt().Complete("2015-09-15T10:00:00.000000Z")
	require.NoError(t, err)
	assert.Equal(t, "PT00S", done.Duration)
}

func TestAttempt_Complete_MalformedEnd(t *testing.T) {
	_, err := testAttempt().Complete("2015-09-15T11:05:00Z")
	require.Error(t, err)

	assert.True(t, shared.IsInvalidFormat(err))
	assert.ErrorIs(t, err, timeutil.ErrMalformedInstant)

	var perr *timeutil.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "2015-09-15T11:05:00Z", perr.Value)

	var derr *shared.DomainError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "CompleteAttempt", derr.Op)
}

func TestResponseValues(t *testing.T) {
	cases := []struct {
		kind   ResponseKind
		values []string
		want   any
	}{
		{ResponseFillinBlank, []string{"February 22"}, []string{"February 22"}},
		{ResponseMultipleResponse, []string{"A", "C"}, []string{"A", "C"}},
		{ResponseSelectText, []string{"x"}, []string{"x"}},
		{ResponseMultipleChoice, []string{"B", "C"}, "B"},
		{ResponseTrueFalse, []string{"true"}, "true"},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			got, err := ResponseValues(tc.kind, tc.values)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResponseValues_CopiesInput(t *testing.T) {
	in := []string{"a", "b"}
	got, err := ResponseValues(ResponseMultipleResponse, in)
	require.NoError(t, err)

	in[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestResponseValues_Errors(t *testing.T) {
	_, err := ResponseValues("essay", []string{"x"})
	assert.ErrorIs(t, err, shared.ErrUnknownResponseKind)
	assert.True(t, shared.IsValidation(err))

	_, err = ResponseValues(ResponseFillinBlank, nil)
	assert.ErrorIs(t, err, shared.ErrMissingResponse)
}

func TestResponseKind(t *testing.T) {
	assert.True(t, ResponseTrueFalse.IsValid())
	assert.False(t, ResponseKind("essay").IsValid())
	assert.Equal(t, EntityType("http://purl.imsglobal.org/caliper/v1/FillinBlankResponse"),
		ResponseFillinBlank.EntityType())
	assert.Empty(t, ResponseKind("essay").EntityType())
}

func TestResponse_Complete(t *testing.T) {
	r := Response{
		Base:          Base{ID: "r/1", Type: ResponseFillinBlank.EntityType()},
		Kind:          ResponseFillinBlank,
		StartedAtTime: endTime,
		Values:        []string{"February 22"},
	}

	// ended at an instant before it started
	done, err := r.Complete(startTime)
	require.NoError(t, err)
	assert.Equal(t, startTime, done.EndedAtTime)
	assert.Equal(t, "PT00S", done.Duration)
	assert.Empty(t, r.EndedAtTime)

	_, err = r.Complete("bad")
	assert.True(t, shared.IsInvalidFormat(err))
}

func TestMembership_HasRole(t *testing.T) {
	m := Membership{Roles: []Role{RoleLearner}}
	assert.True(t, m.HasRole(RoleLearner))
	assert.False(t, m.HasRole(RoleInstructor))
}

func TestResultSpec_Defaults(t *testing.T) {
	r := NewResultSpec("Good job", 95.0)
	assert.Equal(t, 95.0, r.TotalScore())
	assert.Equal(t, 95.0, r.CurvedTotalScore())
	assert.Zero(t, r.ExtraCreditScore)
	assert.Zero(t, r.PenaltyScore)
	assert.Zero(t, r.CurveFactor)

	r.ExtraCreditScore = 5
	r.PenaltyScore = 2
	assert.Equal(t, 98.0, r.TotalScore())
}

func TestEventTypeAndAction_Short(t *testing.T) {
	assert.Equal(t, "OutcomeEvent", EventOutcome.Short())
	assert.Equal(t, "AssessmentItemEvent", EventAssessmentItem.Short())
	assert.Equal(t, "Graded", ActionGraded.Short())
	assert.Equal(t, "NavigatedTo", ActionNavigatedTo.Short())
}

func TestNewEvent_LearningContext(t *testing.T) {
	lc := &LearningContext{
		EdApp:      SoftwareApplication{Base: Base{ID: "https://successnet.pearson.com", Type: TypeSoftwareApplication}},
		Group:      Group{Base: Base{ID: "g/1", Type: TypeGroup}},
		Membership: Membership{Base: Base{ID: "m/1", Type: TypeMembership}},
	}
	e := NewEvent(EventAssessment, ActionStarted, EventParams{
		Actor:     testStudent(),
		Object:    Assessment{Base: Base{ID: "a/1", Type: TypeAssessment}},
		EventTime: startTime,
		Context:   lc,
	})

	assert.Equal(t, Context, e.Context)
	require.NotNil(t, e.EdApp)
	assert.Equal(t, "https://successnet.pearson.com", e.EdApp.ID)

	// the event keeps its own copy of the context entities
	lc.EdApp.ID = "changed"
	assert.Equal(t, "https://successnet.pearson.com", e.EdApp.ID)

	noCtx := NewEvent(EventAssessment, ActionStarted, EventParams{Actor: testStudent()})
	assert.Nil(t, noCtx.EdApp)
	assert.Nil(t, noCtx.Group)
	assert.Nil(t, noCtx.Membership)
}

func TestEvent_JSONFieldNames(t *testing.T) {
	e := NewEvent(EventAssessmentItem, ActionStarted, EventParams{
		ID:              "urn:uuid:1",
		Actor:           testStudent(),
		Object:          AssessmentItem{Base: Base{ID: "i/1", Type: TypeAssessmentItem}},
		Generated:       testAttempt(),
		EventTime:       startTime,
		IsTimeDependent: Bool(false),
	})

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, Context, got["@context"])
	assert.Equal(t, string(EventAssessmentItem), got["@type"])
	assert.Equal(t, string(ActionStarted), got["action"])
	assert.Equal(t, false, got["isTimeDependent"])
	assert.NotContains(t, got, "target")
	assert.NotContains(t, got, "navigatedFrom")
	assert.NotContains(t, got, "edApp")

	actor, ok := got["actor"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://kentfieldschools.org/student/123456", actor["@id"])
	assert.Equal(t, string(TypePerson), actor["@type"])
	assert.Equal(t, map[string]any{"local_id": "123456", "ssid": "10736344450"}, actor["extensions"])

	gen, ok := got["generated"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, startTime, gen["startedAtTime"])
	assert.NotContains(t, gen, "endedAtTime")
}

func TestResponse_JSONOmitsKind(t *testing.T) {
	r := Response{
		Base:   Base{ID: "r/1", Type: ResponseMultipleChoice.EntityType()},
		Kind:   ResponseMultipleChoice,
		Values: "B",
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.NotContains(t, got, "Kind")
	assert.Equal(t, "B", got["values"])
	assert.Equal(t, "http://purl.imsglobal.org/caliper/v1/MultipleChoiceResponse", got["@type"])
}

func TestNewEnvelope_CopiesEvents(t *testing.T) {
	events := []Event{{ID: "1"}, {ID: "2"}}
	env := NewEnvelope("https://kentfieldschools.org/sensor/1", endTime, events...)

	events[0].ID = "changed"
	assert.Equal(t, "1", env.Data[0].ID)
	assert.Equal(t, DataVersion, env.DataVersion)
	assert.Equal(t, "https://kentfieldschools.org/sensor/1", env.SensorID)
}
