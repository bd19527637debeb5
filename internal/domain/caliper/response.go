package caliper

import (
	"github.com/alem-hub/caliper-fixtures/internal/domain/shared"
)

// ResponseKind identifies the question format a response answers.
type ResponseKind string

const (
	ResponseFillinBlank      ResponseKind = "fillin_blank"
	ResponseMultipleChoice   ResponseKind = "multiple_choice"
	ResponseMultipleResponse ResponseKind = "multiple_response"
	ResponseSelectText       ResponseKind = "select_text"
	ResponseTrueFalse        ResponseKind = "true_false"
)

var responseTypes = map[ResponseKind]EntityType{
	ResponseFillinBlank:      "http://purl.imsglobal.org/caliper/v1/FillinBlankResponse",
	ResponseMultipleChoice:   "http://purl.imsglobal.org/caliper/v1/MultipleChoiceResponse",
	ResponseMultipleResponse: "http://purl.imsglobal.org/caliper/v1/MultipleResponseResponse",
	ResponseSelectText:       "http://purl.imsglobal.org/caliper/v1/SelectTextResponse",
	ResponseTrueFalse:        "http://purl.imsglobal.org/caliper/v1/TrueFalseResponse",
}

// IsValid checks that the kind is known.
func (k ResponseKind) IsValid() bool {
	_, ok := responseTypes[k]
	return ok
}

// EntityType returns the Caliper @type for responses of this kind.
func (k ResponseKind) EntityType() EntityType {
	return responseTypes[k]
}

// SingleValued reports whether responses of this kind carry exactly one value.
func (k ResponseKind) SingleValued() bool {
	return k == ResponseMultipleChoice || k == ResponseTrueFalse
}

// Response is a learner's answer to an assessment item.
//
// Values holds a string for single-valued kinds (multiple choice, true/false)
// and a []string for the others.
type Response struct {
	Base          `yaml:",inline"`
	Kind          ResponseKind `json:"-" yaml:"-"`
	Assignable    Assessment   `json:"assignable" yaml:"assignable"`
	Actor         Person       `json:"actor" yaml:"actor"`
	Attempt       Attempt      `json:"attempt" yaml:"attempt"`
	StartedAtTime string       `json:"startedAtTime" yaml:"startedAtTime"`
	EndedAtTime   string       `json:"endedAtTime,omitempty" yaml:"endedAtTime,omitempty"`
	Duration      string       `json:"duration,omitempty" yaml:"duration,omitempty"`
	Values        any          `json:"values" yaml:"values"`
}

// ResponseValues converts raw answer values to the shape stored in
// Response.Values for kind.
func ResponseValues(kind ResponseKind, values []string) (any, error) {
	if !kind.IsValid() {
		return nil, shared.ErrUnknownResponseKind
	}
	if len(values) == 0 {
		return nil, shared.ErrMissingResponse
	}
	if kind.SingleValued() {
		return values[0], nil
	}
	return append([]string(nil), values...), nil
}

// Complete returns a copy of the response ended at end.
func (r Response) Complete(end string) (Response, error) {
	d, err := elapsed("CompleteResponse", r.StartedAtTime, end)
	if err != nil {
		return Response{}, err
	}
	r.EndedAtTime = end
	r.Duration = d
	return r, nil
}
