package caliper

// EventType is the JSON-LD @type of an event.
type EventType string

const (
	EventNavigation     EventType = "http://purl.imsglobal.org/caliper/v1/NavigationEvent"
	EventAssignable     EventType = "http://purl.imsglobal.org/caliper/v1/AssignableEvent"
	EventAssessment     EventType = "http://purl.imsglobal.org/caliper/v1/AssessmentEvent"
	EventAssessmentItem EventType = "http://purl.imsglobal.org/caliper/v1/AssessmentItemEvent"
	EventOutcome        EventType = "http://purl.imsglobal.org/caliper/v1/OutcomeEvent"
)

// Short returns the last path segment of the type IRI, e.g. "OutcomeEvent".
func (t EventType) Short() string {
	return lastSegment(string(t), '/')
}

// Action is a profile action IRI.
type Action string

const (
	ActionNavigatedTo Action = "http://purl.imsglobal.org/vocab/caliper/v1/action#NavigatedTo"
	ActionStarted     Action = "http://purl.imsglobal.org/vocab/caliper/v1/action#Started"
	ActionCompleted   Action = "http://purl.imsglobal.org/vocab/caliper/v1/action#Completed"
	ActionSubmitted   Action = "http://purl.imsglobal.org/vocab/caliper/v1/action#Submitted"
	ActionGraded      Action = "http://purl.imsglobal.org/vocab/caliper/v1/action#Graded"
)

// Short returns the fragment of the action IRI, e.g. "Graded".
func (a Action) Short() string {
	return lastSegment(string(a), '#')
}

func lastSegment(s string, sep byte) string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == sep {
			return s[i+1:]
		}
	}
	return s
}

// Event is one observed learning activity.
type Event struct {
	Context         string               `json:"@context" yaml:"@context"`
	ID              string               `json:"id,omitempty" yaml:"id,omitempty"`
	Type            EventType            `json:"@type" yaml:"@type"`
	Actor           Entity               `json:"actor" yaml:"actor"`
	Action          Action               `json:"action" yaml:"action"`
	Object          Entity               `json:"object" yaml:"object"`
	Target          Entity               `json:"target,omitempty" yaml:"target,omitempty"`
	Generated       Entity               `json:"generated,omitempty" yaml:"generated,omitempty"`
	NavigatedFrom   Entity               `json:"navigatedFrom,omitempty" yaml:"navigatedFrom,omitempty"`
	EventTime       string               `json:"eventTime" yaml:"eventTime"`
	EndedAtTime     string               `json:"endedAtTime,omitempty" yaml:"endedAtTime,omitempty"`
	EdApp           *SoftwareApplication `json:"edApp,omitempty" yaml:"edApp,omitempty"`
	Group           *Group               `json:"group,omitempty" yaml:"group,omitempty"`
	Membership      *Membership          `json:"membership,omitempty" yaml:"membership,omitempty"`
	IsTimeDependent *bool                `json:"isTimeDependent,omitempty" yaml:"isTimeDependent,omitempty"`
}

// EventParams holds the slots of an event that vary between steps.
type EventParams struct {
	ID              string
	Actor           Entity
	Object          Entity
	Target          Entity
	Generated       Entity
	NavigatedFrom   Entity
	EventTime       string
	EndedAtTime     string
	Context         *LearningContext
	IsTimeDependent *bool
}

// NewEvent assembles an event of type t. The learning context, when given,
// supplies edApp, group and membership.
func NewEvent(t EventType, action Action, p EventParams) Event {
	e := Event{
		Context:         Context,
		ID:              p.ID,
		Type:            t,
		Actor:           p.Actor,
		Action:          action,
		Object:          p.Object,
		Target:          p.Target,
		Generated:       p.Generated,
		NavigatedFrom:   p.NavigatedFrom,
		EventTime:       p.EventTime,
		EndedAtTime:     p.EndedAtTime,
		IsTimeDependent: p.IsTimeDependent,
	}
	if lc := p.Context; lc != nil {
		edApp, group, membership := lc.EdApp, lc.Group, lc.Membership
		e.EdApp = &edApp
		e.Group = &group
		e.Membership = &membership
	}
	return e
}

// Bool returns a pointer to v, for optional boolean event fields.
func Bool(v bool) *bool {
	return &v
}

// DataVersion identifies the event model version inside an Envelope.
const DataVersion = "http://purl.imsglobal.org/ctx/caliper/v1p1"

// Envelope is the unit a sensor hands to its consumers.
type Envelope struct {
	SensorID    string  `json:"sensor" yaml:"sensor"`
	SendTime    string  `json:"sendTime" yaml:"sendTime"`
	DataVersion string  `json:"dataVersion" yaml:"dataVersion"`
	Data        []Event `json:"data" yaml:"data"`
}

// NewEnvelope wraps events for delivery. The events slice is copied.
func NewEnvelope(sensorID, sendTime string, events ...Event) Envelope {
	return Envelope{
		SensorID:    sensorID,
		SendTime:    sendTime,
		DataVersion: DataVersion,
		Data:        append([]Event(nil), events...),
	}
}
