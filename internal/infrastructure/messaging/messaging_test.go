package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/alem-hub/caliper-fixtures/internal/domain/caliper"
	"github.com/alem-hub/caliper-fixtures/internal/domain/shared"
	"github.com/alem-hub/caliper-fixtures/pkg/retry"
	"github.com/alem-hub/caliper-fixtures/pkg/timeutil"
)

const (
	sensorID = "https://kentfieldschools.org/sensor/1"
	sendTime = "2015-09-15T11:05:01.000000Z"
)

func testEvent(id string) caliper.Event {
	return caliper.NewEvent(caliper.EventAssessment, caliper.ActionStarted, caliper.EventParams{
		ID: id,
		Actor: caliper.Person{
			Base:       caliper.Base{ID: "https://kentfieldschools.org/student/123456", Type: caliper.TypePerson},
			Extensions: caliper.PersonExtensions{LocalID: "123456", SSID: "10736344450"},
		},
		Object:    caliper.Assessment{Base: caliper.Base{ID: "a/44001", Type: caliper.TypeAssessment}, MaxScore: 100},
		EventTime: "2015-09-15T10:15:00.000000Z",
	})
}

func newTestBus() *Bus {
	return NewBus(BusConfig{SensorID: sensorID, SendTime: sendTime, EnableMetrics: true})
}

func TestBus_SendDeliversToAllHandlers(t *testing.T) {
	bus := newTestBus()
	first, second := NewRecorder(), NewRecorder()
	require.NoError(t, bus.Subscribe("first", first))
	require.NoError(t, bus.Subscribe("second", second))

	require.NoError(t, bus.Send(context.Background(), testEvent("1"), testEvent("2")))
	require.NoError(t, bus.Send(context.Background(), testEvent("3")))

	for _, rec := range []*Recorder{first, second} {
		envs := rec.Envelopes()
		require.Len(t, envs, 2)
		assert.Equal(t, sensorID, envs[0].SensorID)
		assert.Equal(t, sendTime, envs[0].SendTime)
		assert.Equal(t, caliper.DataVersion, envs[0].DataVersion)
		assert.Len(t, envs[0].Data, 2)
		assert.Len(t, rec.Events(), 3)
	}

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.EnvelopesPublished)
	assert.Equal(t, int64(3), snap.EventsPublished)
	assert.Equal(t, int64(3), snap.EventsByType[caliper.EventAssessment])
	assert.Equal(t, int64(4), snap.HandlerExecutions)
	assert.Equal(t, 1.0, snap.HandlerSuccessRate)
}

func TestBus_SendTimeFromClock(t *testing.T) {
	clock := timeutil.FixedClock{Time: timeutil.MustParseInstant("2016-01-01T00:00:00.000000Z")}
	bus := NewBus(BusConfig{SensorID: sensorID, Clock: clock})
	rec := NewRecorder()
	require.NoError(t, bus.Subscribe("rec", rec))

	require.NoError(t, bus.Send(context.Background(), testEvent("1")))
	assert.Equal(t, "2016-01-01T00:00:00.000000Z", rec.Envelopes()[0].SendTime)
	assert.Nil(t, bus.Metrics())
}

func TestBus_SendWithoutEvents(t *testing.T) {
	err := newTestBus().Send(context.Background())
	assert.ErrorIs(t, err, shared.ErrNoEvents)
}

func TestBus_NoHandlers(t *testing.T) {
	assert.NoError(t, newTestBus().Send(context.Background(), testEvent("1")))
}

func TestBus_HandlerErrorsAreJoined(t *testing.T) {
	bus := newTestBus()
	rec := NewRecorder()
	errA := errors.New("disk full")
	errB := errors.New("pipe closed")

	require.NoError(t, bus.Subscribe("a", HandlerFunc(func(context.Context, caliper.Envelope) error { return errA })))
	require.NoError(t, bus.Subscribe("rec", rec))
	require.NoError(t, bus.Subscribe("b", HandlerFunc(func(context.Context, caliper.Envelope) error { return errB })))

	err := bus.Send(context.Background(), testEvent("1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.ErrorIs(t, err, shared.ErrHandlerFailed)
	assert.True(t, shared.IsDelivery(err))
	assert.Contains(t, err.Error(), `handler "a" failed`)

	// the healthy handler still received the envelope
	assert.Equal(t, 1, rec.Len())

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.HandlerFailures)
	assert.Equal(t, int64(1), bus.Metrics().FailuresByHandler["a"])
}

func TestBus_HandlerPanicBecomesError(t *testing.T) {
	bus := newTestBus()
	require.NoError(t, bus.Subscribe("boom", HandlerFunc(func(context.Context, caliper.Envelope) error {
		panic("boom")
	})))

	err := bus.Send(context.Background(), testEvent("1"))
	assert.ErrorIs(t, err, ErrHandlerPanic)
}

func TestBus_Closed(t *testing.T) {
	bus := newTestBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Send(context.Background(), testEvent("1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe("late", NewRecorder()), ErrEventBusClosed)
	assert.True(t, shared.IsDelivery(ErrEventBusClosed))
}

func TestBus_SubscribeNil(t *testing.T) {
	assert.ErrorIs(t, newTestBus().Subscribe("nil", nil), ErrNilHandler)
}

func TestBus_CancelledContext(t *testing.T) {
	bus := newTestBus()
	rec := NewRecorder()
	require.NoError(t, bus.Subscribe("rec", rec))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Send(ctx, testEvent("1"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, shared.ErrTimeout)
	assert.Zero(t, rec.Len())
}

func TestBus_ConcurrencyLimit(t *testing.T) {
	bus := NewBus(BusConfig{SensorID: sensorID, SendTime: sendTime, MaxConcurrency: 1})

	var running, peak atomic.Int32
	slow := HandlerFunc(func(context.Context, caliper.Envelope) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, bus.Subscribe(name, slow))
	}

	require.NoError(t, bus.Send(context.Background(), testEvent("1")))
	assert.Equal(t, int32(1), peak.Load())
}

func TestRecorder_Reset(t *testing.T) {
	rec := NewRecorder()
	require.NoError(t, rec.Handle(context.Background(), caliper.NewEnvelope(sensorID, sendTime, testEvent("1"))))
	assert.Equal(t, 1, rec.Len())

	rec.Reset()
	assert.Zero(t, rec.Len())
	assert.Empty(t, rec.Events())
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, " YAML ": FormatYAML, "Cbor": FormatCBOR} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xml")
	assert.ErrorIs(t, err, shared.ErrUnknownEncoder)
	_, err = NewEncoder("xml", false)
	assert.ErrorIs(t, err, shared.ErrUnknownEncoder)
}

func TestEncodeHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(FormatJSON, false)
	require.NoError(t, err)
	h := NewEncodeHandler(&buf, enc)

	env := caliper.NewEnvelope(sensorID, sendTime, testEvent("urn:uuid:1"))
	require.NoError(t, h.Handle(context.Background(), env))
	require.NoError(t, h.Handle(context.Background(), env))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, sensorID, got["sensor"])
	assert.Equal(t, sendTime, got["sendTime"])

	data := got["data"].([]any)
	event := data[0].(map[string]any)
	assert.Equal(t, "urn:uuid:1", event["id"])
	assert.Equal(t, string(caliper.ActionStarted), event["action"])
}

func TestEncodeHandler_PrettyJSON(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(FormatJSON, true)
	require.NoError(t, err)

	require.NoError(t, NewEncodeHandler(&buf, enc).Handle(context.Background(),
		caliper.NewEnvelope(sensorID, sendTime, testEvent("1"))))
	assert.Contains(t, buf.String(), "\n  \"sensor\": ")
}

func TestEncodeHandler_YAML(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(FormatYAML, false)
	require.NoError(t, err)
	h := NewEncodeHandler(&buf, enc)

	require.NoError(t, h.Handle(context.Background(), caliper.NewEnvelope(sensorID, sendTime, testEvent("1"))))
	require.NoError(t, h.Handle(context.Background(), caliper.NewEnvelope(sensorID, sendTime, testEvent("2"))))

	dec := yaml.NewDecoder(&buf)
	var ids []string
	for {
		var doc map[string]any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, sensorID, doc["sensor"])

		event := doc["data"].([]any)[0].(map[string]any)
		actor := event["actor"].(map[string]any)
		assert.Equal(t, string(caliper.TypePerson), actor["@type"])
		ids = append(ids, event["id"].(string))
	}
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestEncodeHandler_CBOR(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(FormatCBOR, false)
	require.NoError(t, err)
	h := NewEncodeHandler(&buf, enc)

	require.NoError(t, h.Handle(context.Background(), caliper.NewEnvelope(sensorID, sendTime, testEvent("1"))))

	var got map[string]any
	require.NoError(t, cbor.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sensorID, got["sensor"])
	assert.Equal(t, caliper.DataVersion, got["dataVersion"])

	event := got["data"].([]any)[0].(map[any]any)
	assert.Equal(t, caliper.Context, event["@context"])
	assert.Equal(t, "1", event["id"])

	// canonical encoding is stable
	var again bytes.Buffer
	require.NoError(t, NewEncodeHandler(&again, enc).Handle(context.Background(),
		caliper.NewEnvelope(sensorID, sendTime, testEvent("1"))))
	assert.Equal(t, buf.Bytes(), again.Bytes())
}

// failingWriter fails its first failures writes. With partial set, each
// failing write still accepts the first half of p.
type failingWriter struct {
	failures int
	partial  bool
	writes   int
	buf      bytes.Buffer
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes <= w.failures {
		if !w.partial {
			return 0, io.ErrShortWrite
		}
		n, _ := w.buf.Write(p[:len(p)/2])
		return n, io.ErrShortWrite
	}
	return w.buf.Write(p)
}

func retryShortWrites(h Handler) Handler {
	return Retrying(h, retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(0),
		retry.WithRetryIf(func(err error) bool { return errors.Is(err, io.ErrShortWrite) }),
	))
}

func encodeJSON(t *testing.T, envs ...caliper.Envelope) string {
	t.Helper()
	enc, err := NewEncoder(FormatJSON, false)
	require.NoError(t, err)
	var buf bytes.Buffer
	for _, env := range envs {
		require.NoError(t, enc.Encode(&buf, env))
	}
	return buf.String()
}

func TestEncodeHandler_WriteErrorAndRetry(t *testing.T) {
	enc, err := NewEncoder(FormatJSON, false)
	require.NoError(t, err)
	env := caliper.NewEnvelope(sensorID, sendTime, testEvent("1"))

	w := &failingWriter{failures: 1}
	err = NewEncodeHandler(w, enc).Handle(context.Background(), env)
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.ErrorIs(t, err, shared.ErrDelivery)

	w = &failingWriter{failures: 2}
	require.NoError(t, retryShortWrites(NewEncodeHandler(w, enc)).Handle(context.Background(), env))
	assert.Equal(t, 3, w.writes)
	assert.Equal(t, encodeJSON(t, env), w.buf.String())
}

func TestEncodeHandler_RetryResumesPartialWrite(t *testing.T) {
	enc, err := NewEncoder(FormatJSON, false)
	require.NoError(t, err)
	env := caliper.NewEnvelope(sensorID, sendTime, testEvent("1"))

	w := &failingWriter{failures: 2, partial: true}
	require.NoError(t, retryShortWrites(NewEncodeHandler(w, enc)).Handle(context.Background(), env))
	assert.Equal(t, 3, w.writes)

	// exactly one complete document, byte for byte
	assert.Equal(t, encodeJSON(t, env), w.buf.String())
	dec := json.NewDecoder(&w.buf)
	var doc map[string]any
	require.NoError(t, dec.Decode(&doc))
	assert.Equal(t, sensorID, doc["sensor"])
	assert.ErrorIs(t, dec.Decode(&doc), io.EOF)
}

func TestEncodeHandler_NextEnvelopeCompletesPartialWrite(t *testing.T) {
	enc, err := NewEncoder(FormatJSON, false)
	require.NoError(t, err)
	first := caliper.NewEnvelope(sensorID, sendTime, testEvent("1"))
	second := caliper.NewEnvelope(sensorID, sendTime, testEvent("2"))

	w := &failingWriter{failures: 1, partial: true}
	h := NewEncodeHandler(w, enc)
	require.ErrorIs(t, h.Handle(context.Background(), first), io.ErrShortWrite)
	require.NoError(t, h.Handle(context.Background(), second))

	assert.Equal(t, encodeJSON(t, first, second), w.buf.String())
}

func TestEncodeHandler_CancelledContext(t *testing.T) {
	var buf bytes.Buffer
	enc, _ := NewEncoder(FormatJSON, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewEncodeHandler(&buf, enc).Handle(ctx, caliper.NewEnvelope(sensorID, sendTime))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}
