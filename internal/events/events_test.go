package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xharvest/internal/types"
)

func TestChanSinkDeliversInOrder(t *testing.T) {
	s := NewChanSink(2)
	ctx := context.Background()

	require.NoError(t, s.Emit(ctx, Event{Kind: KindProgress, Percent: 10}))
	require.NoError(t, s.Emit(ctx, Event{Kind: KindComplete, Percent: 100}))

	assert.Equal(t, KindProgress, (<-s.C()).Kind)
	assert.Equal(t, KindComplete, (<-s.C()).Kind)
}

func TestChanSinkClosed(t *testing.T) {
	s := NewChanSink(1)
	s.Close()
	s.Close()

	err := s.Emit(context.Background(), Event{Kind: KindProgress})
	assert.ErrorIs(t, err, ErrUndelivered)
}

func TestChanSinkContextEnds(t *testing.T) {
	s := NewChanSink(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.Emit(ctx, Event{Kind: KindProgress})
	assert.ErrorIs(t, err, ErrUndelivered)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMultiJoinsErrors(t *testing.T) {
	var got []Kind
	ok := SinkFunc(func(_ context.Context, ev Event) error {
		got = append(got, ev.Kind)
		return nil
	})
	bad := SinkFunc(func(context.Context, Event) error { return ErrUndelivered })

	err := Multi{ok, bad, ok}.Emit(context.Background(), Event{Kind: KindProgress})

	assert.ErrorIs(t, err, ErrUndelivered)
	assert.Equal(t, []Kind{KindProgress, KindProgress}, got)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(zerolog.New(&buf))

	require.NoError(t, s.Emit(context.Background(), Event{
		Kind:            KindComplete,
		Message:         "done",
		RecordCount:     3,
		Outcome:         "converged",
		ResultsLocation: LocationInline,
	}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "done", line["message"])
	assert.Equal(t, "converged", line["outcome"])
	assert.EqualValues(t, 3, line["records"])
}

type mockSQS struct {
	mock.Mock
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.SendMessageOutput)
	return out, args.Error(1)
}

func sentEvents(m *mockSQS, sent *Event) {
	m.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
		*sent = Event{}
		return *in.QueueUrl == "https://sqs/q" && json.Unmarshal([]byte(*in.MessageBody), sent) == nil
	})).Return(&sqs.SendMessageOutput{}, nil)
}

func TestSQSSinkKeepsSmallInlineRecords(t *testing.T) {
	m := new(mockSQS)
	var sent Event
	sentEvents(m, &sent)

	s := NewSQSSink(m, "https://sqs/q")
	err := s.Emit(context.Background(), Event{
		Kind:            KindComplete,
		RecordCount:     1,
		ResultsLocation: LocationInline,
		Records:         []types.Record{{Key: "u1"}},
	})

	require.NoError(t, err)
	assert.Equal(t, LocationInline, sent.ResultsLocation)
	require.Len(t, sent.Records, 1)
	assert.Equal(t, "u1", sent.Records[0].Key)
	m.AssertExpectations(t)
}

func TestSQSSinkStripsOversizedInlineRecords(t *testing.T) {
	m := new(mockSQS)
	var sent Event
	sentEvents(m, &sent)

	s := NewSQSSink(m, "https://sqs/q")
	s.maxBody = 200
	recs := make([]types.Record, 20)
	for i := range recs {
		recs[i] = types.Record{Key: fmt.Sprintf("user%02d", i)}
	}
	err := s.Emit(context.Background(), Event{
		Kind:            KindComplete,
		RecordCount:     len(recs),
		ResultsLocation: LocationInline,
		Records:         recs,
	})

	require.NoError(t, err)
	assert.Equal(t, LocationCheckpoint, sent.ResultsLocation)
	assert.Empty(t, sent.Records)
	assert.Equal(t, 20, sent.RecordCount)
	m.AssertExpectations(t)
}

func TestSQSSinkSendFailure(t *testing.T) {
	m := new(mockSQS)
	m.On("SendMessage", mock.Anything, mock.Anything).Return(nil, errors.New("aws error"))

	err := NewSQSSink(m, "q").Emit(context.Background(), Event{Kind: KindProgress})

	assert.ErrorIs(t, err, ErrUndelivered)
	assert.Contains(t, err.Error(), "aws error")
}
