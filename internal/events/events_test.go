package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(ctx, msgs).Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := new(mockWriter)
	var sent []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).([]kafka.Message) }).
		Return(nil)

	p := NewKafkaPublisher(w, zap.NewNop())
	e := New(TypeCouponRedeemed, "reader", map[string]any{"code": "PREM-ABC"})
	before := testutil.ToFloat64(published.WithLabelValues(TypeCouponRedeemed, "ok"))

	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, sent, 1)
	assert.Equal(t, "reader", string(sent[0].Key))
	assert.Equal(t, TypeCouponRedeemed, string(sent[0].Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(sent[0].Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, "PREM-ABC", decoded.Data["code"])
	assert.Equal(t, before+1, testutil.ToFloat64(published.WithLabelValues(TypeCouponRedeemed, "ok")))
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	p := NewKafkaPublisher(w, zap.NewNop())
	err := p.Publish(context.Background(), New(TypeBookUploaded, "b1", nil))
	assert.EqualError(t, err, "broker down")
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := new(mockWriter)
	w.On("Close").Return(nil)
	assert.NoError(t, NewKafkaPublisher(w, zap.NewNop()).Close())
	w.AssertExpectations(t)
}

func TestNewKafkaWriterConfig(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "ebookviewer.events")
	assert.Equal(t, "ebookviewer.events", w.Topic)
	assert.True(t, w.Async)
	_ = w.Close()
}
