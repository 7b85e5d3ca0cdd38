package sender

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/homechecks/internal/config"
	"github.com/speedwagon-io/homechecks/internal/lib/logger/sl"
	"github.com/speedwagon-io/homechecks/internal/model"
)

type influxStub struct {
	mu     sync.Mutex
	bodies []string
	query  string
	status int
}

func (s *influxStub) handler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.bodies = append(s.bodies, string(body))
		s.query = r.URL.RawQuery
		status := s.status
		s.mu.Unlock()
		if status == 0 {
			status = http.StatusNoContent
		}
		w.WriteHeader(status)
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newInfluxTest(t *testing.T, stub *influxStub) *InfluxSender {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	t.Cleanup(srv.Close)

	s := NewInfluxSender(sl.Discard(), &config.InfluxDBConfig{
		URL:    srv.URL,
		Token:  "token",
		Org:    "home",
		Bucket: "metrics",
	})
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInfluxSenderWritesLineProtocol(t *testing.T) {
	stub := &influxStub{}
	s := newInfluxTest(t, stub)

	err := s.Send(context.Background(), model.NewBatch("cozytouch", []model.Observation{
		{Name: "cozytouch.on_off_state", Value: 1, Type: model.MetricGauge, Tags: []string{"name:Boiler", "id:d1", "place:Kitchen"}},
		{Name: "cozytouch.status_state.by_value", Value: 1, Type: model.MetricGauge, Tags: []string{"name:Boiler", "value:on"}},
	}))
	require.NoError(t, err)

	require.Len(t, stub.bodies, 1)
	lines := strings.Split(strings.TrimSpace(stub.bodies[0]), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "cozytouch.on_off_state,id=d1,name=Boiler,place=Kitchen value="), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "cozytouch.status_state.by_value,name=Boiler,text=on value="), lines[1])
	assert.Contains(t, stub.query, "bucket=metrics")
	assert.Contains(t, stub.query, "org=home")
}

func TestInfluxSenderWriteError(t *testing.T) {
	stub := &influxStub{status: http.StatusInternalServerError}
	s := newInfluxTest(t, stub)

	err := s.Send(context.Background(), model.NewBatch("sbfspot", []model.Observation{
		{Name: "sbfspot.pac1", Value: 230, Tags: []string{"inverter_sn:1"}},
	}))
	assert.Error(t, err)
}

func TestInfluxSenderEmptyBatch(t *testing.T) {
	stub := &influxStub{}
	s := newInfluxTest(t, stub)

	require.NoError(t, s.Send(context.Background(), model.NewBatch("sbfspot", nil)))
	assert.Empty(t, stub.bodies)
}

func TestInfluxSenderHealth(t *testing.T) {
	s := newInfluxTest(t, &influxStub{})
	assert.NoError(t, s.Health(context.Background()))
}
