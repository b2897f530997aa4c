package healthserver

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type mockLogger struct {
	mu       sync.Mutex
	warnMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type stubSource struct {
	admitting atomic.Bool
}

func (s *stubSource) Admitting() bool { return s.admitting.Load() }

func TestRefresh_TracksAdmission(t *testing.T) {
	src := &stubSource{}
	src.admitting.Store(true)
	logger := &mockLogger{}
	s, err := New(src, Config{Logger: logger})
	require.NoError(t, err)
	ctx := context.Background()

	status, err := s.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	src.admitting.Store(false)
	s.Refresh(ctx)
	status, err = s.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)
	assert.Equal(t, []string{"Engine health status changed"}, logger.warnMsgs)

	s.Refresh(ctx)
	assert.Len(t, logger.warnMsgs, 1)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(&stubSource{}, Config{})
	assert.Error(t, err)
	_, err = New(nil, Config{Logger: &mockLogger{}})
	assert.Error(t, err)
}

func TestServe_OverGRPC(t *testing.T) {
	src := &stubSource{}
	s, err := New(src, Config{PollInterval: 10 * time.Millisecond, Logger: &mockLogger{}})
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	src.admitting.Store(true)
	assert.Eventually(t, func() bool {
		r, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil && r.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	overall, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, overall.GetStatus())

	cancel()
	assert.NoError(t, <-done)
}
