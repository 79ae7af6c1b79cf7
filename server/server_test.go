package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aigateway/gateway/engine"
	"github.com/aigateway/gateway/failover"
	"github.com/aigateway/gateway/provider"
	"github.com/aigateway/gateway/state"
	"github.com/aigateway/gateway/workflow"
)

type fakeChatProvider struct {
	name  string
	text  string
	err   error
	delay time.Duration
}

func (p *fakeChatProvider) Name() string               { return p.name }
func (p *fakeChatProvider) Category() provider.Category { return provider.Text }
func (p *fakeChatProvider) Stream(ctx context.Context, messages []provider.Message) (<-chan provider.Chunk, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return nil, p.err
	}
	ch := make(chan provider.Chunk, 1)
	ch <- provider.Chunk{Text: p.text}
	close(ch)
	return ch, nil
}

type fakeImageProvider struct {
	name   string
	result provider.ImageResult
}

func (p *fakeImageProvider) Name() string               { return p.name }
func (p *fakeImageProvider) Category() provider.Category { return provider.Image }
func (p *fakeImageProvider) Generate(ctx context.Context, input provider.ImageInput) (provider.ImageResult, error) {
	return p.result, nil
}

func newTestServer(t *testing.T, apiKey string) (*Server, *provider.Registry, *engine.Engine, state.Store) {
	t.Helper()
	reg := provider.NewRegistry(nil)
	store := state.NewMemoryStore(time.Hour, nil)
	t.Cleanup(func() { store.Close() })
	eng := engine.New(engine.Config{
		MaxConcurrent: 5,
		StepTimeout:   time.Second,
		TotalTimeout:  time.Second,
		Retry:         failover.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}, store, reg, nil)

	srv := New("gateway-test", reg, eng, store, failover.Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, apiKey, nil, nil)
	return srv, reg, eng, store
}

func TestRequestIDIsGeneratedAndEchoed(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler(false).ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDHonorsIncomingHeader(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	srv.Handler(false).ServeHTTP(rec, req)

	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))
}

func TestHealthRouteRequiresNoAuth(t *testing.T) {
	srv, reg, _, _ := newTestServer(t, "secret")
	reg.Register(&fakeChatProvider{name: "A", text: "ok"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler(false).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "gateway-test", body["name"])
	assert.NotEmpty(t, body["uptime"])
	categories, ok := body["categories"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, categories["text"])
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/workflow", nil)
	rec := httptest.NewRecorder()
	srv.Handler(false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/workflow", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.Handler(false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthDisabledWithoutAPIKey(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/workflow", nil)
	rec := httptest.NewRecorder()
	srv.Handler(false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestImageEndpointReturnsServiceAndURLs(t *testing.T) {
	srv, reg, _, _ := newTestServer(t, "")
	reg.Register(&fakeImageProvider{name: "I", result: provider.ImageResult{URLs: []string{"http://x"}}})

	req := httptest.NewRequest(http.MethodPost, "/image", strings.NewReader(`{"prompt":"a cube"}`))
	rec := httptest.NewRecorder()
	srv.Handler(false).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "I", body["service"])
	assert.Equal(t, []interface{}{"http://x"}, body["urls"])
}

func TestImageEndpointNoProvidersReturns503(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/image", strings.NewReader(`"a cube"`))
	rec := httptest.NewRecorder()
	srv.Handler(false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChatEndpointAuthFailureReturns401(t *testing.T) {
	srv, reg, _, _ := newTestServer(t, "")
	reg.Register(&fakeChatProvider{name: "A", err: assertErr("Invalid API key")})

	req := httptest.NewRequest(http.MethodPost, "/text", strings.NewReader(`"hi"`))
	rec := httptest.NewRecorder()
	srv.Handler(false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AUTH_FAILED", body.Code)
}

func TestWorkflowSubmitStatusRoundTrip(t *testing.T) {
	srv, reg, eng, _ := newTestServer(t, "")
	reg.Register(&fakeChatProvider{name: "A", text: "hello"})

	def, err := workflow.NewBuilder("greet").
		Step(workflow.Step{
			Name:     "respond",
			Category: provider.Text,
			Input: workflow.InputResolver(func(in interface{}, ctx *workflow.Context) (interface{}, error) {
				return workflow.InputToChatMessages(in)
			}),
		}).
		Build()
	require.NoError(t, err)
	eng.RegisterDefinition(def)

	req := httptest.NewRequest(http.MethodPost, "/workflow/greet", strings.NewReader(`{"input":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler(false).ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitResp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitResp))
	id := submitResp["workflowId"].(string)
	require.NotEmpty(t, id)

	deadline := time.Now().Add(time.Second)
	var statusRec *httptest.ResponseRecorder
	for time.Now().Before(deadline) {
		statusReq := httptest.NewRequest(http.MethodGet, "/workflow/"+id+"/status", nil)
		statusRec = httptest.NewRecorder()
		srv.Handler(false).ServeHTTP(statusRec, statusReq)
		var status map[string]interface{}
		require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &status))
		if status["status"] == "completed" {
			assert.Equal(t, "hello", status["result"])
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("workflow did not complete in time")
}

func TestWorkflowStatusUnknownIDReturns404(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/workflow/missing/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler(false).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkflowStreamEmitsConnectedAndStatus(t *testing.T) {
	srv, _, _, store := newTestServer(t, "")
	require.NoError(t, store.Create(context.Background(), &state.WorkflowStatus{ID: "w1", Status: state.Completed}))

	req := httptest.NewRequest(http.MethodGet, "/workflow/w1/stream", nil)
	rec := httptest.NewRecorder()
	srv.Handler(false).ServeHTTP(rec, req)

	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	var events []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimPrefix(line, "event: "))
		}
	}
	assert.Equal(t, []string{"connected", "status"}, events)
}

type stringError string

func (e stringError) Error() string { return string(e) }

func assertErr(msg string) error {
	return stringError(msg)
}
