package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/containershare/lifecycle"
	apimodel "github.com/containershare/lifecycle/api/model"
	"github.com/containershare/lifecycle/config"
	"github.com/containershare/lifecycle/gateway"
	"github.com/containershare/lifecycle/gateway/mocks"
	redlock "github.com/containershare/lifecycle/internal/lock"
	"github.com/containershare/lifecycle/model"
)

const testSecret = "cron-secret"

var testNow = time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	err := json.NewDecoder(resp.Body).Decode(s.Response)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

type heldLocker struct{}

func (heldLocker) Lock(context.Context, time.Duration) error {
	return fmt.Errorf("%w: key %s", redlock.ErrLockHeld, lifecycle.BatchLockKey)
}

func (heldLocker) Unlock(context.Context) error { return nil }

func testConfig() *config.Configuration {
	return &config.Configuration{
		ProjectName: "Announcement Lifecycle",
		Trigger:     config.TriggerConfig{Secret: testSecret},
		Expiration:  config.ExpirationConfig{RunTimeoutSec: 30},
	}
}

func setupRouter(gw gateway.Gateway, opts ...lifecycle.Option) *gin.Engine {
	conf := testConfig()
	config.MockConfig(conf)

	base := []lifecycle.Option{
		lifecycle.WithClock(func() time.Time { return testNow }),
		lifecycle.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	}
	engine := lifecycle.NewEngine(gw, conf, append(base, opts...)...)
	return NewAPI(engine, conf).Router()
}

func authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testSecret}
}

func shippedOn(id string, d time.Time) model.Announcement {
	return model.Announcement{
		ID:               id,
		Status:           model.StatusPublished,
		RequestType:      model.RequestTypeOffer,
		ShippingDate:     &d,
		ContactFirstName: gofakeit.FirstName(),
		DepartureCountry: "France",
		ArrivalCountry:   "Guadeloupe",
	}
}

func candidates() []model.Announcement {
	return []model.Announcement{
		shippedOn("recOld", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		shippedOn("recNew", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func TestHealth(t *testing.T) {
	router := setupRouter(&mocks.MockGateway{})

	var response string
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/", Response: &response})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "server running...", response)
}

func TestExpireAnnouncements_Unauthorized(t *testing.T) {
	gw := &mocks.MockGateway{}
	router := setupRouter(gw)

	for _, route := range []string{ExpirationRoute, ExpirationRoute + "?token=wrong"} {
		var response map[string]interface{}
		resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: route, Response: &response})
		require.NoError(t, err)

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, "Unauthorized", response["error"])
		assert.NotEmpty(t, response["message"])
	}
	gw.AssertNotCalled(t, "FetchCandidates", mock.Anything, mock.Anything)
}

func TestExpireAnnouncements_LiveRun(t *testing.T) {
	gw := &mocks.MockGateway{}
	gw.On("FetchCandidates", mock.Anything, gateway.CandidateFilter{}).Return(candidates(), nil)
	gw.On("MarkExpired", mock.Anything, "recOld", model.ReasonDeparturePassed, testNow).Return(nil)
	router := setupRouter(gw)

	var response apimodel.RunResponse
	resp, err := SetUpTestRequest(TestRequest{
		Router: router, Method: http.MethodGet, Route: ExpirationRoute + "?token=" + testSecret, Response: &response,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, response.Success)
	assert.Equal(t, 2, response.Data.Processed)
	assert.Equal(t, 1, response.Data.Expired)
	assert.Equal(t, 0, response.Data.Errors)
	assert.True(t, strings.HasSuffix(response.Data.Duration, "ms"))
	_, err = time.Parse(time.RFC3339, response.Data.Timestamp)
	assert.NoError(t, err)
	gw.AssertExpectations(t)
}

func TestTriggerExpiration_DryRun(t *testing.T) {
	gw := &mocks.MockGateway{}
	gw.On("FetchCandidates", mock.Anything, gateway.CandidateFilter{}).Return(candidates(), nil)
	router := setupRouter(gw)

	var response apimodel.DryRunResponse
	resp, err := SetUpTestRequest(TestRequest{
		Router: router, Method: http.MethodPost, Route: ExpirationRoute,
		Payload: strings.NewReader(`{"test": true}`), Header: authHeader(), Response: &response,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, response.Success)
	assert.True(t, response.Test)
	assert.Equal(t, 2, response.Data.TotalChecked)
	assert.Equal(t, 1, response.Data.WouldExpire)
	assert.Equal(t, []model.DryRunItem{{ID: "recOld", Type: model.RequestTypeOffer, Reason: model.ReasonDeparturePassed}}, response.Data.Items)
	gw.AssertNotCalled(t, "MarkExpired", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTriggerExpiration_DryRunWireFormat(t *testing.T) {
	gw := &mocks.MockGateway{}
	gw.On("FetchCandidates", mock.Anything, gateway.CandidateFilter{}).Return(candidates(), nil)
	router := setupRouter(gw)

	var response map[string]interface{}
	_, err := SetUpTestRequest(TestRequest{
		Router: router, Method: http.MethodPost, Route: ExpirationRoute,
		Payload: strings.NewReader(`{"test": true}`), Header: authHeader(), Response: &response,
	})
	require.NoError(t, err)

	data := response["data"].(map[string]interface{})
	assert.Contains(t, data, "total_checked")
	assert.Contains(t, data, "would_expire")
	items := data["announcements"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, map[string]interface{}{"id": "recOld", "type": "offer", "reason": "date_depart_passee"}, items[0])
}

func TestTriggerExpiration_LiveRunBodies(t *testing.T) {
	for _, body := range []string{"", `{}`, `{"test": false}`} {
		t.Run(fmt.Sprintf("body %q", body), func(t *testing.T) {
			gw := &mocks.MockGateway{}
			gw.On("FetchCandidates", mock.Anything, gateway.CandidateFilter{}).Return([]model.Announcement{}, nil)
			router := setupRouter(gw)

			var response apimodel.RunResponse
			resp, err := SetUpTestRequest(TestRequest{
				Router: router, Method: http.MethodPost, Route: ExpirationRoute,
				Payload: strings.NewReader(body), Header: authHeader(), Response: &response,
			})
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.Code)
			assert.True(t, response.Success)
			assert.Equal(t, 0, response.Data.Processed)
		})
	}
}

func TestTriggerExpiration_MalformedBody(t *testing.T) {
	gw := &mocks.MockGateway{}
	router := setupRouter(gw)

	var response apimodel.FailureResponse
	resp, err := SetUpTestRequest(TestRequest{
		Router: router, Method: http.MethodPost, Route: ExpirationRoute,
		Payload: strings.NewReader(`{"test": tru`), Header: authHeader(), Response: &response,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, response.Success)
	assert.Equal(t, "Bad request", response.Error)
	gw.AssertNotCalled(t, "FetchCandidates", mock.Anything, mock.Anything)
}

func TestExpireAnnouncements_GatewayUnavailable(t *testing.T) {
	gw := &mocks.MockGateway{}
	gw.On("FetchCandidates", mock.Anything, gateway.CandidateFilter{}).
		Return(nil, &gateway.UnavailableError{Op: "fetch candidates", Cause: errors.New("503 Service Unavailable")})
	router := setupRouter(gw)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Router: router, Method: http.MethodGet, Route: ExpirationRoute, Header: authHeader(), Response: &response,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, false, response["success"])
	assert.Equal(t, "Records store unavailable", response["error"])
	assert.Contains(t, response["message"], "fetch candidates")
	assert.True(t, strings.HasSuffix(response["duration"].(string), "ms"))
	assert.NotEmpty(t, response["timestamp"])
	assert.NotContains(t, response, "data")
}

func TestExpireAnnouncements_BatchInProgress(t *testing.T) {
	gw := &mocks.MockGateway{}
	router := setupRouter(gw, lifecycle.WithLocker(time.Minute, func(string) lifecycle.BatchLocker { return heldLocker{} }))

	var response apimodel.FailureResponse
	resp, err := SetUpTestRequest(TestRequest{
		Router: router, Method: http.MethodGet, Route: ExpirationRoute, Header: authHeader(), Response: &response,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.False(t, response.Success)
	assert.Equal(t, "Batch already in progress", response.Error)
	gw.AssertNotCalled(t, "FetchCandidates", mock.Anything, mock.Anything)
}

func TestExpireAnnouncements_NoEngine(t *testing.T) {
	conf := testConfig()
	config.MockConfig(conf)
	router := NewAPI(nil, conf).Router()

	var response apimodel.FailureResponse
	resp, err := SetUpTestRequest(TestRequest{
		Router: router, Method: http.MethodGet, Route: ExpirationRoute, Header: authHeader(), Response: &response,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "Configuration missing", response.Error)
}
