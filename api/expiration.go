package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apimodel "github.com/containershare/lifecycle/api/model"
	"github.com/containershare/lifecycle/config"
	"github.com/containershare/lifecycle/internal/apierror"
)

// ExpireAnnouncements runs a live expiration batch.
//
// Responses:
// - 200 OK: The run completed, with its counters.
// - 409 Conflict: Another run holds the batch lock.
// - 500 Internal Server Error: The run failed before completing.
func (a Api) ExpireAnnouncements(c *gin.Context) {
	a.runLive(c)
}

// TriggerExpiration runs a live batch, or a dry run when the body is
// {"test": true}. An empty body means a live run.
//
// Responses:
// - 200 OK: The run or dry run completed.
// - 400 Bad Request: The body is not valid JSON.
// - 409 Conflict: Another live run holds the batch lock.
// - 500 Internal Server Error: The run failed before completing.
func (a Api) TriggerExpiration(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		a.respondBadRequest(c, err)
		return
	}

	var req apimodel.TriggerRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			a.respondBadRequest(c, err)
			return
		}
	}

	if req.Test {
		a.runDry(c)
		return
	}
	a.runLive(c)
}

func (a Api) runLive(c *gin.Context) {
	start := time.Now()
	if a.engine == nil {
		a.respondFailure(c, fmt.Errorf("%w: expiration engine is not initialized", config.ErrConfigurationMissing), start)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), a.runTimeout)
	defer cancel()

	result, err := a.engine.RunExpiration(ctx)
	if err != nil {
		a.respondFailure(c, err, start)
		return
	}

	c.JSON(http.StatusOK, apimodel.RunResponse{
		Success: true,
		Message: fmt.Sprintf("Expiration completed: %d of %d announcements expired", result.Expired, result.Processed),
		Data: apimodel.RunData{
			Processed: result.Processed,
			Expired:   result.Expired,
			Errors:    result.Errors,
			Duration:  formatDuration(time.Since(start)),
			Timestamp: timestamp(),
		},
	})
}

func (a Api) runDry(c *gin.Context) {
	start := time.Now()
	if a.engine == nil {
		a.respondFailure(c, fmt.Errorf("%w: expiration engine is not initialized", config.ErrConfigurationMissing), start)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), a.runTimeout)
	defer cancel()

	report, err := a.engine.SimulateExpiration(ctx)
	if err != nil {
		a.respondFailure(c, err, start)
		return
	}

	c.JSON(http.StatusOK, apimodel.DryRunResponse{
		Success: true,
		Test:    true,
		Message: fmt.Sprintf("Dry run: %d of %d announcements would expire", report.WouldExpire, report.TotalChecked),
		Data:    report,
	})
}

func (a Api) respondFailure(c *gin.Context, err error, start time.Time) {
	apiErr := apierror.FromError(err)
	status := apierror.MapErrorToHTTPStatus(err)

	resp := apimodel.FailureResponse{
		Success: false,
		Error:   apiErr.Title(),
		Message: apiErr.Message,
	}
	if status == http.StatusInternalServerError {
		resp.Duration = formatDuration(time.Since(start))
		resp.Timestamp = timestamp()
	}
	c.JSON(status, resp)
}

func (a Api) respondBadRequest(c *gin.Context, err error) {
	apiErr := apierror.NewAPIError(apierror.ErrBadRequest, "request body must be a JSON object like {\"test\": true}", err.Error())
	c.JSON(http.StatusBadRequest, apimodel.FailureResponse{
		Success: false,
		Error:   apiErr.Title(),
		Message: apiErr.Message,
	})
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
