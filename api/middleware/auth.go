/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/containershare/lifecycle/internal/apierror"
)

const (
	TokenQueryParam = "token"
	bearerPrefix    = "Bearer "
)

// TriggerAuthenticator checks that an activation request carries the shared
// trigger secret.
type TriggerAuthenticator struct {
	secret string
}

// NewTriggerAuthenticator creates a TriggerAuthenticator for secret. An empty
// secret leaves the trigger open and is logged as a warning.
//
// Parameters:
// - secret: The shared secret expected from callers.
//
// Returns:
// - *TriggerAuthenticator: A new authenticator.
func NewTriggerAuthenticator(secret string) *TriggerAuthenticator {
	if secret == "" {
		logrus.Warn("Trigger secret is not configured, activation requests are not authenticated")
	}
	return &TriggerAuthenticator{secret: secret}
}

// Authorize reports whether r may start a run. The secret is accepted from an
// "Authorization: Bearer" header or from the token query parameter.
func (a *TriggerAuthenticator) Authorize(r *http.Request) bool {
	if a.secret == "" {
		logrus.WithField("path", r.URL.Path).Warn("Accepting unauthenticated activation request")
		return true
	}

	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, bearerPrefix) {
		if secureCompare(a.secret, strings.TrimPrefix(header, bearerPrefix)) {
			return true
		}
	}

	if token := r.URL.Query().Get(TokenQueryParam); token != "" {
		return secureCompare(a.secret, token)
	}
	return false
}

// TriggerAuthMiddleware rejects requests a does not authorize with 401.
func TriggerAuthMiddleware(a *TriggerAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Authorize(c.Request) {
			apiErr := apierror.NewAPIError(apierror.ErrUnauthorized, "Invalid or missing trigger token", nil)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apiErr.Title(), "message": apiErr.Message})
			return
		}
		c.Next()
	}
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
