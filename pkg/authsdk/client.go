package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every SDK call that has no deadline of its own.
const DefaultTimeout = 10 * time.Second

// SDKClient is a client for the QuickFix authentication service.
// It provides the unauthenticated /auth/* operations and creates
// authenticated Sessions from issued tokens.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// NewSession wraps an access token issued by one of the sign-in calls.
func (c *SDKClient) NewSession(accessToken string) *Session {
	return &Session{client: c, accessToken: accessToken}
}
