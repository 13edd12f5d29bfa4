package fm_api_client

import (
	"github.com/mcdev12/matchday/go/clients"
)

// FMApiClient talks to the football manager REST backend
type FMApiClient struct {
	*clients.BaseClient
}

// NewFMApiClient creates a client for baseURL. When accessToken is set every
// request carries it as a bearer token.
func NewFMApiClient(baseURL, accessToken string) *FMApiClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := &FMApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	if accessToken != "" {
		client.SetHeader(AuthorizationHeader, BearerPrefix+accessToken)
	}
	client.SetHeader("Accept", "application/json")

	return client
}
