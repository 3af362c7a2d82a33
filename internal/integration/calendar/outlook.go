package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
)

const (
	outlookTokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	outlookBaseURL  = "https://graph.microsoft.com/v1.0/me/events"
)

// OutlookClient mirrors events to Outlook via Microsoft Graph.
type OutlookClient struct {
	http    *http.Client
	baseURL string
}

// NewOutlookClient builds a client authenticating with the app credentials.
func NewOutlookClient(clientID, clientSecret string, timeout time.Duration) *OutlookClient {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     outlookTokenURL,
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	client := cfg.Client(context.Background())
	client.Timeout = timeout
	return &OutlookClient{http: client, baseURL: outlookBaseURL}
}

type outlookEvent struct {
	Subject  string           `json:"subject"`
	Body     outlookBody      `json:"body"`
	Start    outlookDateTime  `json:"start"`
	End      outlookDateTime  `json:"end"`
	Location *outlookLocation `json:"location,omitempty"`
}

type outlookBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type outlookDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type outlookLocation struct {
	DisplayName string `json:"displayName"`
}

type outlookEventResponse struct {
	ID string `json:"id"`
}

// Upsert creates or updates the mirrored event and returns the provider id.
func (o *OutlookClient) Upsert(ctx context.Context, event *models.CalendarEvent, externalID *string) (string, error) {
	payload := outlookEvent{
		Subject: event.Title,
		Body:    outlookBody{ContentType: "text", Content: event.Description},
		Start:   outlookDateTime{DateTime: event.StartTime.Format(time.RFC3339), TimeZone: "UTC"},
		End:     outlookDateTime{DateTime: event.EndTime.Format(time.RFC3339), TimeZone: "UTC"},
	}
	if event.Location != nil {
		payload.Location = &outlookLocation{DisplayName: *event.Location}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode outlook event: %w", err)
	}

	method := http.MethodPost
	url := o.baseURL
	if externalID != nil && *externalID != "" {
		method = http.MethodPatch
		url = o.baseURL + "/" + *externalID
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build outlook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("outlook request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("outlook returned status %d", resp.StatusCode)
	}

	var decoded outlookEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode outlook response: %w", err)
	}
	return decoded.ID, nil
}

// Remove deletes the mirrored event.
func (o *OutlookClient) Remove(ctx context.Context, externalID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, o.baseURL+"/"+externalID, nil)
	if err != nil {
		return fmt.Errorf("build outlook delete: %w", err)
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return fmt.Errorf("outlook delete: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("outlook returned status %d", resp.StatusCode)
	}
	return nil
}
