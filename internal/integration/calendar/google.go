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
	googleTokenURL = "https://oauth2.googleapis.com/token"
	googleBaseURL  = "https://www.googleapis.com/calendar/v3/calendars/primary/events"
)

// GoogleClient mirrors events to Google Calendar.
type GoogleClient struct {
	http    *http.Client
	baseURL string
}

// NewGoogleClient builds a client authenticating with the service credentials.
func NewGoogleClient(clientID, clientSecret string, timeout time.Duration) *GoogleClient {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     googleTokenURL,
		Scopes:       []string{"https://www.googleapis.com/auth/calendar.events"},
	}
	client := cfg.Client(context.Background())
	client.Timeout = timeout
	return &GoogleClient{http: client, baseURL: googleBaseURL}
}

type googleEvent struct {
	Summary     string         `json:"summary"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	Start       googleDateTime `json:"start"`
	End         googleDateTime `json:"end"`
}

type googleDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type googleEventResponse struct {
	ID string `json:"id"`
}

// Upsert creates or updates the mirrored event and returns the provider id.
func (g *GoogleClient) Upsert(ctx context.Context, event *models.CalendarEvent, externalID *string) (string, error) {
	payload := googleEvent{
		Summary:     event.Title,
		Description: event.Description,
		Start:       googleDateTime{DateTime: event.StartTime.Format(time.RFC3339), TimeZone: "UTC"},
		End:         googleDateTime{DateTime: event.EndTime.Format(time.RFC3339), TimeZone: "UTC"},
	}
	if event.Location != nil {
		payload.Location = *event.Location
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode google event: %w", err)
	}

	method := http.MethodPost
	url := g.baseURL
	if externalID != nil && *externalID != "" {
		method = http.MethodPut
		url = g.baseURL + "/" + *externalID
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build google request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("google calendar request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("google calendar returned status %d", resp.StatusCode)
	}

	var decoded googleEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode google response: %w", err)
	}
	return decoded.ID, nil
}

// Remove deletes the mirrored event.
func (g *GoogleClient) Remove(ctx context.Context, externalID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.baseURL+"/"+externalID, nil)
	if err != nil {
		return fmt.Errorf("build google delete: %w", err)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("google calendar delete: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("google calendar returned status %d", resp.StatusCode)
	}
	return nil
}
