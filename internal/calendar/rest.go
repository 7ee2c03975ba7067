package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"birthday-sync-service/internal/config"
)

// restProvider talks to the calendar service's HTTP API. Requests are paced
// through a token-bucket limiter so bulk work does not burst past the
// provider's rate limits.
type restProvider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewRESTProvider(cfg config.CalendarConfig) Provider {
	return &restProvider{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.GetRequestTimeout()},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
	}
}

type wireEvent struct {
	ID          string            `json:"id,omitempty"`
	Title       string            `json:"summary"`
	Description string            `json:"description,omitempty"`
	Start       string            `json:"start"`
	End         string            `json:"end"`
	AllDay      bool              `json:"allDay"`
	Reminders   []int64           `json:"reminderMinutes,omitempty"`
	Metadata    map[string]string `json:"extendedProperties,omitempty"`
}

func toWire(ev Event, id string) wireEvent {
	w := wireEvent{
		ID:          id,
		Title:       ev.Title,
		Description: ev.Description,
		Start:       ev.Start.Format("2006-01-02"),
		End:         ev.End.Format("2006-01-02"),
		AllDay:      true,
		Metadata:    ev.Metadata,
	}
	for _, r := range ev.Reminders {
		w.Reminders = append(w.Reminders, int64(r/time.Minute))
	}
	return w
}

func (p *restProvider) do(ctx context.Context, token, method, path string, body interface{}, out interface{}) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return NewError(CodeOther, "rate limiter: %v", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return NewError(CodeOther, "encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return NewError(CodeOther, "build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return NewError(CodeOther, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return NewError(CodeOther, "decode response: %v", err)
			}
		}
		return nil
	case resp.StatusCode == http.StatusConflict:
		return NewError(CodeConflict, "%s %s", method, path)
	case resp.StatusCode == http.StatusNotFound:
		return NewError(CodeNotFound, "%s %s", method, path)
	case resp.StatusCode == http.StatusGone:
		return NewError(CodeGone, "%s %s", method, path)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return NewError(CodeOther, "%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
}

func (p *restProvider) Create(ctx context.Context, token, calendarID string, ev Event, deterministicID string) (string, error) {
	var created wireEvent
	path := fmt.Sprintf("/calendars/%s/events", url.PathEscape(calendarID))
	if err := p.do(ctx, token, http.MethodPost, path, toWire(ev, deterministicID), &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return deterministicID, nil
	}
	return created.ID, nil
}

func (p *restProvider) Update(ctx context.Context, token, calendarID, eventID string, ev Event) error {
	path := fmt.Sprintf("/calendars/%s/events/%s", url.PathEscape(calendarID), url.PathEscape(eventID))
	return p.do(ctx, token, http.MethodPut, path, toWire(ev, eventID), nil)
}

func (p *restProvider) Delete(ctx context.Context, token, calendarID, eventID string) error {
	path := fmt.Sprintf("/calendars/%s/events/%s", url.PathEscape(calendarID), url.PathEscape(eventID))
	return p.do(ctx, token, http.MethodDelete, path, nil, nil)
}

func (p *restProvider) List(ctx context.Context, token, calendarID, pageToken string) (*Page, error) {
	path := fmt.Sprintf("/calendars/%s/events", url.PathEscape(calendarID))
	if pageToken != "" {
		path += "?pageToken=" + url.QueryEscape(pageToken)
	}
	var page Page
	if err := p.do(ctx, token, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
