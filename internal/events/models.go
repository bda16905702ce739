package events

import (
	"encoding/json"
	"strings"
	"time"
)

// PageViewEventName is the explicit event name for page views. An empty name
// also counts as a page view.
const PageViewEventName = "page_view"

// EventKind selects page views, custom events or both.
type EventKind string

const (
	KindAll          EventKind = "all"
	KindPageViews    EventKind = "page_views"
	KindCustomEvents EventKind = "custom_events"
)

// ParseEventKind maps the reporting "type" parameter to an EventKind.
func ParseEventKind(s string) (EventKind, bool) {
	switch EventKind(strings.TrimSpace(s)) {
	case "", KindAll:
		return KindAll, true
	case KindPageViews:
		return KindPageViews, true
	case KindCustomEvents:
		return KindCustomEvents, true
	}
	return "", false
}

// Event is a recorded page view or custom event.
type Event struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	SessionID   string    `gorm:"index:idx_session_timestamp;size:255"`
	PageURL     string    `gorm:"size:2048"`
	EventName   string    `gorm:"index;size:100"`
	EventData   string    `gorm:"type:text"`
	IPAddress   string    `gorm:"size:45"`
	UserAgent   string    `gorm:"type:text"`
	Referrer    string    `gorm:"size:2048"`
	Browser     string    `gorm:"size:100"`
	OS          string    `gorm:"column:os;size:100"`
	Device      string    `gorm:"size:100"`
	Country     string    `gorm:"size:100"`
	City        string    `gorm:"size:100"`
	Region      string    `gorm:"size:100"`
	IsEntryPage bool      `gorm:"not null;default:false"`
	IsExitPage  bool      `gorm:"not null;default:false"`
	Timestamp   time.Time `gorm:"index;index:idx_session_timestamp;not null"`
}

// IsPageView reports whether the event counts as a page view.
func (e *Event) IsPageView() bool {
	return IsPageViewName(e.EventName)
}

// IsPageViewName reports whether name marks a page view.
func IsPageViewName(name string) bool {
	return name == "" || name == PageViewEventName
}

// Data decodes EventData. Invalid or empty payloads decode to nil.
func (e *Event) Data() map[string]any {
	if e.EventData == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(e.EventData), &m); err != nil {
		return nil
	}
	return m
}

// EventView is the JSON shape of an event; absent strings render as null.
type EventView struct {
	ID          uint           `json:"id"`
	SessionID   *string        `json:"session_id"`
	PageURL     *string        `json:"page_url"`
	Referrer    *string        `json:"referrer"`
	UserAgent   *string        `json:"user_agent"`
	IPAddress   *string        `json:"ip_address"`
	Browser     *string        `json:"browser"`
	OS          *string        `json:"os"`
	Device      *string        `json:"device"`
	Country     *string        `json:"country"`
	City        *string        `json:"city"`
	Region      *string        `json:"region"`
	EventName   *string        `json:"event_name"`
	EventData   map[string]any `json:"event_data"`
	IsEntryPage bool           `json:"is_entry_page"`
	IsExitPage  bool           `json:"is_exit_page"`
	Timestamp   time.Time      `json:"timestamp"`
}

// View converts the event for API responses.
func (e *Event) View() EventView {
	return EventView{
		ID:          e.ID,
		SessionID:   nullable(e.SessionID),
		PageURL:     nullable(e.PageURL),
		Referrer:    nullable(e.Referrer),
		UserAgent:   nullable(e.UserAgent),
		IPAddress:   nullable(e.IPAddress),
		Browser:     nullable(e.Browser),
		OS:          nullable(e.OS),
		Device:      nullable(e.Device),
		Country:     nullable(e.Country),
		City:        nullable(e.City),
		Region:      nullable(e.Region),
		EventName:   nullable(e.EventName),
		EventData:   e.Data(),
		IsEntryPage: e.IsEntryPage,
		IsExitPage:  e.IsExitPage,
		Timestamp:   e.Timestamp.UTC(),
	}
}

// Views converts a slice of events.
func Views(list []Event) []EventView {
	out := make([]EventView, 0, len(list))
	for i := range list {
		out = append(out, list[i].View())
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
