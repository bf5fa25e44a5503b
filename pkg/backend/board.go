package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// RecordID accepts both JSON numbers and strings and keeps the string form.
type RecordID string

func (id *RecordID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("record id must be a string or number: %w", err)
	}
	*id = RecordID(n.String())
	return nil
}

// MarshalJSON writes integer ids back as numbers.
func (id RecordID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Record is one row of a role dashboard.
type Record struct {
	ID       RecordID `json:"id"`
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle"`
	Date     string   `json:"date"`
	Time     string   `json:"time"`
	Status   string   `json:"status"`
	Extra    string   `json:"extra,omitempty"`
}

// DashboardResponse is returned by every dashboard endpoint. Role carries the
// human-readable dashboard title.
type DashboardResponse struct {
	Role    string   `json:"role"`
	Records []Record `json:"records"`
}

type statusUpdate struct {
	Status string `json:"status"`
}

// BoardClient talks to the board backend.
type BoardClient struct {
	*client
}

func NewBoardClient(cfg Config) (*BoardClient, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &BoardClient{client: c}, nil
}

// DashboardPath returns the fetch path for a role. scopeID is only used by
// the doctor dashboard.
func DashboardPath(role, scopeID string) (string, error) {
	switch role {
	case "doctor":
		return "/appointments/dashboard/doctor/" + url.PathEscape(strings.TrimSpace(scopeID)), nil
	case "lab":
		return "/appointments/dashboard/lab", nil
	case "pharmacy":
		return "/appointments/dashboard/pharmacy", nil
	default:
		return "", fmt.Errorf("no dashboard for role %q", role)
	}
}

func (c *BoardClient) Dashboard(ctx context.Context, role, scopeID string) (*DashboardResponse, error) {
	path, err := DashboardPath(role, scopeID)
	if err != nil {
		return nil, err
	}
	var resp DashboardResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Records == nil {
		resp.Records = []Record{}
	}
	return &resp, nil
}

// UpdateStatus writes a new status for one record. resource is the update
// path segment: "appointment", "lab" or "pharmacy".
func (c *BoardClient) UpdateStatus(ctx context.Context, resource string, id RecordID, status string) error {
	path := "/appointments/update/" + url.PathEscape(resource) + "/" + url.PathEscape(string(id))
	return c.doJSON(ctx, http.MethodPut, path, statusUpdate{Status: status}, nil)
}
