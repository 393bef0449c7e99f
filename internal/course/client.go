// Package course talks to the course platform's HTTP API: group lookups for
// checkoff entries and grade submission.
package course

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labhelp/queue-service/internal/domain"
)

type Client struct {
	apiRoot  string
	apiToken string
	httpc    *http.Client
}

func NewClient(apiRoot, apiToken string, timeout time.Duration) *Client {
	return &Client{
		apiRoot:  strings.TrimRight(apiRoot, "/"),
		apiToken: apiToken,
		httpc:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) postForm(ctx context.Context, uri string, form url.Values, out any) error {
	form.Set("api_token", c.apiToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}

// MyGroup returns the collaborator group the user belongs to for the given
// assignment. Callers fall back to a single-member group on error.
func (c *Client) MyGroup(ctx context.Context, assignment domain.Assignment, username string) ([]string, error) {
	path, err := json.Marshal(assignment.Path)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("path", string(path))
	form.Set("as", username)

	var body struct {
		OK      bool     `json:"ok"`
		Error   string   `json:"error"`
		Members []string `json:"members"`
	}
	if err := c.postForm(ctx, c.apiRoot+"/groups/get_my_group", form, &body); err != nil {
		return nil, err
	}
	if !body.OK {
		return nil, fmt.Errorf("group lookup: %s", body.Error)
	}

	return body.Members, nil
}

// Submit records a checkoff grade for member, credited to claimant. Each
// member of a group submission fails or succeeds independently.
func (c *Client) Submit(ctx context.Context, assignment domain.Assignment, member, claimant string) error {
	names, err := json.Marshal([]string{assignment.Name})
	if err != nil {
		return err
	}
	data, err := json.Marshal(map[string]string{
		assignment.Name: c.apiToken + "," + claimant,
	})
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("action", "submit")
	form.Set("names", string(names))
	form.Set("as", member)
	form.Set("data", string(data))

	var body map[string]struct {
		ErrorMsg string `json:"error_msg"`
	}
	if err := c.postForm(ctx, assignment.Page, form, &body); err != nil {
		return err
	}
	for name, res := range body {
		if res.ErrorMsg != "" {
			return fmt.Errorf("submit %s for %s: %s", name, member, res.ErrorMsg)
		}
	}

	return nil
}
