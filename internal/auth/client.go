package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labhelp/queue-service/internal/domain"
)

var ErrInvalidAuth = errors.New("invalid authentication")

// UserInfo is what the identity service reports for a validated credential
// proof.
type UserInfo struct {
	Username    string   `json:"username"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// IdentityClient delegates credential validation to the course API.
type IdentityClient struct {
	apiRoot  string
	apiToken string
	httpc    *http.Client
}

func NewIdentityClient(apiRoot, apiToken string, timeout time.Duration) *IdentityClient {
	return &IdentityClient{
		apiRoot:  strings.TrimRight(apiRoot, "/"),
		apiToken: apiToken,
		httpc:    &http.Client{Timeout: timeout},
	}
}

// Validate forwards the client's identity proof (api token, or whatever the
// course auth flow produced) and returns the resolved user, with the
// queue capability set widened in.
func (c *IdentityClient) Validate(ctx context.Context, proof map[string]string) (*domain.Session, error) {
	form := url.Values{}
	form.Set("api_token", c.apiToken)
	for k, v := range proof {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiRoot+"/get_user_information", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		OK       bool     `json:"ok"`
		Error    string   `json:"error"`
		UserInfo UserInfo `json:"user_info"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("identity response: %w", err)
	}
	if !body.OK || body.UserInfo.Username == "" {
		return nil, ErrInvalidAuth
	}

	info := body.UserInfo
	perms := domain.NewPermissionSet(info.Permissions...).Union(QueuePermissions(info.Role))

	return &domain.Session{
		Username:    info.Username,
		RealName:    info.Name,
		Role:        info.Role,
		Permissions: perms,
		Claims:      map[string]struct{}{},
	}, nil
}
