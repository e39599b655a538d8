// Package api is the REST half of the backend boundary: bearer-authenticated
// JSON endpoints under a configurable base path. The realtime half lives in
// internal/transport and internal/channel.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spadetable/internal/auth"
	"spadetable/internal/game"
)

type Client struct {
	baseURL string
	cred    *auth.Credential
	inner   *http.Client
}

func NewClient(baseURL string, cred *auth.Credential, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		cred:    cred,
		inner:   &http.Client{Timeout: timeout},
	}
}

// CurrentTable reports whether the authenticated player is seated somewhere.
type CurrentTable struct {
	IsAtTable bool  `json:"isAtTable"`
	TableID   int64 `json:"tableId"`
}

// Player is the authenticated player's own record.
type Player struct {
	PlayerID int64  `json:"playerId"`
	Username string `json:"username"`
	Chips    int    `json:"chips"`
}

// statusResponse is the `{success, message?, gameState?}` body shared by the
// game endpoints.
type statusResponse struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	GameState *game.GameSnapshot `json:"gameState"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token and stores it on the shared
// credential so both REST and the realtime channel pick it up.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	var out loginResponse
	if err := c.call(ctx, http.MethodPost, "/users/login", body, &out); err != nil {
		return err
	}
	if out.Token == "" {
		return fmt.Errorf("login succeeded without a token")
	}
	c.cred.Set(out.Token)
	return nil
}

func (c *Client) Register(ctx context.Context, username, email, password string) error {
	body := map[string]string{"username": username, "email": email, "password": password}
	return c.call(ctx, http.MethodPost, "/users/register", body, nil)
}

func (c *Client) CurrentPlayer(ctx context.Context) (Player, error) {
	var out Player
	err := c.call(ctx, http.MethodGet, "/players/me", nil, &out)
	return out, err
}

func (c *Client) GetCurrentTable(ctx context.Context) (CurrentTable, error) {
	var out CurrentTable
	err := c.call(ctx, http.MethodGet, "/players/current-table", nil, &out)
	return out, err
}

// GetGameStatus fetches the snapshot for a table. A table with no active
// game yields (nil, nil), not an error.
func (c *Client) GetGameStatus(ctx context.Context, tableID int64) (*game.GameSnapshot, error) {
	var out statusResponse
	if err := c.call(ctx, http.MethodGet, "/games/tables/"+formatID(tableID)+"/status", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success || out.GameState == nil {
		return nil, nil
	}
	return out.GameState, nil
}

func (c *Client) JoinTable(ctx context.Context, tableID int64, buyIn int) error {
	path := "/tables/" + formatID(tableID) + "/join?buyIn=" + strconv.Itoa(buyIn)
	return c.call(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) LeaveTable(ctx context.Context, tableID int64) error {
	return c.call(ctx, http.MethodPost, "/tables/"+formatID(tableID)+"/leave", nil, nil)
}

func (c *Client) StartGame(ctx context.Context, tableID int64, bigBlind int) error {
	path := "/games/tables/" + formatID(tableID) + "/start?bigBlind=" + strconv.Itoa(bigBlind)
	return c.call(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) EndGame(ctx context.Context, tableID int64) error {
	return c.call(ctx, http.MethodPost, "/games/tables/"+formatID(tableID)+"/end", nil, nil)
}

// SubmitAction is the legacy HTTP action path; the channel's action
// destination is preferred when connected.
func (c *Client) SubmitAction(ctx context.Context, tableID int64, action string, amount int) error {
	body := map[string]any{"action": action}
	if amount > 0 {
		body["amount"] = amount
	}
	var out statusResponse
	err := c.call(ctx, http.MethodPost, "/games/tables/"+formatID(tableID)+"/action", body, &out)
	if err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("%w: %s", ErrActionRejected, out.Message)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if header := c.cred.Authorization(); header != "" {
		req.Header.Set("Authorization", header)
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Expired or invalid token is unusable on every path; drop it so
		// nothing keeps retrying with it.
		c.cred.Clear()
		return ErrAuthRequired
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("api %s %s: %s", method, path, apiErr.Message)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
