package mealapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"meal-swiper/internal/config"

	"github.com/tidwall/gjson"
)

// Idea is a recipe suggestion as returned in the "ideas" array.
type Idea struct {
	Title       string
	Description string
	Tags        []string
}

// Link is the web recipe found for an idea, returned in the "links" array.
type Link struct {
	Title       string
	URL         string
	Image       string
	Source      string
	Ingredients []string
}

// Batch pairs ideas and links positionally. Entries beyond the shorter of the
// two arrays are dropped.
type Batch struct {
	Ideas []Idea
	Links []Link
}

// Reminder is a restock hint computed by the service from purchase history.
type Reminder struct {
	ItemName             string `json:"item_name"`
	LastPurchasedDaysAgo int    `json:"last_purchased_days_ago"`
	TypicalIntervalDays  int    `json:"typical_interval_days"`
}

// GroceryItem is one line of the server-computed grocery list.
type GroceryItem struct {
	Name     string
	Quantity float64
	Unit     string
	Price    float64
}

// Profile is the onboarding payload.
type Profile struct {
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Age           int    `json:"age"`
	Height        int    `json:"height"`
	Weight        int    `json:"weight"`
	Gender        string `json:"gender,omitempty"`
	Goal          string `json:"goal"`
	ActivityLevel string `json:"activity_level"`
}

// CheckoutItem is a purchased item reported to /checkout.
type CheckoutItem struct {
	Name string `json:"name"`
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("meal api error: %s status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("meal api error: %s status %d, body: %s", e.Path, e.StatusCode, e.Body)
}

// Client is an interface for the remote meal service.
type Client interface {
	FetchMealBatch(ctx context.Context) (Batch, error)
	FetchReminders(ctx context.Context) ([]Reminder, error)
	FetchGroceryItems(ctx context.Context, links []string) ([]GroceryItem, error)
	Onboard(ctx context.Context, p Profile) (string, error)
	Checkout(ctx context.Context, items []CheckoutItem) error
	SubmitOrder(ctx context.Context, path string, links []string) error
	CancelOrder(ctx context.Context, orderID string) error
}

// mealClient is the concrete implementation of the meal service client.
type mealClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new meal service client. A zero HTTPTimeout means
// requests never time out on their own.
func NewClient(cfg *config.Config) Client {
	return &mealClient{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:    cfg.MealAPIURL,
	}
}

// FetchMealBatch requests the next page of recipe ideas.
func (c *mealClient) FetchMealBatch(ctx context.Context) (Batch, error) {
	body, err := c.do(ctx, http.MethodGet, "/get-meal-batch", nil)
	if err != nil {
		return Batch{}, err
	}
	return parseBatch(body)
}

// FetchReminders returns the restock reminders for the onboarded user.
func (c *mealClient) FetchReminders(ctx context.Context) ([]Reminder, error) {
	body, err := c.do(ctx, http.MethodGet, "/get-reminders", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Reminders []Reminder `json:"reminders"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode reminders: %w", err)
	}
	return resp.Reminders, nil
}

// FetchGroceryItems asks the service to aggregate the grocery list for the
// given recipe links.
func (c *mealClient) FetchGroceryItems(ctx context.Context, links []string) ([]GroceryItem, error) {
	if links == nil {
		links = []string{}
	}
	body, err := c.do(ctx, http.MethodPost, "/get-grocery-items", map[string]interface{}{"links": links})
	if err != nil {
		return nil, err
	}
	return parseGroceryItems(body)
}

// Onboard posts the user profile and returns the identifier the service
// knows the user by.
func (c *mealClient) Onboard(ctx context.Context, p Profile) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/onboarding", p)
	if err != nil {
		return "", err
	}

	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		if msg := res.Get("error"); msg.Exists() && msg.Type == gjson.String {
			return "", fmt.Errorf("onboarding rejected: %s", msg.String())
		}
		for _, key := range []string{"user", "username", "email"} {
			if v := res.Get(key); v.Exists() && v.String() != "" {
				return v.String(), nil
			}
		}
	}

	if p.Name != "" {
		return p.Name, nil
	}
	return p.Email, nil
}

// Checkout records purchased items so the service can learn restock patterns.
func (c *mealClient) Checkout(ctx context.Context, items []CheckoutItem) error {
	_, err := c.do(ctx, http.MethodPost, "/checkout", map[string]interface{}{"items": items})
	return err
}

// SubmitOrder posts the links of the ordered meals to path.
func (c *mealClient) SubmitOrder(ctx context.Context, path string, links []string) error {
	_, err := c.do(ctx, http.MethodPost, path, map[string]interface{}{"links": links})
	return err
}

// CancelOrder notifies the shop that an order was canceled.
func (c *mealClient) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.do(ctx, http.MethodPost, "/cancellation", map[string]string{"order_id": orderID})
	return err
}

func (c *mealClient) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
