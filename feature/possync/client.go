package possync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ListingPayload is the request body for creating a POS listing.
type ListingPayload struct {
	// ExternalID ties the listing back to our pack id.
	ExternalID string `json:"externalId"`
	// EventID identifies the performance on the POS side.
	EventID string `json:"eventId"`
	// VenueID identifies the venue on the POS side.
	VenueID string `json:"venueId"`
	// Section is the seating section or zone label.
	Section string `json:"section"`
	// Row is the row label.
	Row string `json:"row"`
	// Seats lists the seat labels covered by the listing.
	Seats []string `json:"seats"`
	// TicketCount is the number of seats in the listing.
	TicketCount int `json:"ticketCount"`
	// UnitCost is the per-seat price.
	UnitCost float64 `json:"unitCost"`
	// Currency is the listing currency code.
	Currency string `json:"currency"`
	// DeliveryType is the delivery method.
	DeliveryType string `json:"deliveryType"`
	// Notes carries free-form listing notes, if any.
	Notes string `json:"notes,omitempty"`
}

// DeleteOutcome reports what the POS did with a delete request.
type DeleteOutcome int

const (
	// DeleteRemoved means the POS deleted the listing.
	DeleteRemoved DeleteOutcome = iota
	// DeleteNotFound means the listing was already gone on the POS side.
	DeleteNotFound
)

// Client talks to the external POS inventory API.
type Client interface {
	// CreateListing creates a listing and returns the POS listing id.
	CreateListing(ctx context.Context, payload ListingPayload) (string, error)
	// DeleteListing removes a listing. A missing listing is not an error.
	DeleteListing(ctx context.Context, listingID string) (DeleteOutcome, error)
}

// HTTPClient implements Client against the POS REST API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient builds an HTTPClient from config.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

type createListingResponse struct {
	ID string `json:"id"`
}

// CreateListing implements Client.
func (c *HTTPClient) CreateListing(ctx context.Context, payload ListingPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding listing payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/inventory/listings", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating listing for pack %s: %w", payload.ExternalID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("creating listing for pack %s: POS returned %d: %s", payload.ExternalID, resp.StatusCode, string(detail))
	}

	var out createListingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding create response for pack %s: %w", payload.ExternalID, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("POS returned empty listing id for pack %s", payload.ExternalID)
	}
	return out.ID, nil
}

// DeleteListing implements Client. A 404 counts as success since the
// listing is gone either way.
func (c *HTTPClient) DeleteListing(ctx context.Context, listingID string) (DeleteOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/inventory/listings/"+listingID, nil)
	if err != nil {
		return DeleteRemoved, fmt.Errorf("building delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return DeleteRemoved, fmt.Errorf("deleting listing %s: %w", listingID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return DeleteRemoved, nil
	case http.StatusNotFound:
		return DeleteNotFound, nil
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return DeleteRemoved, fmt.Errorf("deleting listing %s: POS returned %d: %s", listingID, resp.StatusCode, string(detail))
	}
}
