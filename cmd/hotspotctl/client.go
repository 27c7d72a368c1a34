package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

type apiError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s: %s (%d)", e.Code, e.Message, e.Status)
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		e := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(e)
		return e
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type plan struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	DurationSeconds int64  `json:"duration_seconds"`
	DataCapBytes    int64  `json:"data_cap_bytes"`
	Price           int64  `json:"price"`
	Currency        string `json:"currency"`
	Active          bool   `json:"active"`
}

type voucher struct {
	Code      string    `json:"code"`
	Display   string    `json:"display"`
	PlanID    string    `json:"plan_id"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

type session struct {
	ID        string    `json:"id"`
	MAC       string    `json:"mac"`
	Status    string    `json:"status"`
	Origin    string    `json:"origin"`
	StartedAt time.Time `json:"started_at"`
	Deadline  time.Time `json:"deadline"`
	BytesIn   int64     `json:"bytes_in"`
	BytesOut  int64     `json:"bytes_out"`
	EndReason string    `json:"end_reason"`
}

type dashboard struct {
	Sessions struct {
		Active       int64 `json:"active"`
		Total        int64 `json:"total"`
		StartedToday int64 `json:"started_today"`
		DevicesToday int64 `json:"devices_today"`
	} `json:"sessions"`
	Data struct {
		TodayBytes int64 `json:"today_bytes"`
		TotalBytes int64 `json:"total_bytes"`
	} `json:"data"`
	Vouchers struct {
		Total   int64 `json:"total"`
		Unused  int64 `json:"unused"`
		Used    int64 `json:"used"`
		Expired int64 `json:"expired"`
	} `json:"vouchers"`
	Revenue struct {
		Today    int64  `json:"today"`
		Month    int64  `json:"month"`
		Total    int64  `json:"total"`
		Currency string `json:"currency"`
	} `json:"revenue"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

type alert struct {
	Code    string `json:"code"`
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type list[T any] struct {
	Items []T `json:"items"`
}
