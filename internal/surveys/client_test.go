package surveys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"plankton/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func surveyConfig() config.Config {
	cfg, _ := config.Load()
	cfg.SurveyAPIBaseURL = "https://surveys.example.test/api/v1"
	cfg.SurveyAPIUser = "etl"
	cfg.SurveyAPIPassword = "secret"
	cfg.SurveyPageSize = 2
	return cfg
}

func page(ids ...int) string {
	results := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		results = append(results, map[string]any{
			"_id":              id,
			"_submission_time": "2024-03-01T10:00:00",
			"station":          "MC",
		})
	}
	blob, _ := json.Marshal(map[string]any{"count": len(results), "results": results})
	return string(blob)
}

func pagedClient(t *testing.T, pages []string) (*Client, *int) {
	t.Helper()
	requests := 0
	client := NewClient(surveyConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if user, pass, ok := r.BasicAuth(); !ok || user != "etl" || pass != "secret" {
				t.Fatal("basic auth not set")
			}
			start := r.URL.Query().Get("start")
			idx := requests
			requests++
			if start != fmt.Sprintf("%d", idx*2) {
				t.Fatalf("request %d: start=%s", idx, start)
			}
			if idx >= len(pages) {
				t.Fatalf("unexpected extra request %d", idx)
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(pages[idx])),
				Header:     make(http.Header),
			}, nil
		}),
	}
	return client, &requests
}

func TestFetchAllConcatenatesPages(t *testing.T) {
	// Three full pages, then a short one.
	client, requests := pagedClient(t, []string{
		page(1, 2), page(3, 4), page(5, 6), page(7),
	})

	subs, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if *requests != 4 {
		t.Fatalf("requests=%d", *requests)
	}
	if len(subs) != 7 {
		t.Fatalf("len=%d", len(subs))
	}
	for i, sub := range subs {
		if sub.ID != fmt.Sprintf("%d", i+1) {
			t.Fatalf("subs[%d].ID=%s", i, sub.ID)
		}
		if sub.Flat["station"] != "MC" {
			t.Fatalf("flatten not applied: %v", sub.Flat)
		}
	}
}

func TestFetchAllStopsAtEmptyPage(t *testing.T) {
	client, _ := pagedClient(t, []string{page(1, 2), page()})
	subs, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 2 {
		t.Fatalf("len=%d", len(subs))
	}
}

func TestFetchAllDuplicateIDIsFatal(t *testing.T) {
	client, _ := pagedClient(t, []string{page(1, 2), page(2)})
	_, err := client.FetchAll(context.Background())
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("err=%v, want ErrDuplicateSubmission", err)
	}
}

func TestFetchAllTransportFailureIsNotEndOfPages(t *testing.T) {
	client := NewClient(surveyConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Query().Get("start") == "0" {
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(strings.NewReader(page(1, 2))),
					Header:     make(http.Header),
				}, nil
			}
			return &http.Response{
				StatusCode: http.StatusBadRequest,
				Body:       io.NopCloser(strings.NewReader(`gone`)),
				Header:     make(http.Header),
			}, nil
		}),
	}

	_, err := client.FetchAll(context.Background())
	if err == nil {
		t.Fatal("a failed page must abort the download, not truncate it")
	}
	if errors.Is(err, ErrDuplicateSubmission) {
		t.Fatal("transport failure must be distinguishable from data inconsistency")
	}
}

func TestFetchAllRequiresBaseURL(t *testing.T) {
	cfg, _ := config.Load()
	cfg.SurveyAPIBaseURL = ""
	if _, err := NewClient(cfg).FetchAll(context.Background()); err == nil {
		t.Fatal("missing base url must fail fast")
	}
}
