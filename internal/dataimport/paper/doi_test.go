package paper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

const cslResponse = `{
  "title": "ORKG: Facilitating the Transfer of Research Results with the Open Research Knowledge Graph",
  "author": [
    {"given": "Markus", "family": "Stocker", "ORCID": "http://orcid.org/0000-0001-5492-3212"},
    {"literal": "Alexandra Garatzogianni"},
    {"given": "", "family": ""}
  ],
  "issued": {"date-parts": [[2021, 5, 13]]},
  "URL": "http://dx.doi.org/10.3897/rio.7.e68513",
  "container-title": "Research Ideas and Outcomes"
}`

func TestDOIClientDecodesCSL(t *testing.T) {
	var path, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, accept = r.URL.Path, r.Header.Get("Accept")
		_, _ = w.Write([]byte(cslResponse))
	}))
	defer srv.Close()

	c, err := NewDOIClient(logger.Nop(), DOIConfig{BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewDOIClient: %v", err)
	}
	md, err := c.FindMetadataByDOI(context.Background(), "https://doi.org/10.3897/rio.7.e68513")
	if err != nil {
		t.Fatalf("FindMetadataByDOI: %v", err)
	}
	if path != "/10.3897/rio.7.e68513" {
		t.Fatalf("path = %q", path)
	}
	if accept != "application/vnd.citationstyles.csl+json" {
		t.Fatalf("accept = %q", accept)
	}
	if md.Title == nil || *md.Title != "ORKG: Facilitating the Transfer of Research Results with the Open Research Knowledge Graph" {
		t.Fatalf("title = %v", md.Title)
	}
	if len(md.Authors) != 2 {
		t.Fatalf("authors = %+v", md.Authors)
	}
	if md.Authors[0].Name != "Markus Stocker" || md.Authors[0].Identifiers["orcid"][0] != "0000-0001-5492-3212" {
		t.Fatalf("first author = %+v", md.Authors[0])
	}
	if md.Authors[1].Name != "Alexandra Garatzogianni" || md.Authors[1].Identifiers != nil {
		t.Fatalf("literal author = %+v", md.Authors[1])
	}
	if *md.PublicationYear != 2021 || *md.PublicationMonth != 5 {
		t.Fatalf("issued = %v/%v", *md.PublicationYear, *md.PublicationMonth)
	}
	if *md.PublishedIn != "Research Ideas and Outcomes" || *md.URL != "http://dx.doi.org/10.3897/rio.7.e68513" {
		t.Fatalf("venue/url = %v %v", *md.PublishedIn, *md.URL)
	}
}

func TestDOIClientSubtitle(t *testing.T) {
	md, err := decodeCSL([]byte(`{"title": ["Main"], "subtitle": ["Sub"], "container-title": []}`))
	if err != nil {
		t.Fatalf("decodeCSL: %v", err)
	}
	if *md.Title != "Main: Sub" {
		t.Fatalf("title = %q", *md.Title)
	}
	if md.PublishedIn != nil || md.Authors != nil {
		t.Fatalf("unexpected fields: %+v", md)
	}
}

func TestDOIClientNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()
	c, _ := NewDOIClient(logger.Nop(), DOIConfig{BaseURL: srv.URL})
	md, err := c.FindMetadataByDOI(context.Background(), "10.1000/missing")
	if err != nil || md != nil {
		t.Fatalf("md = %+v err = %v", md, err)
	}
}

func TestDOIClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"title": "ok"}`))
	}))
	defer srv.Close()
	c, _ := NewDOIClient(logger.Nop(), DOIConfig{BaseURL: srv.URL, MaxRetries: 2})
	md, err := c.FindMetadataByDOI(context.Background(), "10.1000/182")
	if err != nil {
		t.Fatalf("FindMetadataByDOI: %v", err)
	}
	if *md.Title != "ok" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("title = %v calls = %d", *md.Title, calls)
	}
}

func TestDOIClientGivesUpOnClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	c, _ := NewDOIClient(logger.Nop(), DOIConfig{BaseURL: srv.URL, MaxRetries: 3})
	if _, err := c.FindMetadataByDOI(context.Background(), "10.1000/182"); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestNormalizeDOI(t *testing.T) {
	for in, want := range map[string]string{
		"https://doi.org/10.1/x": "10.1/x",
		"DOI:10.1/x":             "10.1/x",
		" 10.1/x ":               "10.1/x",
	} {
		if got := NormalizeDOI(in); got != want {
			t.Fatalf("NormalizeDOI(%q) = %q", in, got)
		}
	}
}
