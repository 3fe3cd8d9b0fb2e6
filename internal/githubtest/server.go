// Package githubtest provides an in-process fake of the GitHub Releases API
// for tests of the publisher and of the end-to-end release workflow.
package githubtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// Release is a release stored by the fake.
type Release struct {
	ID      int64
	TagName string
	Name    string
	Body    string
	Draft   bool
}

// Upload is an asset received by the fake.
type Upload struct {
	ReleaseID   int64
	Name        string
	ContentType string
	Body        []byte
}

// Server serves the subset of the Releases API used by the publisher.
// Adjust the exported knobs before issuing requests.
type Server struct {
	*httptest.Server

	// Owner and Repo select the repository served.
	Owner string
	Repo  string
	// Token, when set, is required as a bearer credential.
	Token string
	// LatestStatus overrides the status of the latest-release endpoint.
	LatestStatus int
	// UploadStatus overrides the 201 answer of the upload endpoint.
	UploadStatus int
	// DropUpload closes the connection instead of answering uploads.
	DropUpload bool
	// GarbleUpload answers uploads with a body that is not JSON.
	GarbleUpload bool
	// OmitUploadURL leaves upload_url out of release objects.
	OmitUploadURL bool

	mu       sync.Mutex
	releases []*Release
	nextID   int64
	calls    []string
	uploads  []Upload
}

// Call names recorded by the fake.
const (
	CallLatest = "latest"
	CallList   = "list"
	CallCreate = "create"
	CallUpload = "upload"
)

// NewServer starts a fake for owner/repo and closes it when the test ends.
func NewServer(t testing.TB, owner, repo string) *Server {
	t.Helper()

	s := &Server{
		Owner:  owner,
		Repo:   repo,
		nextID: 1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}/releases/latest", s.handleLatest)
	mux.HandleFunc("GET /repos/{owner}/{repo}/releases", s.handleList)
	mux.HandleFunc("POST /repos/{owner}/{repo}/releases", s.handleCreate)
	mux.HandleFunc("POST /uploads/repos/{owner}/{repo}/releases/{id}/assets", s.handleUpload)

	s.Server = httptest.NewServer(s.authorize(mux))
	t.Cleanup(s.Close)

	return s
}

// APIURL is the base URL to configure the client with.
func (s *Server) APIURL() string {
	return s.URL + "/"
}

// AddRelease stores a release and returns its ID.
func (s *Server) AddRelease(tag string, draft bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addReleaseLocked(&Release{TagName: tag, Name: tag, Draft: draft})
}

// Releases returns a copy of the stored releases.
func (s *Server) Releases() []Release {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Release, 0, len(s.releases))
	for _, r := range s.releases {
		out = append(out, *r)
	}

	return out
}

// Calls returns the endpoint names hit so far, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.calls...)
}

// Uploads returns the assets received so far.
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Upload(nil), s.uploads...)
}

func (s *Server) addReleaseLocked(r *Release) int64 {
	r.ID = s.nextID
	s.nextID++
	s.releases = append(s.releases, r)

	return r.ID
}

func (s *Server) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeMessage(w, http.StatusUnauthorized, "Bad credentials")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) sameRepo(r *http.Request) bool {
	return r.PathValue("owner") == s.Owner && r.PathValue("repo") == s.Repo
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	s.record(CallLatest)

	if !s.sameRepo(r) {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}

	if s.LatestStatus != 0 {
		writeMessage(w, s.LatestStatus, http.StatusText(s.LatestStatus))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Drafts are never reported as the latest release.
	for i := len(s.releases) - 1; i >= 0; i-- {
		if !s.releases[i].Draft {
			writeJSON(w, http.StatusOK, s.releaseJSON(s.releases[i]))
			return
		}
	}

	writeMessage(w, http.StatusNotFound, "Not Found")
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.record(CallList)

	if !s.sameRepo(r) {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}

	perPage := queryInt(r, "per_page", 30)
	page := queryInt(r, "page", 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	start := min((page-1)*perPage, len(s.releases))
	end := min(start+perPage, len(s.releases))

	body := make([]map[string]any, 0, end-start)
	for _, rel := range s.releases[start:end] {
		body = append(body, s.releaseJSON(rel))
	}

	if end < len(s.releases) {
		next := fmt.Sprintf("%s%s?page=%d&per_page=%d", s.URL, r.URL.Path, page+1, perPage)
		w.Header().Set("Link", fmt.Sprintf("<%s>; rel=\"next\"", next))
	}

	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.record(CallCreate)

	if !s.sameRepo(r) {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}

	var request struct {
		TagName string `json:"tag_name"`
		Name    string `json:"name"`
		Body    string `json:"body"`
		Draft   bool   `json:"draft"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.TagName == "" {
		writeMessage(w, http.StatusUnprocessableEntity, "Validation Failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rel := &Release{
		TagName: request.TagName,
		Name:    request.Name,
		Body:    request.Body,
		Draft:   request.Draft,
	}
	s.addReleaseLocked(rel)

	writeJSON(w, http.StatusCreated, s.releaseJSON(rel))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.record(CallUpload)

	if !s.sameRepo(r) {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}

	if s.DropUpload {
		dropConnection(w)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Bad Request")
		return
	}

	name := r.URL.Query().Get("name")

	s.mu.Lock()
	s.uploads = append(s.uploads, Upload{
		ReleaseID:   id,
		Name:        name,
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	})
	s.mu.Unlock()

	status := s.UploadStatus
	if status == 0 {
		status = http.StatusCreated
	}

	if s.GarbleUpload {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, "<html>accepted</html>")

		return
	}

	writeJSON(w, status, map[string]any{
		"id":           id*100 + 1,
		"name":         name,
		"size":         len(body),
		"content_type": r.Header.Get("Content-Type"),
	})
}

func (s *Server) releaseJSON(r *Release) map[string]any {
	out := map[string]any{
		"id":       r.ID,
		"tag_name": r.TagName,
		"name":     r.Name,
		"body":     r.Body,
		"draft":    r.Draft,
	}

	if !s.OmitUploadURL {
		out["upload_url"] = fmt.Sprintf("%s/uploads/repos/%s/%s/releases/%d/assets{?name,label}",
			s.URL, s.Owner, s.Repo, r.ID)
	}

	return out
}

func dropConnection(w http.ResponseWriter) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		writeMessage(w, http.StatusInternalServerError, "hijacking not supported")
		return
	}

	conn, _, err := hijacker.Hijack()
	if err != nil {
		return
	}

	_ = conn.Close()
}

func queryInt(r *http.Request, key string, fallback int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || value <= 0 {
		return fallback
	}

	return value
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
