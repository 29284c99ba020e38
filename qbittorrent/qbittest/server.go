// Package qbittest provides an in-memory fake of the qBittorrent Web API for tests.
package qbittest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const sessionCookie = "SID"

// Torrent is a torrent held by the fake daemon
type Torrent struct {
	Hash         string
	Name         string
	State        string
	Progress     float64
	Size         int64
	DlSpeed      int64
	UpSpeed      int64
	ETA          int64
	Ratio        float64
	Category     string
	Tags         []string
	AddedOn      int64
	CompletionOn int64
	SavePath     string
}

// Server is a fake qBittorrent daemon
type Server struct {
	*httptest.Server

	Username string
	Password string

	// LoginDelay delays every login response.
	LoginDelay time.Duration
	// TagsAsList encodes tags as JSON arrays instead of comma separated strings.
	TagsAsList bool
	// NoCategoriesEndpoint answers 404 on /torrents/categories.
	NoCategoriesEndpoint bool
	// V5Endpoints answers 404 on pause/resume and serves stop/start instead.
	V5Endpoints bool
	// FailPaths answers 500 on the listed API paths, e.g. "/api/v2/torrents/info".
	FailPaths map[string]bool

	logins   atomic.Int64
	requests atomic.Int64

	mu         sync.Mutex
	torrents   []*Torrent
	categories map[string]string
	sessions   map[string]bool
	lastAdd    map[string]string
}

// NewServer starts a fake daemon accepting admin/adminPassword.
func NewServer(torrents ...Torrent) *Server {
	s := &Server{
		Username:   "admin",
		Password:   "adminPassword",
		categories: map[string]string{},
		sessions:   map[string]bool{},
		FailPaths:  map[string]bool{},
	}
	for i := range torrents {
		t := torrents[i]
		s.torrents = append(s.torrents, &t)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", s.handleLogin)
	mux.HandleFunc("/api/v2/app/webapiVersion", s.authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("2.9.3"))
	}))
	mux.HandleFunc("/api/v2/sync/maindata", s.authed(s.handleMainData))
	mux.HandleFunc("/api/v2/torrents/info", s.authed(s.handleInfo))
	mux.HandleFunc("/api/v2/torrents/add", s.authed(s.handleAdd))
	mux.HandleFunc("/api/v2/torrents/delete", s.authed(s.handleDelete))
	mux.HandleFunc("/api/v2/torrents/pause", s.authed(s.legacy(s.handleState(true))))
	mux.HandleFunc("/api/v2/torrents/resume", s.authed(s.legacy(s.handleState(false))))
	mux.HandleFunc("/api/v2/torrents/stop", s.authed(s.modern(s.handleState(true))))
	mux.HandleFunc("/api/v2/torrents/start", s.authed(s.modern(s.handleState(false))))
	mux.HandleFunc("/api/v2/torrents/setCategory", s.authed(s.handleSetCategory))
	mux.HandleFunc("/api/v2/torrents/addTags", s.authed(s.handleAddTags))
	mux.HandleFunc("/api/v2/torrents/categories", s.authed(s.handleCategories))

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	return s
}

// Logins returns the number of login requests received.
func (s *Server) Logins() int64 {
	return s.logins.Load()
}

// Requests returns the number of HTTP requests received, logins included.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// AddCategory registers a category with a save path.
func (s *Server) AddCategory(name, savePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[name] = savePath
}

// ExpireSessions forgets every issued session cookie.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = map[string]bool{}
}

// LastAdd returns the form fields of the most recent add request.
func (s *Server) LastAdd() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAdd
}

// Torrent returns a copy of the torrent with the given hash.
func (s *Server) Torrent(hash string) (Torrent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.torrents {
		if t.Hash == hash {
			return *t, true
		}
	}
	return Torrent{}, false
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.logins.Add(1)
	if s.LoginDelay > 0 {
		time.Sleep(s.LoginDelay)
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("username") != s.Username || r.PostForm.Get("password") != s.Password {
		_, _ = w.Write([]byte("Fails."))
		return
	}

	sid := "sid-" + time.Now().Format("150405.000000000")
	s.mu.Lock()
	s.sessions[sid] = true
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sid, Path: "/"})
	_, _ = w.Write([]byte("Ok."))
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.FailPaths[r.URL.Path] {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		c, err := r.Cookie(sessionCookie)
		s.mu.Lock()
		ok := err == nil && s.sessions[c.Value]
		s.mu.Unlock()
		if !ok {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func (s *Server) legacy(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.V5Endpoints {
			http.NotFound(w, r)
			return
		}
		next(w, r)
	}
}

func (s *Server) modern(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.V5Endpoints {
			http.NotFound(w, r)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := q.Get("filter")
	var hashes map[string]bool
	if h := q.Get("hashes"); h != "" {
		hashes = map[string]bool{}
		for _, hash := range strings.Split(h, "|") {
			hashes[hash] = true
		}
	}

	s.mu.Lock()
	out := make([]map[string]any, 0, len(s.torrents))
	for _, t := range s.torrents {
		if hashes != nil && !hashes[t.Hash] {
			continue
		}
		if !matchesFilter(t, filter) {
			continue
		}
		out = append(out, s.encode(t))
	}
	s.mu.Unlock()

	writeJSON(w, out)
}

func (s *Server) encode(t *Torrent) map[string]any {
	var tags any = strings.Join(t.Tags, ", ")
	if s.TagsAsList {
		tags = t.Tags
	}
	return map[string]any{
		"hash":          t.Hash,
		"name":          t.Name,
		"state":         t.State,
		"progress":      t.Progress,
		"size":          t.Size,
		"total_size":    t.Size,
		"dlspeed":       t.DlSpeed,
		"upspeed":       t.UpSpeed,
		"eta":           t.ETA,
		"ratio":         t.Ratio,
		"category":      t.Category,
		"tags":          tags,
		"added_on":      t.AddedOn,
		"completion_on": t.CompletionOn,
		"save_path":     t.SavePath,
	}
}

func matchesFilter(t *Torrent, filter string) bool {
	switch filter {
	case "", "all":
		return true
	case "paused", "stopped":
		return strings.HasPrefix(t.State, "paused") || strings.HasPrefix(t.State, "stopped")
	case "downloading":
		return oneOf(t.State, "downloading", "metaDL", "stalledDL", "queuedDL", "forcedDL")
	case "seeding":
		return oneOf(t.State, "uploading", "stalledUP", "queuedUP", "forcedUP")
	case "completed":
		return t.Progress >= 1
	case "stalled":
		return oneOf(t.State, "stalledUP", "stalledDL")
	case "checking":
		return oneOf(t.State, "checkingUP", "checkingDL", "checkingResumeData")
	case "error":
		return oneOf(t.State, "error", "missingFiles")
	}
	return false
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	// qBittorrent accepts urlencoded adds as well as multipart
	values, err := formValues(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fields := map[string]string{}
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAdd = fields

	paused := fields["paused"] == "true" || fields["stopped"] == "true"
	for _, link := range strings.Split(fields["urls"], "\n") {
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		hash := hashFromLink(link)
		state := "downloading"
		if paused {
			state = "pausedDL"
		}
		var tags []string
		if fields["tags"] != "" {
			tags = strings.Split(fields["tags"], ",")
		}
		s.torrents = append(s.torrents, &Torrent{
			Hash:     strings.ToLower(hash),
			Name:     hash,
			State:    state,
			Category: fields["category"],
			Tags:     tags,
			SavePath: fields["savepath"],
			AddedOn:  time.Now().Unix(),
			ETA:      8640000,
		})
	}
	_, _ = w.Write([]byte("Ok."))
}

func formValues(r *http.Request) (map[string][]string, error) {
	err := r.ParseMultipartForm(1 << 20)
	switch {
	case err == nil:
		return r.MultipartForm.Value, nil
	case errors.Is(err, http.ErrNotMultipart):
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return r.PostForm, nil
	default:
		return nil, err
	}
}

func hashFromLink(link string) string {
	const marker = "xt=urn:btih:"
	if i := strings.Index(link, marker); i >= 0 {
		rest := link[i+len(marker):]
		if j := strings.IndexByte(rest, '&'); j >= 0 {
			rest = rest[:j]
		}
		return rest
	}
	return link
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	hashes := strings.Split(r.PostForm.Get("hashes"), "|")

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.torrents[:0]
	for _, t := range s.torrents {
		if !oneOf(t.Hash, hashes...) {
			kept = append(kept, t)
		}
	}
	s.torrents = kept
}

func (s *Server) handleState(pause bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		hashes := strings.Split(r.PostForm.Get("hashes"), "|")

		s.mu.Lock()
		defer s.mu.Unlock()
		for _, t := range s.torrents {
			if !oneOf(t.Hash, hashes...) {
				continue
			}
			done := t.Progress >= 1
			switch {
			case pause && done:
				t.State = "pausedUP"
			case pause:
				t.State = "pausedDL"
			case done:
				t.State = "uploading"
			default:
				t.State = "downloading"
			}
		}
	}
}

func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	hashes := strings.Split(r.PostForm.Get("hashes"), "|")
	category := r.PostForm.Get("category")

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.torrents {
		if oneOf(t.Hash, hashes...) {
			t.Category = category
		}
	}
}

func (s *Server) handleAddTags(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	hashes := strings.Split(r.PostForm.Get("hashes"), "|")
	tags := strings.Split(r.PostForm.Get("tags"), ",")

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.torrents {
		if oneOf(t.Hash, hashes...) {
			t.Tags = append(t.Tags, tags...)
		}
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if s.NoCategoriesEndpoint {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	out := map[string]map[string]string{}
	for name, path := range s.categories {
		out[name] = map[string]string{"name": name, "savePath": path}
	}
	s.mu.Unlock()

	writeJSON(w, out)
}

func (s *Server) handleMainData(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	torrents := map[string]any{}
	var dl, up int64
	for _, t := range s.torrents {
		torrents[t.Hash] = s.encode(t)
		dl += t.DlSpeed
		up += t.UpSpeed
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"rid":         1,
		"full_update": true,
		"torrents":    torrents,
		"server_state": map[string]any{
			"dl_info_speed":        dl,
			"dl_info_data":         int64(10 << 30),
			"up_info_speed":        up,
			"up_info_data":         int64(5 << 30),
			"dht_nodes":            312,
			"connection_status":    "connected",
			"queueing":             true,
			"use_alt_speed_limits": false,
			"free_space_on_disk":   int64(100 << 30),
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
