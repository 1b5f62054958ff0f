package simulator

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/rfd-conformance/rfd-test-harness/rfd"
	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

// EndpointInfo describes a mounted endpoint for status reports.
type EndpointInfo struct {
	Name       string            `json:"name"`
	Actor      rfd.Actor         `json:"actor"`
	Path       string            `json:"path"`
	URL        string            `json:"url"`
	Operations []string          `json:"operations"`
	Tests      map[string]string `json:"tests,omitempty"`
	Default    string            `json:"defaultTest,omitempty"`
}

type mountedEndpoint struct {
	info    EndpointInfo
	handler http.Handler
}

// Registry mounts simulator endpoints at /<application><path>. Every endpoint is wrapped in the
// capture middleware so that its traffic produces WSLog records. Endpoints can be added and
// removed while the server is running.
type Registry struct {
	application string
	baseURL     string
	deps        Dependencies
	submitter   wslog.Submitter
	byPath      map[string]*mountedEndpoint
	byName      map[string]string
	lock        sync.RWMutex
}

func NewRegistry(application, baseURL string, deps Dependencies, submitter wslog.Submitter) *Registry {
	return &Registry{
		application: strings.Trim(application, "/"),
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		deps:        deps,
		submitter:   submitter,
		byPath:      make(map[string]*mountedEndpoint),
		byName:      make(map[string]string),
	}
}

// MountPath returns the path an endpoint with the given configured path is served at.
func (r *Registry) MountPath(path string) string {
	path = "/" + strings.Trim(path, "/")
	if r.application == "" {
		return path
	}
	return "/" + r.application + path
}

// SetBaseURL changes the base URL reported for endpoints; it is called once the listener
// address is known.
func (r *Registry) SetBaseURL(baseURL string) {
	r.lock.Lock()
	r.baseURL = strings.TrimSuffix(baseURL, "/")
	for _, e := range r.byPath {
		e.info.URL = r.baseURL + e.info.Path
	}
	r.lock.Unlock()
}

// Add creates the actor service for config and mounts it.
func (r *Registry) Add(config EndpointConfig) (EndpointInfo, error) {
	if err := config.CheckTests(); err != nil {
		return EndpointInfo{}, err
	}
	service, err := NewService(config, r.deps)
	if err != nil {
		return EndpointInfo{}, err
	}
	path := r.MountPath(config.Path)

	info := EndpointInfo{
		Name:  config.Name,
		Actor: config.Actor,
		Path:  path,
	}
	for _, t := range config.Actor.Transactions() {
		info.Operations = append(info.Operations, t.String())
	}
	if config.Tests.Default != nil {
		info.Default = config.Tests.Default.Test
	}
	if len(config.Tests.Forms) > 0 {
		info.Tests = make(map[string]string, len(config.Tests.Forms))
		for formID, ref := range config.Tests.Forms {
			info.Tests[formID] = ref.Test
		}
	}

	handler := wslog.Capture(config.Name, string(config.Actor), service, wslog.CaptureOptions{
		Filter:    config.Capture,
		Submitter: r.submitter,
		Logger:    r.deps.Logger,
	})

	r.lock.Lock()
	defer r.lock.Unlock()
	if _, dup := r.byName[config.Name]; dup {
		return EndpointInfo{}, fmt.Errorf("endpoint %q is already mounted", config.Name)
	}
	if existing, dup := r.byPath[path]; dup {
		return EndpointInfo{}, fmt.Errorf("path %s is already used by endpoint %q", path, existing.info.Name)
	}
	info.URL = r.baseURL + path
	r.byPath[path] = &mountedEndpoint{info: info, handler: handler}
	r.byName[config.Name] = path
	if r.deps.Logger != nil {
		r.deps.Logger.Info("Mounted endpoint", "name", config.Name, "actor", config.Actor, "path", path)
	}
	return info, nil
}

// Remove unmounts the named endpoint. It returns false if there was no such endpoint.
func (r *Registry) Remove(name string) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	path, ok := r.byName[name]
	if !ok {
		return false
	}
	delete(r.byName, name)
	delete(r.byPath, path)
	return true
}

// Endpoints returns the mounted endpoints sorted by name.
func (r *Registry) Endpoints() []EndpointInfo {
	r.lock.RLock()
	ret := make([]EndpointInfo, 0, len(r.byPath))
	for _, e := range r.byPath {
		ret = append(ret, e.info)
	}
	r.lock.RUnlock()
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}

func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	path := req.URL.Path
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	r.lock.RLock()
	e := r.byPath[path]
	r.lock.RUnlock()
	if e == nil {
		if r.deps.Logger != nil {
			r.deps.Logger.Debug("Request for unknown endpoint", "path", req.URL.Path)
		}
		http.NotFound(w, req)
		return
	}
	e.handler.ServeHTTP(w, req)
}
