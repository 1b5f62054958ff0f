package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cast"

	"github.com/rfd-conformance/rfd-test-harness/archive"
	"github.com/rfd-conformance/rfd-test-harness/rfd"
	"github.com/rfd-conformance/rfd-test-harness/soap"
	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

// ErrUnknownTest is returned when a configuration names a test that was never registered.
var ErrUnknownTest = errors.New("unknown test")

// Test is a named test implementation. It answers one or more RFD operations by also
// implementing RetrieveFormTest, SubmitFormTest, ArchiveFormTest or ClarificationsTest.
type Test interface {
	Name() string
}

type RetrieveFormTest interface {
	Test
	RetrieveForm(c *Context, req *rfd.RetrieveFormRequest) (*rfd.RetrieveFormResponse, error)
}

type SubmitFormTest interface {
	Test
	SubmitForm(c *Context, req *rfd.SubmitFormRequest) (*rfd.SubmitFormResponse, error)
}

type ArchiveFormTest interface {
	Test
	ArchiveForm(c *Context, req *rfd.ArchiveFormRequest) (*rfd.ArchiveFormResponse, error)
}

type ClarificationsTest interface {
	Test
	RetrieveClarifications(c *Context, req *rfd.RetrieveClarificationsRequest) (
		*rfd.RetrieveClarificationsResponse, error)
}

// Context is what a test sees of the transaction it is handling.
type Context struct {
	ctx      context.Context
	Log      *wslog.Log
	Logger   *slog.Logger
	Archive  archive.Store
	Endpoint string
	Actor    rfd.Actor
	Header   soap.Header
	Params   Params
}

// Context returns the request context.
func (c *Context) Context() context.Context { return c.ctx }

// AddValue records a name/value pair in the transaction log. Values added after the log was
// closed are dropped with a debug message.
func (c *Context) AddValue(name, value string) {
	if err := c.Log.AddValue(name, value); err != nil {
		c.Logger.Debug("Value not recorded", "name", name, "error", err)
	}
}

// Params holds the loosely typed parameters given to a test in the configuration file.
type Params map[string]interface{}

func (p Params) String(key, defaultValue string) string {
	if v, ok := p[key]; ok && v != nil {
		if s := cast.ToString(v); s != "" {
			return s
		}
	}
	return defaultValue
}

func (p Params) Int(key string, defaultValue int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return defaultValue, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", key, err)
	}
	return n, nil
}

// Strings accepts either a list or a comma-separated string.
func (p Params) Strings(key string) []string {
	v, ok := p[key]
	if !ok || v == nil {
		return nil
	}
	var items []string
	if s, isString := v.(string); isString {
		items = strings.Split(s, ",")
	} else {
		items = cast.ToStringSlice(v)
	}
	ret := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			ret = append(ret, item)
		}
	}
	return ret
}

// Factory creates a test instance from its configured parameters.
type Factory func(name string, params Params) (Test, error)

var (
	registry     = map[string]Factory{}
	registryLock sync.RWMutex
)

// Register makes a test available by name. It panics if the name is already taken, since that
// can only be a programming error.
func Register(name string, factory Factory) {
	registryLock.Lock()
	defer registryLock.Unlock()
	if _, dup := registry[name]; dup {
		panic("simulator: test registered twice: " + name)
	}
	registry[name] = factory
}

// Lookup creates an instance of the named test.
func Lookup(name string, params Params) (Test, error) {
	registryLock.RLock()
	factory, ok := registry[name]
	registryLock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTest, name)
	}
	if params == nil {
		params = Params{}
	}
	return factory(name, params)
}

// Registered reports whether a test name is known.
func Registered(name string) bool {
	registryLock.RLock()
	defer registryLock.RUnlock()
	_, ok := registry[name]
	return ok
}

// TestNames returns the registered test names in sorted order.
func TestNames() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()
	ret := make([]string, 0, len(registry))
	for name := range registry {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// Operations lists the transactions a test instance implements.
func Operations(t Test) []rfd.Transaction {
	var ret []rfd.Transaction
	if _, ok := t.(RetrieveFormTest); ok {
		ret = append(ret, rfd.TransactionRetrieveForm)
	}
	if _, ok := t.(SubmitFormTest); ok {
		ret = append(ret, rfd.TransactionSubmitForm)
	}
	if _, ok := t.(ArchiveFormTest); ok {
		ret = append(ret, rfd.TransactionArchiveForm)
	}
	if _, ok := t.(ClarificationsTest); ok {
		ret = append(ret, rfd.TransactionRetrieveClarifications)
	}
	return ret
}
