package simulator

import (
	"github.com/rfd-conformance/rfd-test-harness/soap"
)

// Base can be embedded by test implementations to provide Name and fault helpers that also
// record the fault in the transaction log.
type Base struct {
	name string
}

func NewBase(name string) Base { return Base{name: name} }

func (b Base) Name() string { return b.name }

func (b Base) SenderFault(c *Context, status, format string, args ...interface{}) *soap.Fault {
	return b.recordFault(c, soap.SenderFault(status, format, args...))
}

func (b Base) ReceiverFault(c *Context, status, format string, args ...interface{}) *soap.Fault {
	return b.recordFault(c, soap.ReceiverFault(status, format, args...))
}

func (b Base) recordFault(c *Context, f *soap.Fault) *soap.Fault {
	if c != nil && c.Log != nil {
		_ = c.Log.SetFault(string(f.Code), f.Status, f.Reason)
	}
	return f
}
