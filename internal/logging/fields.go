// Package logging provides a standard-fields builder shared by every
// component that emits structured log lines, plus the zap/logr wiring used
// by the workflow runtime.
package logging

import "time"

// Fields is a chainable builder of structured logging key/value pairs.
type Fields map[string]interface{}

func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

func (f Fields) Resource(resourceType, name string) Fields {
	f["resource_type"] = resourceType
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) UserID(id string) Fields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

func (f Fields) RequestID(id string) Fields {
	f["request_id"] = id
	return f
}

func (f Fields) TraceID(id string) Fields {
	f["trace_id"] = id
	return f
}

func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

func (f Fields) Method(method string) Fields {
	f["method"] = method
	return f
}

func (f Fields) URL(url string) Fields {
	f["url"] = url
	return f
}

func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

func (f Fields) Size(bytes int64) Fields {
	f["size_bytes"] = bytes
	return f
}

func (f Fields) Version(v string) Fields {
	f["version"] = v
	return f
}

func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}

// KVs flattens the fields into alternating key/value pairs suitable for a
// logr.Logger's variadic Info/Error calls.
func (f Fields) KVs() []interface{} {
	kvs := make([]interface{}, 0, len(f)*2)
	for k, v := range f {
		kvs = append(kvs, k, v)
	}
	return kvs
}

// ToLogrus returns the fields as a logrus.Fields-compatible map.
func (f Fields) ToLogrus() map[string]interface{} {
	out := make(map[string]interface{}, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// DatabaseFields builds the standard field set for a database operation.
func DatabaseFields(operation, table string) Fields {
	return NewFields().Component("database").Operation(operation).Resource("table", table)
}

// HTTPFields builds the standard field set for an HTTP request/response.
func HTTPFields(method, url string, statusCode int) Fields {
	return NewFields().Custom("component", "http").Method(method).URL(url).StatusCode(statusCode)
}

// WorkflowFields builds the standard field set for a durable-workflow operation.
func WorkflowFields(operation, workflowKey string) Fields {
	return NewFields().Component("workflow").Operation(operation).Resource("workflow", workflowKey)
}

// AIFields builds the standard field set for an LLM call.
func AIFields(operation, model string) Fields {
	return NewFields().Component("ai").Operation(operation).Custom("model", model)
}

// CuratorFields builds the standard field set for a curator pipeline phase.
func CuratorFields(phase string, organizationID string) Fields {
	return NewFields().Component("curator").Operation(phase).Resource("organization", organizationID)
}

// PerformanceFields builds the standard field set for a timed operation.
func PerformanceFields(operation string, d time.Duration, success bool) Fields {
	return NewFields().Custom("component", "performance").Operation(operation).Duration(d).Custom("success", success)
}
