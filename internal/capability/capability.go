package capability

import "strings"

// Source identifies which backend owns a capability and therefore which
// dispatch and normalization path an invocation takes.
type Source string

const (
	// SourcePeer marks capabilities discovered from the peer subprocess.
	SourcePeer Source = "process"

	// SourceLocal marks capabilities backed by in-process handlers.
	SourceLocal Source = "inProcess"
)

// Capability is a named, invocable operation in the registry's merged
// namespace. Instances are created at discovery (peer) or registration
// (local) time and never mutated afterwards.
type Capability struct {
	Name        string
	Description string

	// InputSchema is a uniform structural view of the accepted arguments
	// (a JSON Schema object as a plain map). For local capabilities this
	// is derived from the typed schema; the typed validator itself stays
	// with the local source.
	InputSchema map[string]any

	Source Source
}

// DeclaresParam reports whether the capability's input schema declares a
// top-level property with the given name. Used to gate context enrichment:
// context fields are only injected into arguments the schema accepts.
func (c *Capability) DeclaresParam(name string) bool {
	props, ok := c.InputSchema["properties"].(map[string]any)
	if !ok {
		return false
	}

	_, declared := props[name]

	return declared
}

// Result is the uniform outcome of an invocation, regardless of source.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Errorf builds a failed Result from an error message.
func Errorf(message string) Result {
	return Result{Success: false, Error: message}
}

// Context carries caller identity and scope into an invocation. Fields are
// merged into arguments only when the target capability's schema declares
// the matching parameter.
type Context struct {
	// UserID identifies the acting user.
	UserID string

	// ProjectID identifies the project/resource scope.
	ProjectID string

	// OrganizationID identifies the tenant.
	OrganizationID string
}

// Fields returns the argument names and values this context can inject.
// Empty values are omitted.
func (c Context) Fields() map[string]string {
	fields := make(map[string]string, 3)

	if c.UserID != "" {
		fields["userId"] = c.UserID
	}

	if c.ProjectID != "" {
		fields["projectId"] = c.ProjectID
	}

	if c.OrganizationID != "" {
		fields["organizationId"] = c.OrganizationID
	}

	return fields
}

// Category is a coarse, best-effort classification of a capability.
type Category string

const (
	CategoryQuery   Category = "query"
	CategoryAction  Category = "action"
	CategoryNotify  Category = "notify"
	CategoryGeneral Category = "general"
)

// categoryVerbs maps name substrings to categories. Order matters: the
// first match wins.
var categoryVerbs = []struct {
	verb     string
	category Category
}{
	{"list", CategoryQuery},
	{"get", CategoryQuery},
	{"search", CategoryQuery},
	{"find", CategoryQuery},
	{"create", CategoryAction},
	{"update", CategoryAction},
	{"delete", CategoryAction},
	{"add", CategoryAction},
	{"remove", CategoryAction},
	{"set", CategoryAction},
	{"send", CategoryNotify},
	{"notify", CategoryNotify},
	{"post", CategoryNotify},
}

// Categorize infers a category from the capability name by substring
// matching against a small fixed set of verbs. This is a best-effort
// classifier, not an authoritative taxonomy: unmatched names fall back to
// CategoryGeneral.
func Categorize(name string) Category {
	lower := strings.ToLower(name)

	for _, cv := range categoryVerbs {
		if strings.Contains(lower, cv.verb) {
			return cv.category
		}
	}

	return CategoryGeneral
}
