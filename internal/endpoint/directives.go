package endpoint

import "github.com/nerrad567/gray-logic-voicebridge/internal/alexa"

// DirectiveKind selects how the manager handles a directive.
type DirectiveKind int

const (
	DirectiveUnknown DirectiveKind = iota
	DirectiveDiscovery
	DirectiveReportState
	DirectiveControl
)

// String returns the kind name used in logs and metrics.
func (k DirectiveKind) String() string {
	switch k {
	case DirectiveDiscovery:
		return "discovery"
	case DirectiveReportState:
		return "report_state"
	case DirectiveControl:
		return "control"
	default:
		return "unknown"
	}
}

// managerDirectives are handled by the manager rather than a device.
// Keyed by namespace, then by directive name.
var managerDirectives = map[string]map[string]DirectiveKind{
	alexa.NamespaceDiscovery: {alexa.NameDiscover: DirectiveDiscovery},
	alexa.NamespaceAlexa:     {alexa.NameReportState: DirectiveReportState},
}

// MatchDirective classifies d. Directives outside the manager registry that
// address an endpoint are control directives.
func MatchDirective(d alexa.Directive) DirectiveKind {
	if names, ok := managerDirectives[d.Header.Namespace]; ok {
		if kind, ok := names[d.Header.Name]; ok {
			return kind
		}
		return DirectiveUnknown
	}
	if d.EndpointID() != "" {
		return DirectiveControl
	}
	return DirectiveUnknown
}
