package router

import "github.com/plexmcp/plexmcp/pkg/protocol"

// MethodBehavior describes how the gateway dispatches a protocol method.
type MethodBehavior int

const (
	// BehaviorUnknown marks methods the gateway does not recognize; callers
	// treat them as routed-but-absent.
	BehaviorUnknown MethodBehavior = iota
	// BehaviorRouted methods are delivered to exactly one upstream.
	BehaviorRouted
	// BehaviorAggregated methods fan out to every configured upstream and
	// the results are merged.
	BehaviorAggregated
	// BehaviorGateway methods are answered locally and never forwarded.
	BehaviorGateway
)

func (b MethodBehavior) String() string {
	switch b {
	case BehaviorRouted:
		return "routed"
	case BehaviorAggregated:
		return "aggregated"
	case BehaviorGateway:
		return "gateway"
	default:
		return "unknown"
	}
}

var methodBehaviors = map[string]MethodBehavior{
	protocol.MethodInitialize:           BehaviorGateway,
	protocol.MethodInitializedNotify:    BehaviorGateway,
	protocol.MethodToolsList:            BehaviorAggregated,
	protocol.MethodResourcesList:        BehaviorAggregated,
	protocol.MethodPromptsList:          BehaviorAggregated,
	protocol.MethodToolsCall:            BehaviorRouted,
	protocol.MethodResourcesRead:        BehaviorRouted,
	protocol.MethodResourcesSubscribe:   BehaviorRouted,
	protocol.MethodResourcesUnsubscribe: BehaviorRouted,
	protocol.MethodPromptsGet:           BehaviorRouted,
	protocol.MethodLoggingSetLevel:      BehaviorRouted,
	protocol.MethodCompletionComplete:   BehaviorRouted,
}

// ClassifyMethod maps a protocol method to its dispatch behavior. Every
// method classifies to exactly one behavior; unrecognized methods return
// BehaviorUnknown.
func ClassifyMethod(method string) MethodBehavior {
	return methodBehaviors[method]
}

// IsRouted reports whether the method targets exactly one upstream.
func IsRouted(method string) bool { return ClassifyMethod(method) == BehaviorRouted }

// IsAggregated reports whether the method fans out to all upstreams.
func IsAggregated(method string) bool { return ClassifyMethod(method) == BehaviorAggregated }

// IsGatewayHandled reports whether the gateway answers the method locally.
func IsGatewayHandled(method string) bool { return ClassifyMethod(method) == BehaviorGateway }
