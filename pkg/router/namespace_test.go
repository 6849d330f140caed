package router

import (
	"reflect"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestToolNameRoundTrip(t *testing.T) {
	t.Parallel()

	name := PrefixToolName("github", "create_issue")
	if name != "github:create_issue" {
		t.Fatalf("prefixed name = %q", name)
	}
	upstream, tool, ok := ParseToolName(name)
	if !ok || upstream != "github" || tool != "create_issue" {
		t.Fatalf("parse = (%q, %q, %v)", upstream, tool, ok)
	}
}

func TestParseToolNameSplitsOnFirstSeparatorOnly(t *testing.T) {
	t.Parallel()

	upstream, tool, ok := ParseToolName("a:b:c")
	if !ok || upstream != "a" || tool != "b:c" {
		t.Fatalf("parse(a:b:c) = (%q, %q, %v), expected (a, b:c, true)", upstream, tool, ok)
	}
}

func TestParseToolNameRejectsUnqualified(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"", "plain_tool", ":tool", "upstream:"} {
		if _, _, ok := ParseToolName(bad); ok {
			t.Fatalf("ParseToolName(%q) should fail", bad)
		}
	}
}

func TestResourceURIRoundTrip(t *testing.T) {
	t.Parallel()

	native := "file:///srv/data/report.csv"
	uri := PrefixResourceURI("files", native)
	if uri != "gateway://files/file:///srv/data/report.csv" {
		t.Fatalf("prefixed uri = %q", uri)
	}
	upstream, original, ok := ParseResourceURI(uri)
	if !ok || upstream != "files" || original != native {
		t.Fatalf("parse = (%q, %q, %v)", upstream, original, ok)
	}
}

func TestParseResourceURIRejectsForeignSchemes(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"", "file:///x", "gateway://", "gateway://solo"} {
		if _, _, ok := ParseResourceURI(bad); ok {
			t.Fatalf("ParseResourceURI(%q) should fail", bad)
		}
	}
}

func TestPrefixToolsRewritesWithoutMutating(t *testing.T) {
	t.Parallel()

	original := []*mcp.Tool{
		{Name: "search", Description: "Full-text search"},
		{Name: "fetch"},
	}
	rewritten := PrefixTools("docs", original)
	if len(rewritten) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(rewritten))
	}
	if rewritten[0].Name != "docs:search" || rewritten[0].Description != "[docs] Full-text search" {
		t.Fatalf("unexpected rewrite: %+v", rewritten[0])
	}
	if rewritten[1].Description != "[docs]" {
		t.Fatalf("empty description should become the bare marker, got %q", rewritten[1].Description)
	}
	if original[0].Name != "search" || original[0].Description != "Full-text search" {
		t.Fatalf("input mutated: %+v", original[0])
	}
}

func TestPrefixResourcesAndPrompts(t *testing.T) {
	t.Parallel()

	resources := PrefixResources("kb", []*mcp.Resource{{URI: "doc://a/b", Description: "Docs"}})
	if resources[0].URI != "gateway://kb/doc://a/b" || resources[0].Description != "[kb] Docs" {
		t.Fatalf("unexpected resource rewrite: %+v", resources[0])
	}

	prompts := PrefixPrompts("kb", []*mcp.Prompt{{Name: "summarize"}})
	if prompts[0].Name != "kb:summarize" || prompts[0].Description != "[kb]" {
		t.Fatalf("unexpected prompt rewrite: %+v", prompts[0])
	}
}

func TestRouteToolCall(t *testing.T) {
	t.Parallel()

	upstreams := map[string]int{"github": 1, "jira": 2}

	id, tool, target, ok := RouteToolCall("jira:create:subtask", upstreams)
	if !ok || id != "jira" || tool != "create:subtask" || target != 2 {
		t.Fatalf("route = (%q, %q, %d, %v)", id, tool, target, ok)
	}

	if _, _, _, ok := RouteToolCall("unknown:tool", upstreams); ok {
		t.Fatalf("unknown upstream should not route")
	}
	if _, _, _, ok := RouteToolCall("unqualified", upstreams); ok {
		t.Fatalf("unqualified name should not route")
	}
}

func TestRouteResourceRead(t *testing.T) {
	t.Parallel()

	upstreams := map[string]string{"files": "cfg"}
	id, original, target, ok := RouteResourceRead("gateway://files/file:///etc/motd", upstreams)
	if !ok || id != "files" || original != "file:///etc/motd" || target != "cfg" {
		t.Fatalf("route = (%q, %q, %q, %v)", id, original, target, ok)
	}
	if _, _, _, ok := RouteResourceRead("gateway://other/file:///x", upstreams); ok {
		t.Fatalf("unconfigured upstream should not route")
	}
}

func TestRoundTripPreservesArbitraryNames(t *testing.T) {
	t.Parallel()

	cases := [][2]string{
		{"m", "t"},
		{"srv-1", "tool_with_underscores"},
		{"x", "colon:inside:name"},
	}
	for _, tc := range cases {
		upstream, tool, ok := ParseToolName(PrefixToolName(tc[0], tc[1]))
		if !ok || [2]string{upstream, tool} != tc {
			t.Fatalf("round trip %v = (%q, %q, %v)", tc, upstream, tool, ok)
		}
	}

	uris := [][2]string{
		{"m", "file:///a"},
		{"m", "postgres://db:5432/table"},
	}
	for _, tc := range uris {
		upstream, uri, ok := ParseResourceURI(PrefixResourceURI(tc[0], tc[1]))
		if !ok || !reflect.DeepEqual([2]string{upstream, uri}, tc) {
			t.Fatalf("uri round trip %v = (%q, %q, %v)", tc, upstream, uri, ok)
		}
	}
}
