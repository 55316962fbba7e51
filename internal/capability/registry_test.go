package capability

import "testing"

func TestRegisterMCPAndLookupTool(t *testing.T) {
	r := New()
	r.RegisterMCP(MCP{
		ServerID: "search1",
		Name:     "Search Server",
		Enabled:  true,
		Tools: []MCPTool{
			{Name: "web_search", Description: "search the web"},
		},
	})

	if _, ok := r.GetMCP("search1"); !ok {
		t.Fatal("expected server to be registered")
	}
	if tool := r.GetMCPTool("search1", "web_search"); tool == nil {
		t.Fatal("expected tool lookup to succeed")
	}
	if r.GetMCPTool("search1", "missing") != nil {
		t.Fatal("expected missing tool lookup to return nil")
	}
}

func TestDisabledMCPExcludedFromAvailable(t *testing.T) {
	r := New()
	r.RegisterMCP(MCP{ServerID: "a", Enabled: true})
	r.RegisterMCP(MCP{ServerID: "b", Enabled: false})

	avail := r.AvailableMCPs()
	if len(avail) != 1 || avail[0].ServerID != "a" {
		t.Fatalf("expected only enabled server in AvailableMCPs, got %+v", avail)
	}
}

func TestFindSkillByKeywordCaseInsensitive(t *testing.T) {
	r := New()
	r.RegisterSkill(Skill{SkillID: "s1", Name: "Weather", TriggerKeywords: []string{"天气", "Weather"}})

	if r.FindSkillByKeyword("今天的天气怎么样") == nil {
		t.Fatal("expected keyword match on Chinese trigger")
	}
	if r.FindSkillByKeyword("WEATHER report please") == nil {
		t.Fatal("expected case-insensitive match")
	}
	if r.FindSkillByKeyword("unrelated text") != nil {
		t.Fatal("expected no match for unrelated text")
	}
}

func TestExecuteToolRunsRegisteredImplementation(t *testing.T) {
	r := New()
	r.RegisterTool(Tool{
		ToolName: "echo",
		Execute: func(params map[string]any) (any, error) {
			return params["msg"], nil
		},
	})

	out, err := r.ExecuteTool("echo", map[string]any{"msg": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hi" {
		t.Fatalf("expected echoed value, got %v", out)
	}

	if _, err := r.ExecuteTool("missing", nil); err == nil {
		t.Fatal("expected error for unregistered tool")
	}
}

func TestGetCapabilityDescriptionCachedAndInvalidated(t *testing.T) {
	r := New()
	r.RegisterTool(Tool{ToolName: "t1", Description: "first"})

	d1 := r.GetCapabilityDescription()
	if d1 == "" {
		t.Fatal("expected non-empty description")
	}
	d2 := r.GetCapabilityDescription()
	if d1 != d2 {
		t.Fatal("expected cached description to be stable")
	}

	r.RegisterTool(Tool{ToolName: "t2", Description: "second"})
	d3 := r.GetCapabilityDescription()
	if d3 == d1 {
		t.Fatal("expected cache invalidation after new registration")
	}
}

func TestGetToolsForLLMNamesMCPToolsWithServerPrefix(t *testing.T) {
	r := New()
	r.RegisterMCP(MCP{
		ServerID: "srv1",
		Enabled:  true,
		Tools:    []MCPTool{{Name: "lookup", Description: "look things up"}},
	})
	r.RegisterTool(Tool{ToolName: "builtin_tool", Description: "native"})

	specs := r.GetToolsForLLM()
	var sawMCP, sawBuiltin bool
	for _, s := range specs {
		if s.Function.Name == "mcp_srv1_lookup" {
			sawMCP = true
		}
		if s.Function.Name == "builtin_tool" {
			sawBuiltin = true
		}
	}
	if !sawMCP {
		t.Fatal("expected mcp_srv1_lookup in tool specs")
	}
	if !sawBuiltin {
		t.Fatal("expected builtin_tool in tool specs")
	}
}

func TestHasAnyCapabilityAndClear(t *testing.T) {
	r := New()
	if r.HasAnyCapability() {
		t.Fatal("expected empty registry to report no capabilities")
	}
	r.RegisterTool(Tool{ToolName: "t"})
	if !r.HasAnyCapability() {
		t.Fatal("expected registry with a tool to report capability")
	}
	r.Clear()
	if r.HasAnyCapability() {
		t.Fatal("expected Clear to remove all capabilities")
	}
}
