// Package capability implements the per-agent catalogue of MCP servers,
// skill packs, and built-in tools, and produces the text description and
// LLM function-calling schema the Actor Base engine feeds into a system
// prompt.
package capability

import (
	"fmt"
	"strings"
	"sync"
)

// MCPTool is one tool advertised by an MCP server's list_tools response.
type MCPTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// MCP is one registered MCP server and its tool catalogue.
type MCP struct {
	ServerID    string    `json:"server_id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Enabled     bool      `json:"enabled"`
	UseProxy    bool      `json:"use_proxy"`
	Description string    `json:"description"`
	Tools       []MCPTool `json:"tools"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ToolNames returns the names of every tool this server advertises.
func (m MCP) ToolNames() []string {
	names := make([]string, 0, len(m.Tools))
	for _, t := range m.Tools {
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return names
}

// ToolByName returns the tool matching name, or nil.
func (m MCP) ToolByName(name string) *MCPTool {
	for i := range m.Tools {
		if m.Tools[i].Name == name {
			return &m.Tools[i]
		}
	}
	return nil
}

func (m MCP) describe() string {
	names := m.ToolNames()
	shown := names
	suffix := ""
	if len(names) > 10 {
		shown = names[:10]
		suffix = fmt.Sprintf(" 等 %d 个工具", len(names))
	}
	desc := m.Description
	if desc == "" {
		desc = "无描述"
	}
	return fmt.Sprintf("%s: %s [工具: %s%s]", m.Name, desc, strings.Join(shown, ", "), suffix)
}

// Skill is a named, reusable sequence of steps (often MCP calls) assigned
// to an agent.
type Skill struct {
	SkillID          string           `json:"skill_id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	TriggerKeywords  []string         `json:"trigger_keywords"`
	Steps            []map[string]any `json:"steps"`
	RequiredMCPs     []string         `json:"required_mcps"`
	RequiredTools    []string         `json:"required_tools"`
}

func (s Skill) describe() string {
	keywords := "无"
	if len(s.TriggerKeywords) > 0 {
		n := s.TriggerKeywords
		if len(n) > 5 {
			n = n[:5]
		}
		keywords = strings.Join(n, ", ")
	}
	desc := s.Description
	if desc == "" {
		desc = "无描述"
	}
	return fmt.Sprintf("%s: %s [触发词: %s]", s.Name, desc, keywords)
}

// ToolExecuteFunc is a built-in tool's implementation.
type ToolExecuteFunc func(params map[string]any) (any, error)

// Tool is a built-in, code-defined capability.
type Tool struct {
	ToolName    string         `json:"tool_name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Execute     ToolExecuteFunc `json:"-"`
}

func (t Tool) describe() string {
	desc := t.Description
	if desc == "" {
		desc = "无描述"
	}
	return fmt.Sprintf("%s: %s", t.ToolName, desc)
}

// FunctionSpec is one entry in the OpenAI-function-calling tools array
// GetToolsForLLM returns.
type FunctionSpec struct {
	Type     string           `json:"type"`
	Function FunctionSpecBody `json:"function"`
}

// FunctionSpecBody is the "function" object inside a FunctionSpec.
type FunctionSpecBody struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Registry is the per-actor catalogue of MCP servers, skill packs, and
// built-in tools. It is rebuilt on every actor activation and never shared
// across actors.
type Registry struct {
	mu sync.Mutex

	mcps   map[string]MCP
	skills map[string]Skill
	tools  map[string]Tool

	descriptionCache *string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		mcps:   make(map[string]MCP),
		skills: make(map[string]Skill),
		tools:  make(map[string]Tool),
	}
}

// RegisterMCP adds or replaces an MCP server entry.
func (r *Registry) RegisterMCP(m MCP) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mcps[m.ServerID] = m
	r.invalidateCache()
}

// RegisterMCPFromDict is the dict-shaped bulk-load entry point, matching
// the "register_mcp_from_dict" operation of the original core.
func (r *Registry) RegisterMCPFromDict(server map[string]any) {
	m := MCP{
		ServerID:    stringField(server, "server_id"),
		Name:        stringField(server, "name"),
		URL:         stringField(server, "url"),
		Enabled:     boolField(server, "enabled", true),
		UseProxy:    boolField(server, "use_proxy", true),
		Description: stringField(server, "description"),
	}
	if rawTools, ok := server["tools"].([]MCPTool); ok {
		m.Tools = rawTools
	}
	r.RegisterMCP(m)
}

// GetMCP returns the server registered under serverID, or ok=false.
func (r *Registry) GetMCP(serverID string) (MCP, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mcps[serverID]
	return m, ok
}

// GetMCPTool returns the named tool on serverID, or nil.
func (r *Registry) GetMCPTool(serverID, toolName string) *MCPTool {
	m, ok := r.GetMCP(serverID)
	if !ok {
		return nil
	}
	return m.ToolByName(toolName)
}

// AvailableMCPs returns every enabled MCP server.
func (r *Registry) AvailableMCPs() []MCP {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []MCP
	for _, m := range r.mcps {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

// RegisterSkill adds or replaces a skill pack entry.
func (r *Registry) RegisterSkill(s Skill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[s.SkillID] = s
	r.invalidateCache()
}

// AvailableSkills returns every registered skill.
func (r *Registry) AvailableSkills() []Skill {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	return out
}

// FindSkillByKeyword does a case-insensitive substring match of text
// against every skill's trigger keywords, returning the first match.
func (r *Registry) FindSkillByKeyword(text string) *Skill {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.skills {
		for _, kw := range s.TriggerKeywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				skill := s
				return &skill
			}
		}
	}
	return nil
}

// RegisterTool adds or replaces a built-in tool entry.
func (r *Registry) RegisterTool(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.ToolName] = t
	r.invalidateCache()
}

// AvailableTools returns every registered built-in tool.
func (r *Registry) AvailableTools() []Tool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// ExecuteTool runs the named built-in tool, returning an error if it is
// unregistered or has no implementation.
func (r *Registry) ExecuteTool(toolName string, params map[string]any) (any, error) {
	r.mu.Lock()
	t, ok := r.tools[toolName]
	r.mu.Unlock()
	if !ok || t.Execute == nil {
		return nil, fmt.Errorf("capability: tool not found or not callable: %s", toolName)
	}
	return t.Execute(params)
}

func (r *Registry) invalidateCache() {
	r.descriptionCache = nil
}

// GetCapabilityDescription returns the cached multi-section system-prompt
// fragment describing every registered MCP server, skill, and tool. The
// cache is invalidated on every register call.
func (r *Registry) GetCapabilityDescription() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.descriptionCache != nil {
		return *r.descriptionCache
	}

	var lines []string

	var mcps []MCP
	for _, m := range r.mcps {
		if m.Enabled {
			mcps = append(mcps, m)
		}
	}
	if len(mcps) > 0 {
		lines = append(lines, "## 可用的 MCP 工具服务")
		for _, m := range mcps {
			lines = append(lines, "- "+m.describe())
		}
		lines = append(lines, "")
	}

	if len(r.skills) > 0 {
		lines = append(lines, "## 可用的技能包")
		for _, s := range r.skills {
			lines = append(lines, "- "+s.describe())
		}
		lines = append(lines, "")
	}

	if len(r.tools) > 0 {
		lines = append(lines, "## 可用的内置工具")
		for _, t := range r.tools {
			lines = append(lines, "- "+t.describe())
		}
		lines = append(lines, "")
	}

	desc := ""
	if len(lines) > 0 {
		desc = strings.Join(lines, "\n")
	}
	r.descriptionCache = &desc
	return desc
}

// GetToolsForLLM returns the OpenAI-function-calling shaped tool list: MCP
// tools named "mcp_<server_id>_<tool_name>", built-in tools named directly.
func (r *Registry) GetToolsForLLM() []FunctionSpec {
	r.mu.Lock()
	defer r.mu.Unlock()

	var specs []FunctionSpec
	for _, m := range r.mcps {
		if !m.Enabled {
			continue
		}
		for _, t := range m.Tools {
			params := t.InputSchema
			if params == nil {
				params = map[string]any{"type": "object", "properties": map[string]any{}}
			}
			specs = append(specs, FunctionSpec{
				Type: "function",
				Function: FunctionSpecBody{
					Name:        fmt.Sprintf("mcp_%s_%s", m.ServerID, t.Name),
					Description: t.Description,
					Parameters:  params,
				},
			})
		}
	}
	for _, t := range r.tools {
		specs = append(specs, FunctionSpec{
			Type: "function",
			Function: FunctionSpecBody{
				Name:        t.ToolName,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return specs
}

// HasAnyCapability reports whether any MCP, skill, or tool is registered.
func (r *Registry) HasAnyCapability() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mcps) > 0 || len(r.skills) > 0 || len(r.tools) > 0
}

// Clear removes every registered capability.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mcps = make(map[string]MCP)
	r.skills = make(map[string]Skill)
	r.tools = make(map[string]Tool)
	r.invalidateCache()
}

// LoadFromTopicMCPs bulk-registers MCP servers associated with a topic.
func (r *Registry) LoadFromTopicMCPs(configs []map[string]any) {
	for _, c := range configs {
		r.RegisterMCPFromDict(c)
	}
}

// LoadFromAgentConfig bulk-registers an agent's MCP servers and skill
// packs from its stored ext configuration.
func (r *Registry) LoadFromAgentConfig(agentConfig map[string]any) {
	if servers, ok := agentConfig["mcp_servers"].([]map[string]any); ok {
		for _, s := range servers {
			r.RegisterMCPFromDict(s)
		}
	}
	if skills, ok := agentConfig["skills"].([]map[string]any); ok {
		for _, sc := range skills {
			keywords, _ := sc["trigger_keywords"].([]string)
			r.RegisterSkill(Skill{
				SkillID:         stringField(sc, "skill_id"),
				Name:            stringField(sc, "name"),
				Description:     stringField(sc, "description"),
				TriggerKeywords: keywords,
			})
		}
	}
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func boolField(m map[string]any, key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}
