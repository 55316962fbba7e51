package mcp

import (
	"encoding/json"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/capability"
)

// SyncCapability rebuilds the capability.Registry's MCP catalogue from the
// manager's currently connected servers. It is called on actor activation
// (spec §4.4 Capability Registry is rebuilt per activation) so the system
// prompt always reflects the live tool/server set.
func SyncCapability(mgr *Manager, reg *capability.Registry) {
	if mgr == nil || reg == nil {
		return
	}

	byServer := make(map[string][]capability.MCPTool)
	for _, entry := range listToolsSorted(mgr) {
		byServer[entry.serverID] = append(byServer[entry.serverID], capability.MCPTool{
			Name:        entry.tool.Name,
			Description: entry.tool.Description,
			InputSchema: schemaToMap(entry.tool.InputSchema),
		})
	}

	for _, status := range mgr.Status() {
		if !status.Connected {
			continue
		}
		reg.RegisterMCP(capability.MCP{
			ServerID: status.ID,
			Name:     status.Name,
			Enabled:  true,
			Tools:    byServer[status.ID],
		})
	}
}

func schemaToMap(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
