// Package main generates Markdown reference documentation from the registered tool definitions
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-excel/internal/registry"
	"github.com/sammcj/mcp-excel/internal/tools"

	// Import all tools to register them
	_ "github.com/sammcj/mcp-excel/internal/imports"
)

type ToolInfo struct {
	Name        string
	Title       string
	Category    string
	Description string
	ReadOnly    bool
	Parameters  []ParameterInfo
	Examples    []ExampleInfo
	WhenToUse   string
}

type ParameterInfo struct {
	Name        string
	Type        string
	Required    bool
	Description string
	EnumValues  []string
}

type ExampleInfo struct {
	Description string
	Arguments   string
}

type CategoryInfo struct {
	Name  string
	Tools []ToolInfo
}

const docTemplate = `# mcp-excel tool reference

{{len .Tools}} tools. Generated from the tool definitions; do not edit by hand.
{{range .Categories}}
## {{.Name}}
{{range .Tools}}
### {{.Name}}

{{.Title}}{{if .ReadOnly}} (read-only){{end}}

{{.Description}}
{{if .WhenToUse}}
When to use: {{.WhenToUse}}
{{end}}
| Parameter | Type | Required | Description |
|---|---|---|---|
{{range .Parameters}}| ` + "`{{.Name}}`" + ` | {{.Type}} | {{if .Required}}yes{{else}}no{{end}} | {{.Description}}{{if .EnumValues}} One of: {{join .EnumValues ", "}}.{{end}} |
{{end}}{{range .Examples}}
{{.Description}}:

` + "```json\n{{.Arguments}}\n```" + `
{{end}}{{end}}{{end}}`

func main() {
	var (
		output     = flag.String("output", "docs/tools.md", "Output file")
		additional = flag.Bool("all", true, "Include tools that need ENABLE_ADDITIONAL_TOOLS")
	)
	flag.Parse()

	if *additional {
		if err := os.Setenv("ENABLE_ADDITIONAL_TOOLS", "all"); err != nil {
			fail(err)
		}
	}

	var toolInfos []ToolInfo
	categories := make(map[string][]ToolInfo)
	for _, tool := range registry.GetEnabledTools() {
		info := extractToolInfo(tool)
		toolInfos = append(toolInfos, info)
		categories[info.Category] = append(categories[info.Category], info)
	}
	sort.Slice(toolInfos, func(i, j int) bool { return toolInfos[i].Name < toolInfos[j].Name })

	var categoryList []CategoryInfo
	for name, catTools := range categories {
		sort.Slice(catTools, func(i, j int) bool { return catTools[i].Name < catTools[j].Name })
		categoryList = append(categoryList, CategoryInfo{Name: name, Tools: catTools})
	}
	sort.Slice(categoryList, func(i, j int) bool { return categoryList[i].Name < categoryList[j].Name })

	tmpl := template.Must(template.New("tools").Funcs(template.FuncMap{"join": strings.Join}).Parse(docTemplate))

	if err := os.MkdirAll(filepath.Dir(*output), 0755); err != nil {
		fail(err)
	}
	file, err := os.Create(*output)
	if err != nil {
		fail(err)
	}
	defer file.Close()

	data := struct {
		Tools      []ToolInfo
		Categories []CategoryInfo
	}{toolInfos, categoryList}
	if err := tmpl.Execute(file, data); err != nil {
		fail(err)
	}

	fmt.Printf("Wrote %d tools to %s\n", len(toolInfos), *output)
}

func extractToolInfo(tool tools.Tool) ToolInfo {
	def := tool.Definition()

	info := ToolInfo{
		Name:        def.Name,
		Title:       def.Annotations.Title,
		Category:    inferCategory(def.Name),
		Description: def.Description,
		ReadOnly:    def.Annotations.ReadOnlyHint != nil && *def.Annotations.ReadOnlyHint,
		Parameters:  extractParameters(def),
	}

	if provider, ok := tool.(tools.ExtendedHelpProvider); ok {
		if help := provider.ProvideExtendedInfo(); help != nil {
			info.WhenToUse = help.WhenToUse
			for _, example := range help.Examples {
				args, err := json.MarshalIndent(example.Arguments, "", "  ")
				if err != nil {
					continue
				}
				info.Examples = append(info.Examples, ExampleInfo{Description: example.Description, Arguments: string(args)})
			}
		}
	}
	return info
}

func extractParameters(def mcp.Tool) []ParameterInfo {
	required := make(map[string]bool, len(def.InputSchema.Required))
	for _, name := range def.InputSchema.Required {
		required[name] = true
	}

	var params []ParameterInfo
	for name, raw := range def.InputSchema.Properties {
		schema, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		param := ParameterInfo{Name: name, Required: required[name]}
		param.Description, _ = schema["description"].(string)
		switch t := schema["type"].(type) {
		case string:
			param.Type = t
		case []string:
			param.Type = strings.Join(t, " or ")
		}
		if enum, ok := schema["enum"].([]string); ok {
			param.EnumValues = enum
		}
		params = append(params, param)
	}

	sort.Slice(params, func(i, j int) bool {
		if params[i].Required != params[j].Required {
			return params[i].Required
		}
		return params[i].Name < params[j].Name
	})
	return params
}

func inferCategory(toolName string) string {
	switch {
	case strings.HasPrefix(toolName, "format_"):
		return "Formatting"
	case strings.HasSuffix(toolName, "_sheet") || toolName == "list_sheets":
		return "Sheets"
	case strings.Contains(toolName, "workbook"):
		return "Workbooks"
	case strings.Contains(toolName, "cell") || strings.Contains(toolName, "range") || strings.Contains(toolName, "formula"):
		return "Cells"
	default:
		return "Utilities"
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "generate-tool-docs: %v\n", err)
	os.Exit(1)
}
