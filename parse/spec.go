package parse

// ParamKind is the declared type of a tool parameter. Values arrive as raw
// tag text; kinds beyond String add validation on top.
type ParamKind int

const (
	// KindString accepts any text.
	KindString ParamKind = iota
	// KindPath accepts a non-empty relative or absolute path.
	KindPath
	// KindBool accepts "true" or "false".
	KindBool
	// KindEnum accepts one of the values listed in ParamSpec.Enum.
	KindEnum
)

// ParamSpec describes one parameter of a tool.
type ParamSpec struct {
	Name     string
	Kind     ParamKind
	Required bool
	Enum     []string
}

// ToolSpec describes a tool the parser recognizes.
type ToolSpec struct {
	Name   string
	Params []ParamSpec
}

// Param returns the spec for the named parameter, if declared.
func (s ToolSpec) Param(name string) (ParamSpec, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// Tool names recognized by the runtime. The set is closed: anything else in
// angle brackets is ordinary prose and stays text.
const (
	ToolReadFile          = "read_file"
	ToolWriteFile         = "write_file"
	ToolApplyDiff         = "apply_diff"
	ToolExecuteCommand    = "execute_command"
	ToolListFiles         = "list_files"
	ToolSearchFiles       = "search_files"
	ToolBrowserAction     = "browser_action"
	ToolAskFollowup       = "ask_followup_question"
	ToolAttemptCompletion = "attempt_completion"
)

// BrowserActions are the accepted values for browser_action's action param.
var BrowserActions = []string{"launch", "click", "type", "scroll_down", "scroll_up", "close"}

// DefaultSpecs is the closed registry of recognized tools and their
// parameter schemas.
var DefaultSpecs = map[string]ToolSpec{
	ToolReadFile: {
		Name: ToolReadFile,
		Params: []ParamSpec{
			{Name: "path", Kind: KindPath, Required: true},
		},
	},
	ToolWriteFile: {
		Name: ToolWriteFile,
		Params: []ParamSpec{
			{Name: "path", Kind: KindPath, Required: true},
			{Name: "content", Kind: KindString, Required: true},
		},
	},
	ToolApplyDiff: {
		Name: ToolApplyDiff,
		Params: []ParamSpec{
			{Name: "path", Kind: KindPath, Required: true},
			{Name: "diff", Kind: KindString, Required: true},
			{Name: "start_line", Kind: KindString},
			{Name: "end_line", Kind: KindString},
		},
	},
	ToolExecuteCommand: {
		Name: ToolExecuteCommand,
		Params: []ParamSpec{
			{Name: "command", Kind: KindString, Required: true},
			{Name: "requires_approval", Kind: KindBool},
		},
	},
	ToolListFiles: {
		Name: ToolListFiles,
		Params: []ParamSpec{
			{Name: "path", Kind: KindPath, Required: true},
			{Name: "recursive", Kind: KindBool},
		},
	},
	ToolSearchFiles: {
		Name: ToolSearchFiles,
		Params: []ParamSpec{
			{Name: "path", Kind: KindPath, Required: true},
			{Name: "regex", Kind: KindString, Required: true},
			{Name: "file_pattern", Kind: KindString},
		},
	},
	ToolBrowserAction: {
		Name: ToolBrowserAction,
		Params: []ParamSpec{
			{Name: "action", Kind: KindEnum, Required: true, Enum: BrowserActions},
			{Name: "url", Kind: KindString},
			{Name: "coordinate", Kind: KindString},
			{Name: "text", Kind: KindString},
		},
	},
	ToolAskFollowup: {
		Name: ToolAskFollowup,
		Params: []ParamSpec{
			{Name: "question", Kind: KindString, Required: true},
		},
	},
	ToolAttemptCompletion: {
		Name: ToolAttemptCompletion,
		Params: []ParamSpec{
			{Name: "result", Kind: KindString, Required: true},
			{Name: "command", Kind: KindString},
		},
	},
}

// Merged returns DefaultSpecs extended with extra specs, for hosts that
// announce additional tools. Extra entries win on name collision.
func Merged(extra map[string]ToolSpec) map[string]ToolSpec {
	specs := make(map[string]ToolSpec, len(DefaultSpecs)+len(extra))
	for name, spec := range DefaultSpecs {
		specs[name] = spec
	}
	for name, spec := range extra {
		specs[name] = spec
	}
	return specs
}
