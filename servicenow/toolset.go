package servicenow

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/deskmate-ai/deskmate/core"
	"github.com/deskmate-ai/deskmate/tool"
)

// Operation names a Table API verb exposed as a tool.
type Operation string

const (
	OperationList   Operation = "list"
	OperationGet    Operation = "get"
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
)

// operationOrder fixes the order in which tools for one table are emitted.
var operationOrder = []Operation{OperationList, OperationGet, OperationCreate, OperationUpdate}

// DefaultTableOperations maps the ITSM tables Deskmate manages to the
// operations exposed for each. Read-only tables stay read-only.
var DefaultTableOperations = map[string][]Operation{
	"incident":       {OperationList, OperationGet, OperationCreate, OperationUpdate},
	"kb_knowledge":   {OperationList, OperationGet},
	"sys_user":       {OperationList, OperationGet},
	"change_request": {OperationList, OperationGet, OperationCreate, OperationUpdate},
	"problem":        {OperationList, OperationGet, OperationCreate, OperationUpdate},
	"sc_request":     {OperationList, OperationGet, OperationCreate},
}

// ListInput are the arguments accepted by every list tool.
type ListInput struct {
	Query  string `json:"query,omitempty" jsonschema_description:"Encoded query filter, e.g. active=true^priority=1. Results come back in backend order; sorting parameters are not supported."`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum number of records to return. Defaults to 10."`
	Fields string `json:"fields,omitempty" jsonschema_description:"Comma-separated field names to include in each record."`
	Offset int    `json:"offset,omitempty" jsonschema_description:"Number of records to skip, for pagination."`
}

// GetInput are the arguments accepted by every get tool.
type GetInput struct {
	SysID  string `json:"sys_id" jsonschema_description:"The sys_id of the record to retrieve."`
	Fields string `json:"fields,omitempty" jsonschema_description:"Comma-separated field names to include."`
}

// CreateInput are the arguments accepted by every create tool.
type CreateInput struct {
	Fields map[string]any `json:"fields" jsonschema_description:"Field name to value mapping for the new record, e.g. {\"short_description\": \"Printer jam\"}."`
}

// UpdateInput are the arguments accepted by every update tool.
type UpdateInput struct {
	SysID  string         `json:"sys_id" jsonschema_description:"The sys_id of the record to update."`
	Fields map[string]any `json:"fields" jsonschema_description:"Field name to value mapping with the changes to apply."`
}

// ToolsetOptions configures a Toolset.
type ToolsetOptions struct {
	// TableOperations selects the tables and operations to expose.
	// Defaults to DefaultTableOperations.
	TableOperations map[string][]Operation

	// NamePrefix is prepended to every tool name. Defaults to "servicenow".
	NamePrefix string

	// DefaultListLimit is applied when a list call gives no limit.
	DefaultListLimit int
}

// Toolset expands a table/operation matrix into agent tools backed by one client.
type Toolset struct {
	client           *Client
	tableOperations  map[string][]Operation
	namePrefix       string
	defaultListLimit int
}

// NewToolset creates a toolset over the given client.
func NewToolset(client *Client, optFns ...func(o *ToolsetOptions)) *Toolset {
	opts := ToolsetOptions{
		TableOperations:  DefaultTableOperations,
		NamePrefix:       "servicenow",
		DefaultListLimit: 10,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Toolset{
		client:           client,
		tableOperations:  opts.TableOperations,
		namePrefix:       opts.NamePrefix,
		defaultListLimit: opts.DefaultListLimit,
	}
}

// Tools returns one tool per table/operation pair, ordered by table name and
// then list, get, create, update.
func (ts *Toolset) Tools() []tool.Tool {
	tables := make([]string, 0, len(ts.tableOperations))
	for table := range ts.tableOperations {
		tables = append(tables, table)
	}

	sort.Strings(tables)

	var tools []tool.Tool

	for _, table := range tables {
		enabled := make(map[Operation]bool, len(ts.tableOperations[table]))
		for _, op := range ts.tableOperations[table] {
			enabled[op] = true
		}

		for _, op := range operationOrder {
			if !enabled[op] {
				continue
			}

			tools = append(tools, ts.buildTool(table, op))
		}
	}

	return tools
}

func (ts *Toolset) buildTool(table string, op Operation) tool.Tool {
	name := fmt.Sprintf("%s_%s_%s", ts.namePrefix, table, op)

	switch op {
	case OperationList:
		return tool.NewFunctionTool(
			name,
			fmt.Sprintf("List %s records from ServiceNow. Returns records in backend order; sorting is not supported.", table),
			mustGenerateSchema(ListInput{}),
			ts.listFn(table),
		)
	case OperationGet:
		return tool.NewFunctionTool(
			name,
			fmt.Sprintf("Get a single %s record from ServiceNow by its sys_id.", table),
			mustGenerateSchema(GetInput{}),
			ts.getFn(table),
		)
	case OperationCreate:
		return tool.NewFunctionTool(
			name,
			fmt.Sprintf("Create a new %s record in ServiceNow with the given fields.", table),
			mustGenerateSchema(CreateInput{}),
			ts.createFn(table),
		)
	case OperationUpdate:
		return tool.NewFunctionTool(
			name,
			fmt.Sprintf("Update an existing %s record in ServiceNow by its sys_id.", table),
			mustGenerateSchema(UpdateInput{}),
			ts.updateFn(table),
		)
	default:
		panic(fmt.Sprintf("servicenow: unknown operation %q", op))
	}
}

func (ts *Toolset) listFn(table string) func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	return func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		var input ListInput
		if err := decodeInput(args, &input); err != nil {
			return nil, err
		}

		if input.Limit <= 0 {
			input.Limit = ts.defaultListLimit
		}

		return ts.client.ListRecords(toolCtx.Context(), table, ListOptions{
			Query:  input.Query,
			Limit:  input.Limit,
			Fields: input.Fields,
			Offset: input.Offset,
		})
	}
}

func (ts *Toolset) getFn(table string) func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	return func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		var input GetInput
		if err := decodeInput(args, &input); err != nil {
			return nil, err
		}

		return ts.client.GetRecord(toolCtx.Context(), table, input.SysID, input.Fields)
	}
}

func (ts *Toolset) createFn(table string) func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	return func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		var input CreateInput
		if err := decodeInput(args, &input); err != nil {
			return nil, err
		}

		return ts.client.CreateRecord(toolCtx.Context(), table, input.Fields)
	}
}

func (ts *Toolset) updateFn(table string) func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	return func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		var input UpdateInput
		if err := decodeInput(args, &input); err != nil {
			return nil, err
		}

		return ts.client.UpdateRecord(toolCtx.Context(), table, input.SysID, input.Fields)
	}
}

func decodeInput(args map[string]any, target any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode arguments: %w", err)
	}

	return nil
}
