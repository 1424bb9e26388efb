// Package tools defines the executable tool surface of the engine: named
// operations with declared parameters, validated before dispatch, returning a
// uniform result envelope. Tool arguments arrive from untrusted callers (task
// classification output, MCP clients), so nothing reaches an operator before
// validation passes.
package tools

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/othala/internal/apperr"
)

// ParamType enumerates the accepted JSON shapes for a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
)

// Param declares one tool parameter.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
	Enum        []string  `json:"enum,omitempty"`
}

// Result is the uniform envelope every tool returns. Operator errors are
// translated into Err; they never escape as raw Go errors.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Err     string `json:"error,omitempty"`
}

// RunFunc executes a tool against validated arguments. It returns the result
// payload and a human-readable message.
type RunFunc func(ctx context.Context, args map[string]any) (any, string, error)

// Tool is a named operation with a declared parameter schema.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	run         RunFunc
}

// NewTool builds a tool.
func NewTool(name, description string, params []Param, run RunFunc) *Tool {
	return &Tool{Name: name, Description: description, Params: params, run: run}
}

// Execute validates args against the declared parameters and dispatches.
// A validation failure returns apperr.ErrInvalidParameter without touching
// any operator; an operator failure comes back inside the Result envelope.
func (t *Tool) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	if err := t.validate(args); err != nil {
		return nil, err
	}

	data, msg, err := t.run(ctx, args)
	if err != nil {
		return &Result{Success: false, Err: translate(err)}, nil
	}
	return &Result{Success: true, Message: msg, Data: data}, nil
}

func (t *Tool) validate(args map[string]any) error {
	for _, p := range t.Params {
		val, present := args[p.Name]
		if !present || val == nil {
			if p.Required {
				return fmt.Errorf("tools: %s: missing parameter %q: %w", t.Name, p.Name, apperr.ErrInvalidParameter)
			}
			continue
		}
		if err := checkType(p, val); err != nil {
			return fmt.Errorf("tools: %s: parameter %q: %w: %v", t.Name, p.Name, apperr.ErrInvalidParameter, err)
		}
		if len(p.Enum) > 0 {
			allowed := make([]any, len(p.Enum))
			for i, e := range p.Enum {
				allowed[i] = e
			}
			if err := validation.Validate(val, validation.In(allowed...)); err != nil {
				return fmt.Errorf("tools: %s: parameter %q: %w: must be one of %v", t.Name, p.Name, apperr.ErrInvalidParameter, p.Enum)
			}
		}
	}
	return nil
}

func checkType(p Param, val any) error {
	switch p.Type {
	case TypeString:
		if _, ok := val.(string); !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
	case TypeNumber:
		switch val.(type) {
		case float64, int, int64:
		default:
			return fmt.Errorf("expected number, got %T", val)
		}
	case TypeBoolean:
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", val)
		}
	case TypeArray:
		switch val.(type) {
		case []any, []string:
		default:
			return fmt.Errorf("expected array, got %T", val)
		}
	default:
		return fmt.Errorf("unknown parameter type %q", p.Type)
	}
	return nil
}

// translate maps operator errors onto stable user-facing messages.
func translate(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNoteNotFound):
		return "note not found"
	case errors.Is(err, apperr.ErrAlreadyExists):
		return "target already exists"
	case errors.Is(err, apperr.ErrPathEscape):
		return "path escapes the vault"
	case errors.Is(err, apperr.ErrMalformedFrontmatter):
		return "document has malformed frontmatter"
	case errors.Is(err, apperr.ErrFolderCreate):
		return "folder could not be created"
	case errors.Is(err, apperr.ErrInvalidParameter):
		return "invalid parameter"
	case errors.Is(err, apperr.ErrConflict):
		return "document changed concurrently"
	}
	var cerr *apperr.CascadeError
	if errors.As(err, &cerr) {
		return cerr.Error()
	}
	return err.Error()
}
