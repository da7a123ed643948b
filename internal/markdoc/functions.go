package markdoc

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var builtinFunctions = map[string]*FunctionSchema{
	"equals": {Transform: func(args []any, _ *Config) (any, error) {
		for i := 1; i < len(args); i++ {
			if !reflect.DeepEqual(args[0], args[i]) {
				return false, nil
			}
		}
		return true, nil
	}},
	"and": {Transform: func(args []any, _ *Config) (any, error) {
		for _, a := range args {
			if !Truthy(a) {
				return false, nil
			}
		}
		return true, nil
	}},
	"or": {Transform: func(args []any, _ *Config) (any, error) {
		for _, a := range args {
			if Truthy(a) {
				return true, nil
			}
		}
		return false, nil
	}},
	"not": {Transform: func(args []any, _ *Config) (any, error) {
		if len(args) == 0 {
			return true, nil
		}
		return !Truthy(args[0]), nil
	}},
	"default": {Transform: func(args []any, _ *Config) (any, error) {
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil
	}},
	"debug": {Transform: func(args []any, _ *Config) (any, error) {
		if len(args) == 0 {
			return nil, nil
		}
		out, err := json.MarshalIndent(args[0], "", "  ")
		if err != nil {
			return nil, err
		}
		return string(out), nil
	}},
}

// Truthy reports whether v counts as true in a condition. Only false and
// nil are falsy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	}
	return true
}

var programs sync.Map // expression source -> *vm.Program

func compileExpr(source string) (*vm.Program, error) {
	if p, ok := programs.Load(source); ok {
		return p.(*vm.Program), nil
	}
	p, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	programs.Store(source, p)
	return p, nil
}

// CheckExpr reports whether source compiles as a function expression.
func CheckExpr(source string) error {
	_, err := compileExpr(source)
	return err
}

func (f *FunctionSchema) call(name string, args []any, cfg *Config) (any, error) {
	if f.Transform != nil {
		return f.Transform(args, cfg)
	}
	if f.Expr == "" {
		return nil, fmt.Errorf("function %q has no implementation", name)
	}
	program, err := compileExpr(f.Expr)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", name, err)
	}
	env := map[string]any{"args": args, "variables": cfg.variables()}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", name, err)
	}
	return out, nil
}
