package services

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-playground/validator/v10"

	"github.com/soochol/dbadmin/internal/config"
	"github.com/soochol/dbadmin/internal/dbadmin"
)

type compiledRule struct {
	rule    config.EngineRule
	program *vm.Program
}

// DraftValidator checks a draft before it is sent to the data-access
// service: struct tags, engine membership, required details and the
// engine's expression rules.
type DraftValidator struct {
	validate *validator.Validate
	engines  config.EngineCatalog
	rules    map[string][]compiledRule
}

// NewDraftValidator compiles the rules of every engine in the catalog.
func NewDraftValidator(engines config.EngineCatalog) (*DraftValidator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	rules := make(map[string][]compiledRule, len(engines))
	for _, e := range engines {
		for _, r := range e.Rules {
			program, err := expr.Compile(r.Expr,
				expr.Env(map[string]any{}),
				expr.AllowUndefinedVariables(),
				expr.AsBool(),
			)
			if err != nil {
				return nil, fmt.Errorf("compile rule %q of engine %s: %w", r.Expr, e.Name, err)
			}
			rules[e.Name] = append(rules[e.Name], compiledRule{rule: r, program: program})
		}
	}

	return &DraftValidator{validate: v, engines: engines, rules: rules}, nil
}

// Validate returns a dbadmin.KindValidation error listing every failing
// field, or nil.
func (v *DraftValidator) Validate(rec dbadmin.DatabaseRecord) error {
	fields := make(map[string]string)

	if err := v.validate.Struct(rec); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return dbadmin.AsError(err)
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}

	if rec.Engine != "" {
		engine, ok := v.engines.Lookup(rec.Engine)
		if !ok {
			fields["engine"] = fmt.Sprintf("unsupported engine %q", rec.Engine)
		} else {
			v.checkDetails(engine, rec.Details, fields)
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return dbadmin.FieldErrors("invalid database settings", fields)
}

func (v *DraftValidator) checkDetails(engine config.EngineConfig, details dbadmin.Details, fields map[string]string) {
	env := make(map[string]any, len(engine.Fields)+len(details))
	for _, f := range engine.Fields {
		env[f.Name] = nil
	}
	for k, val := range details {
		env[k] = val
	}

	for _, f := range engine.Fields {
		if f.Required && isBlank(details[f.Name]) {
			fields[f.Name] = f.Name + " is required"
		}
	}

	for _, r := range v.rules[engine.Name] {
		if _, failed := fields[r.rule.Field]; failed {
			continue
		}
		out, err := expr.Run(r.program, env)
		if ok, _ := out.(bool); err != nil || !ok {
			fields[r.rule.Field] = r.rule.Message
		}
	}
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}
