package config

import (
	"fmt"
	"slices"
)

// EngineConfig describes one supported engine type and its connection fields.
type EngineConfig struct {
	Name        string        `yaml:"name"         json:"name"`
	DisplayName string        `yaml:"display_name" json:"display_name"`
	Fields      []EngineField `yaml:"fields"       json:"fields"`
	Rules       []EngineRule  `yaml:"rules"        json:"rules,omitempty"`
}

// EngineField is a key of the engine's details map.
type EngineField struct {
	Name     string `yaml:"name"     json:"name"`
	Required bool   `yaml:"required" json:"required"`
	Secret   bool   `yaml:"secret"   json:"secret"`
}

// EngineRule is a boolean expression over the details map. Field names the
// details key a failure is reported against.
type EngineRule struct {
	Expr    string `yaml:"expr"    json:"expr"`
	Field   string `yaml:"field"   json:"field"`
	Message string `yaml:"message" json:"message"`
}

// EngineCatalog is the ordered list of supported engines. It implements
// ports.EngineSource.
type EngineCatalog []EngineConfig

// ListEngineTypes returns engine names in configured order.
func (c EngineCatalog) ListEngineTypes() []string {
	out := make([]string, len(c))
	for i, e := range c {
		out[i] = e.Name
	}
	return out
}

// Lookup returns the engine with the given name.
func (c EngineCatalog) Lookup(name string) (EngineConfig, bool) {
	i := slices.IndexFunc(c, func(e EngineConfig) bool { return e.Name == name })
	if i < 0 {
		return EngineConfig{}, false
	}
	return c[i], true
}

// SecretFields returns the details keys of engine that hold secrets.
func (c EngineCatalog) SecretFields(engine string) []string {
	e, ok := c.Lookup(engine)
	if !ok {
		return nil
	}
	var out []string
	for _, f := range e.Fields {
		if f.Secret {
			out = append(out, f.Name)
		}
	}
	return out
}

func (c EngineCatalog) validate() error {
	seen := make(map[string]bool, len(c))
	for _, e := range c {
		if e.Name == "" {
			return fmt.Errorf("engine without name")
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate engine %q", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// DefaultEngines returns the engines offered when none are configured.
func DefaultEngines() EngineCatalog {
	portRule := EngineRule{
		Expr:    "port == nil || (port > 0 && port < 65536)",
		Field:   "port",
		Message: "port must be between 1 and 65535",
	}
	return EngineCatalog{
		{
			Name:        "postgres",
			DisplayName: "PostgreSQL",
			Fields: []EngineField{
				{Name: "host", Required: true},
				{Name: "port"},
				{Name: "dbname", Required: true},
				{Name: "user", Required: true},
				{Name: "password", Secret: true},
				{Name: "ssl"},
			},
			Rules: []EngineRule{portRule},
		},
		{
			Name:        "mysql",
			DisplayName: "MySQL",
			Fields: []EngineField{
				{Name: "host", Required: true},
				{Name: "port"},
				{Name: "dbname", Required: true},
				{Name: "user", Required: true},
				{Name: "password", Secret: true},
			},
			Rules: []EngineRule{portRule},
		},
		{
			Name:        "sqlserver",
			DisplayName: "SQL Server",
			Fields: []EngineField{
				{Name: "host", Required: true},
				{Name: "port"},
				{Name: "db", Required: true},
				{Name: "user", Required: true},
				{Name: "password", Secret: true},
			},
			Rules: []EngineRule{portRule},
		},
		{
			Name:        "h2",
			DisplayName: "H2",
			Fields: []EngineField{
				{Name: "db", Required: true},
			},
		},
	}
}
