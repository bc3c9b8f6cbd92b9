package authform

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Form.MaxEmailChecks != 3 {
		t.Fatalf("expected 3 email checks, got %d", cfg.Form.MaxEmailChecks)
	}
	if cfg.Form.MinPasswordLength != 6 {
		t.Fatalf("expected min password length 6, got %d", cfg.Form.MinPasswordLength)
	}
	if cfg.Locale != LocalePTBR {
		t.Fatalf("expected default locale %q, got %q", LocalePTBR, cfg.Locale)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "zero email checks",
			mutate:    func(c *Config) { c.Form.MaxEmailChecks = 0 },
			wantValid: false,
		},
		{
			name:      "zero password length",
			mutate:    func(c *Config) { c.Form.MinPasswordLength = 0 },
			wantValid: false,
		},
		{
			name:      "negative delay",
			mutate:    func(c *Config) { c.Form.LoginCloseDelay = -time.Second },
			wantValid: false,
		},
		{
			name:      "zero delays allowed",
			mutate:    func(c *Config) { c.Form.LoginCloseDelay, c.Form.RegisterResetDelay, c.Form.ResetReturnDelay = 0, 0, 0 },
			wantValid: true,
		},
		{
			name:      "negative lookup timeout",
			mutate:    func(c *Config) { c.Form.LookupTimeout = -1 },
			wantValid: false,
		},
		{
			name:      "english locale",
			mutate:    func(c *Config) { c.Locale = LocaleEN },
			wantValid: true,
		},
		{
			name:      "unknown locale",
			mutate:    func(c *Config) { c.Locale = "fr" },
			wantValid: false,
		},
		{
			name: "lookup throttle without key class",
			mutate: func(c *Config) {
				c.LookupThrottle.Enabled = true
				c.LookupThrottle.EnableIPThrottle = false
				c.LookupThrottle.EnableIdentifierThrottle = false
			},
			wantValid: false,
		},
		{
			name: "submit throttle zero window",
			mutate: func(c *Config) {
				c.SubmitThrottle.Enabled = true
				c.SubmitThrottle.Window = 0
			},
			wantValid: false,
		},
		{
			name: "disabled throttle ignores fields",
			mutate: func(c *Config) {
				c.SubmitThrottle.Enabled = false
				c.SubmitThrottle.MaxAttempts = 0
			},
			wantValid: true,
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfigTypesCarryOwnDocs(t *testing.T) {
	file, err := parser.ParseFile(token.NewFileSet(), "config.go", nil, parser.ParseComments)
	if err != nil {
		t.Fatalf("parse config.go: %v", err)
	}
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)
			doc := gen.Doc.Text()
			if !strings.HasPrefix(doc, ts.Name.Name+" ") {
				t.Fatalf("%s: doc comment must start with the type name, got %q", ts.Name.Name, doc)
			}
			if strings.Contains(doc, "public type used by") || strings.Contains(doc, "treated as immutable unless documented") {
				t.Fatalf("%s: placeholder doc comment %q", ts.Name.Name, doc)
			}
		}
	}
}
