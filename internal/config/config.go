// File: internal/config/config.go
// Brief: Declarative environment configuration model.

// Package config loads and validates the single environment-scoped document
// that describes the project, its cloud accounts, IAM roles, and deployable
// resources. The loaded Document is a value passed through the orchestration
// steps; the only mutation path is Patch, and nothing touches the source file
// except an explicit Persist.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	accountIDRe   = regexp.MustCompile(`^\d{12}$`)
	placeholderRe = regexp.MustCompile(`^\$\{[A-Z][A-Z0-9_]*\}$`)
)

// Project is the top-level project block.
type Project struct {
	Name                string `yaml:"name"`
	DefaultRegion       string `yaml:"default_region"`
	ManagementAccountID string `yaml:"management_account_id"`
	// BudgetLimitUSD and AlertEmail parameterize the monthly budget alert
	// created alongside each member account.
	BudgetLimitUSD string `yaml:"budget_limit_usd"`
	AlertEmail     string `yaml:"alert_email"`
}

// Environment is one deployment target (dev, staging, prod). AccountID is
// either a concrete 12-digit id or a single ${PLACEHOLDER}; mixed or partial
// forms are invalid outside the account provisioner's own run.
type Environment struct {
	Name            string `yaml:"-"`
	AccountID       string `yaml:"account_id"`
	Region          string `yaml:"region"`
	OrgRoleName     string `yaml:"org_role_name"`
	CliRoleName     string `yaml:"cli_role_name"`
	DeployerRoleArn string `yaml:"deployer_role_arn"`
	SecretsFile     string `yaml:"secrets_file"`
	// AccountEmail is the root email used when the member account has to
	// be created during setup. Unused once the account exists.
	AccountEmail string `yaml:"account_email"`
}

// Resolved reports whether the environment has a concrete account id.
func (e *Environment) Resolved() bool { return accountIDRe.MatchString(e.AccountID) }

// TemplateList accepts either a scalar or a sequence for the template key.
type TemplateList []string

func (t *TemplateList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var one string
		if err := node.Decode(&one); err != nil {
			return err
		}
		*t = TemplateList{one}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*t = many
		return nil
	default:
		return fmt.Errorf("template must be a string or a list of strings")
	}
}

// Unit is one deployable entry: a Role or a Resource. Roles share the shape
// but live in a separate namespace and always deploy first.
type Unit struct {
	Name         string         `yaml:"-"`
	Enabled      *bool          `yaml:"enabled"`
	Templates    TemplateList   `yaml:"template"`
	StackName    NamePattern    `yaml:"stack_name"`
	Environments []string       `yaml:"environments"`
	Config       map[string]any `yaml:"config"`
	// Class groups resources for the --only-infra / --only-app flag bundles.
	// Empty means infra.
	Class string `yaml:"class"`
}

// Unit classes.
const (
	ClassInfra = "infra"
	ClassApp   = "app"
)

// IsApp reports whether the unit belongs to the application bundle.
func (u *Unit) IsApp() bool { return u.Class == ClassApp }

// IsEnabled defaults to true when the key is omitted.
func (u *Unit) IsEnabled() bool { return u.Enabled == nil || *u.Enabled }

// AppliesTo reports whether the unit deploys into the named environment. An
// empty environments list means every environment.
func (u *Unit) AppliesTo(env string) bool {
	if len(u.Environments) == 0 {
		return true
	}
	for _, e := range u.Environments {
		if e == env {
			return true
		}
	}
	return false
}

// Document is the loaded configuration. Roles and Resources keep their
// declared order; that order is the deploy order.
type Document struct {
	Project      Project
	Environments map[string]*Environment
	Roles        []*Unit
	Resources    []*Unit

	baseDir string
	root    *yaml.Node
}

// ValidationError collects every problem found in one load so operators fix
// the document in a single pass.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %d problem(s): %s", e.Path, len(e.Problems), strings.Join(e.Problems, "; "))
}

// Fetcher retrieves a remote configuration document, e.g. from S3.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Load reads and validates a configuration document from the local
// filesystem. Use LoadWith for s3:// paths.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path, filepath.Dir(path))
}

// LoadWith reads a configuration document from a local path or, when the
// path has an s3:// scheme, through the supplied Fetcher. Remote documents
// skip template-file existence checks; everything else validates the same.
func LoadWith(ctx context.Context, fetcher Fetcher, path string) (*Document, error) {
	if !strings.HasPrefix(path, "s3://") {
		return Load(path)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("s3 config path %q requires a fetcher", path)
	}
	data, err := fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetch config: %w", err)
	}
	return Parse(data, path, "")
}

type rawDocument struct {
	Project      Project                 `yaml:"project"`
	Environments map[string]*Environment `yaml:"environments"`
	Roles        yaml.Node               `yaml:"roles"`
	Resources    yaml.Node               `yaml:"resources"`
}

// Parse decodes and validates a document. baseDir anchors relative template
// paths; pass "" to skip file-existence checks (remote configs).
func Parse(data []byte, path, baseDir string) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ValidationError{Path: path, Problems: []string{fmt.Sprintf("not valid YAML: %v", err)}}
	}
	var raw rawDocument
	if err := root.Decode(&raw); err != nil {
		return nil, &ValidationError{Path: path, Problems: []string{err.Error()}}
	}
	doc := &Document{
		Project:      raw.Project,
		Environments: raw.Environments,
		baseDir:      baseDir,
		root:         &root,
	}
	var problems []string
	var err error
	if doc.Roles, err = decodeUnits(&raw.Roles, "roles"); err != nil {
		problems = append(problems, err.Error())
	}
	if doc.Resources, err = decodeUnits(&raw.Resources, "resources"); err != nil {
		problems = append(problems, err.Error())
	}
	for name, env := range doc.Environments {
		env.Name = name
		if env.Region == "" {
			env.Region = doc.Project.DefaultRegion
		}
	}
	problems = append(problems, doc.validate()...)
	if len(problems) > 0 {
		return nil, &ValidationError{Path: path, Problems: problems}
	}
	return doc, nil
}

// decodeUnits walks the mapping node pairwise so declared order survives;
// a plain map decode would shuffle it.
func decodeUnits(node *yaml.Node, section string) ([]*Unit, error) {
	if node == nil || node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: expected a mapping", section)
	}
	units := make([]*Unit, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var name string
		if err := node.Content[i].Decode(&name); err != nil {
			return nil, fmt.Errorf("%s: bad key: %w", section, err)
		}
		u := &Unit{}
		if err := node.Content[i+1].Decode(u); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", section, name, err)
		}
		u.Name = name
		units = append(units, u)
	}
	return units, nil
}

func (d *Document) validate() []string {
	var problems []string
	if strings.TrimSpace(d.Project.Name) == "" {
		problems = append(problems, "project.name is required")
	}
	if strings.TrimSpace(d.Project.DefaultRegion) == "" {
		problems = append(problems, "project.default_region is required")
	}
	if !accountIDRe.MatchString(d.Project.ManagementAccountID) {
		problems = append(problems, fmt.Sprintf("project.management_account_id %q is not a 12-digit account id", d.Project.ManagementAccountID))
	}
	if len(d.Environments) == 0 {
		problems = append(problems, "at least one environment is required")
	}
	for _, name := range d.EnvNames() {
		env := d.Environments[name]
		if !env.Resolved() && !placeholderRe.MatchString(env.AccountID) {
			problems = append(problems, fmt.Sprintf("environments.%s.account_id %q must be a 12-digit id or a single ${PLACEHOLDER}", name, env.AccountID))
		}
		if strings.TrimSpace(env.OrgRoleName) == "" {
			problems = append(problems, fmt.Sprintf("environments.%s.org_role_name is required", name))
		}
		if strings.TrimSpace(env.CliRoleName) == "" {
			problems = append(problems, fmt.Sprintf("environments.%s.cli_role_name is required", name))
		}
	}
	problems = append(problems, d.validateUnits("roles", d.Roles)...)
	problems = append(problems, d.validateUnits("resources", d.Resources)...)
	return problems
}

func (d *Document) validateUnits(section string, units []*Unit) []string {
	var problems []string
	for _, u := range units {
		if !u.IsEnabled() {
			continue
		}
		if u.StackName.IsZero() {
			problems = append(problems, fmt.Sprintf("%s.%s.stack_name is required", section, u.Name))
		}
		if len(u.Templates) == 0 {
			problems = append(problems, fmt.Sprintf("%s.%s.template is required", section, u.Name))
		}
		switch u.Class {
		case "", ClassInfra, ClassApp:
		default:
			problems = append(problems, fmt.Sprintf("%s.%s.class %q must be infra or app", section, u.Name, u.Class))
		}
		for _, ref := range u.Environments {
			if _, ok := d.Environments[ref]; !ok {
				problems = append(problems, fmt.Sprintf("%s.%s references unknown environment %q", section, u.Name, ref))
			}
		}
		if d.baseDir != "" {
			for _, tmpl := range u.Templates {
				p := tmpl
				if !filepath.IsAbs(p) {
					p = filepath.Join(d.baseDir, p)
				}
				if _, err := os.Stat(p); err != nil {
					problems = append(problems, fmt.Sprintf("%s.%s template %q not found", section, u.Name, tmpl))
				}
			}
		}
	}
	// Resolved stack names must be unique per environment within a section.
	for _, envName := range d.EnvNames() {
		seen := map[string]string{}
		for _, u := range units {
			if !u.IsEnabled() || !u.AppliesTo(envName) || u.StackName.IsZero() {
				continue
			}
			resolved := u.StackName.Resolve(d.Project.Name, envName)
			if prev, dup := seen[resolved]; dup {
				problems = append(problems, fmt.Sprintf("%s.%s and %s.%s both resolve to stack %q in environment %s", section, prev, section, u.Name, resolved, envName))
			}
			seen[resolved] = u.Name
		}
	}
	return problems
}

// Env returns the named environment.
func (d *Document) Env(name string) (*Environment, error) {
	env, ok := d.Environments[name]
	if !ok {
		return nil, fmt.Errorf("unknown environment %q (known: %s)", name, strings.Join(d.EnvNames(), ", "))
	}
	return env, nil
}

// EnvNames returns environment names sorted for stable output.
func (d *Document) EnvNames() []string {
	names := make([]string, 0, len(d.Environments))
	for name := range d.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RolesInOrder returns the enabled roles that deploy into env, in declared
// order.
func (d *Document) RolesInOrder(env string) []*Unit { return unitsInOrder(d.Roles, env) }

// ResourcesInOrder returns the enabled resources that deploy into env, in
// declared order.
func (d *Document) ResourcesInOrder(env string) []*Unit { return unitsInOrder(d.Resources, env) }

func unitsInOrder(units []*Unit, env string) []*Unit {
	out := make([]*Unit, 0, len(units))
	for _, u := range units {
		if u.IsEnabled() && u.AppliesTo(env) {
			out = append(out, u)
		}
	}
	return out
}

// StackNameFor resolves a unit's stack name for one environment.
func (d *Document) StackNameFor(u *Unit, env string) string {
	return u.StackName.Resolve(d.Project.Name, env)
}

// TemplatePath resolves a template reference against the config directory.
func (d *Document) TemplatePath(ref string) string {
	if d.baseDir == "" || filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(d.baseDir, ref)
}

// Field names a patchable environment attribute.
type Field string

// FieldAccountID is the only field the orchestrator writes back today: the
// account provisioner records newly created account ids.
const FieldAccountID Field = "account_id"

// Patch updates one environment field in the in-memory model and in the
// retained document tree, so a later Persist writes exactly this change.
func (d *Document) Patch(envName string, field Field, value string) error {
	env, err := d.Env(envName)
	if err != nil {
		return err
	}
	switch field {
	case FieldAccountID:
		if !accountIDRe.MatchString(value) {
			return fmt.Errorf("patch %s.%s: %q is not a 12-digit account id", envName, field, value)
		}
		env.AccountID = value
	default:
		return fmt.Errorf("patch %s: unknown field %q", envName, field)
	}
	return d.patchNode(envName, string(field), value)
}

// Persist writes the document tree back to path. Comments and key order from
// the source file are preserved by round-tripping the retained yaml nodes.
func (d *Document) Persist(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("persist config: %w", err)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(d.root); err != nil {
		_ = f.Close()
		return fmt.Errorf("persist config: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("persist config: %w", err)
	}
	return f.Close()
}

func (d *Document) patchNode(envName, key, value string) error {
	if d.root == nil || len(d.root.Content) == 0 {
		return fmt.Errorf("document tree unavailable")
	}
	envs := mappingValue(d.root.Content[0], "environments")
	if envs == nil {
		return fmt.Errorf("document has no environments block")
	}
	envNode := mappingValue(envs, envName)
	if envNode == nil {
		return fmt.Errorf("document has no environments.%s block", envName)
	}
	if target := mappingValue(envNode, key); target != nil {
		target.SetString(value)
		return nil
	}
	var k, v yaml.Node
	k.SetString(key)
	v.SetString(value)
	envNode.Content = append(envNode.Content, &k, &v)
	return nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
