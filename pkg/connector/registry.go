// Package connector holds the read-only catalogue of provider descriptors and
// validates the actions workflow nodes request from them.
package connector

import (
	"fmt"
	"sort"
	"strings"

	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/pkg/apperror"

	"github.com/go-playground/validator/v10"
)

// Kind groups providers by the system they front.
type Kind string

const (
	KindSCM       Kind = "scm"
	KindTicketing Kind = "ticketing"
	KindMessaging Kind = "messaging"
)

// Property types accepted in action schemas.
const (
	TypeString = "string"
	TypeNumber = "number"
	TypeBool   = "bool"
)

// PropertySpec constrains one property of an action. Rule uses validator tags.
type PropertySpec struct {
	Type     string
	Required bool
	Rule     string
}

// ActionSchema lists the properties an action understands.
type ActionSchema struct {
	Trigger    bool
	Properties map[string]PropertySpec
}

// Descriptor is the immutable capability description of one provider.
type Descriptor struct {
	ID      string
	Name    string
	Kind    Kind
	Aliases []string
	Actions map[string]ActionSchema
}

// Supports reports whether the provider declares action.
func (d *Descriptor) Supports(action string) bool {
	_, ok := d.Actions[action]
	return ok
}

// ActionNames returns the declared actions in stable order.
func (d *Descriptor) ActionNames() []string {
	names := make([]string, 0, len(d.Actions))
	for name := range d.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry resolves providers by name. It has no mutation path after
// NewRegistry returns, so concurrent readers need no locking.
type Registry struct {
	byKey    map[string]*Descriptor
	ordered  []*Descriptor
	validate *validator.Validate
	logger   logger.ILogger
}

func NewRegistry(log logger.ILogger, descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{
		byKey:    make(map[string]*Descriptor),
		validate: validator.New(),
		logger:   log,
	}
	for i := range descriptors {
		d := descriptors[i]
		keys := append([]string{d.Name, d.ID}, d.Aliases...)
		for _, k := range keys {
			nk := normalizeKey(k)
			if nk == "" {
				continue
			}
			if existing, ok := r.byKey[nk]; ok && existing.Name != d.Name {
				return nil, fmt.Errorf("connector key %q claimed by both %s and %s", k, existing.Name, d.Name)
			}
			r.byKey[nk] = &d
		}
		r.ordered = append(r.ordered, &d)
		log.Debug("CONNECTOR", "Registered connector", map[string]interface{}{
			"name":    d.Name,
			"id":      d.ID,
			"actions": len(d.Actions),
		})
	}
	return r, nil
}

// NewDefaultRegistry builds the registry from the built-in catalogue.
func NewDefaultRegistry(log logger.ILogger) (*Registry, error) {
	r, err := NewRegistry(log, DefaultCatalog()...)
	if err != nil {
		return nil, fmt.Errorf("build default connector catalogue: %w", err)
	}
	return r, nil
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
	return s
}

// Resolve looks a provider up by name, alias or id.
func (r *Registry) Resolve(provider string) (*Descriptor, bool) {
	d, ok := r.byKey[normalizeKey(provider)]
	return d, ok
}

// List returns all descriptors in registration order.
func (r *Registry) List() []*Descriptor {
	out := make([]*Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// ValidateAction checks that provider supports action and that properties
// satisfy its schema. The returned error names the offending property.
func (r *Registry) ValidateAction(provider, action string, properties map[string]interface{}) error {
	d, ok := r.Resolve(provider)
	if !ok {
		return apperror.Validation("connector_resolves", provider, "unknown connector provider")
	}

	if !d.Supports(action) {
		return apperror.Validation("action_supported", d.Name+"."+action,
			"action not supported, expected one of %s", strings.Join(d.ActionNames(), ", "))
	}
	schema := d.Actions[action]

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := schema.Properties[name]
		value, present := properties[name]
		if !present || value == nil {
			if spec.Required {
				return apperror.Validation("property_present", name, "missing required property for %s.%s", d.Name, action)
			}
			continue
		}
		if err := r.checkProperty(name, spec, value); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) checkProperty(name string, spec PropertySpec, value interface{}) error {
	switch spec.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return apperror.Validation("property_well_formed", name, "expected string, got %T", value)
		}
		if spec.Rule != "" {
			if err := r.validate.Var(s, spec.Rule); err != nil {
				return apperror.Validation("property_well_formed", name, "value %q violates %q", s, spec.Rule)
			}
		}
	case TypeNumber:
		var f float64
		switch n := value.(type) {
		case float64:
			f = n
		case int:
			f = float64(n)
		case int64:
			f = float64(n)
		default:
			return apperror.Validation("property_well_formed", name, "expected number, got %T", value)
		}
		if spec.Rule != "" {
			if err := r.validate.Var(f, spec.Rule); err != nil {
				return apperror.Validation("property_well_formed", name, "value %v violates %q", f, spec.Rule)
			}
		}
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return apperror.Validation("property_well_formed", name, "expected bool, got %T", value)
		}
	}
	return nil
}
