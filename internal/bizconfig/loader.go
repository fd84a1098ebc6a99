package bizconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/isaacasamoah/piano-move-ai/platform/apperr"
	"github.com/isaacasamoah/piano-move-ai/platform/logger"
	"github.com/isaacasamoah/piano-move-ai/platform/phone"
	"github.com/isaacasamoah/piano-move-ai/platform/validator"
)

// Loader reads business YAML files from a directory and caches them.
// A config is validated once on load; a broken config file is a deployment
// error surfaced at startup, never a runtime fallback.
type Loader struct {
	dir     string
	val     *validator.Validator
	log     *logger.Logger
	mu      sync.RWMutex
	cache   map[string]*Business
	byPhone map[string]string
}

// NewLoader creates a Loader rooted at dir.
func NewLoader(dir string, val *validator.Validator, log *logger.Logger) *Loader {
	return &Loader{
		dir:     dir,
		val:     val,
		log:     log,
		cache:   make(map[string]*Business),
		byPhone: make(map[string]string),
	}
}

// LoadAll reads every *.yaml file in the config directory, validates each
// business, and builds the phone-number index used to resolve inbound calls.
func (l *Loader) LoadAll() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("read business config dir %q: %w", l.dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".yaml")
		if _, err := l.Load(id); err != nil {
			return err
		}
		loaded++
	}

	if loaded == 0 {
		return fmt.Errorf("no business configs found in %q", l.dir)
	}

	l.log.Info("business configs loaded", "count", loaded, "dir", l.dir)
	return nil
}

// Load returns the business config for the given id, reading and validating
// the YAML file on first use.
func (l *Loader) Load(businessID string) (*Business, error) {
	l.mu.RLock()
	if biz, ok := l.cache[businessID]; ok {
		l.mu.RUnlock()
		return biz, nil
	}
	l.mu.RUnlock()

	path := filepath.Join(l.dir, businessID+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NotFound("business config not found: " + businessID)
		}
		return nil, fmt.Errorf("read business config %q: %w", path, err)
	}

	var biz Business
	if err := yaml.Unmarshal(data, &biz); err != nil {
		return nil, fmt.Errorf("parse business config %q: %w", path, err)
	}

	if err := l.validate(&biz); err != nil {
		return nil, fmt.Errorf("invalid business config %q: %w", path, err)
	}

	l.mu.Lock()
	l.cache[businessID] = &biz
	for _, number := range biz.PhoneNumbers {
		l.byPhone[phone.NormalizeE164(number)] = businessID
	}
	l.mu.Unlock()

	return &biz, nil
}

// ResolvePhone maps an inbound dialed number to a business id. Falls back to
// the empty string when the number is not claimed by any business.
func (l *Loader) ResolvePhone(number string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byPhone[phone.NormalizeE164(number)]
}

// Reload drops the cached config so the next Load re-reads the file.
func (l *Loader) Reload(businessID string) (*Business, error) {
	l.mu.Lock()
	delete(l.cache, businessID)
	l.mu.Unlock()
	return l.Load(businessID)
}

// validate applies struct tags plus the cross-field rules the calculator
// contract requires: one field per pricing role, and a base rate for every
// enum value of the base-rate field.
func (l *Loader) validate(biz *Business) error {
	if err := l.val.Struct(biz); err != nil {
		return err
	}

	seenRoles := make(map[FieldRole]string)
	for _, f := range biz.Fields {
		if f.Role == "" {
			continue
		}
		if prev, dup := seenRoles[f.Role]; dup {
			return fmt.Errorf("role %q assigned to both %q and %q", f.Role, prev, f.Name)
		}
		seenRoles[f.Role] = f.Name

		switch f.Role {
		case RoleBaseRate:
			if f.Type != FieldTypeEnum {
				return fmt.Errorf("base_rate field %q must be an enum", f.Name)
			}
		case RoleOrigin, RoleDestination:
			if f.Type != FieldTypeAddress {
				return fmt.Errorf("%s field %q must be an address", f.Role, f.Name)
			}
		case RoleUnitSurcharge:
			if f.Type != FieldTypeInteger {
				return fmt.Errorf("unit_surcharge field %q must be an integer", f.Name)
			}
		case RoleProtection:
			if f.Type != FieldTypeBoolean {
				return fmt.Errorf("protection field %q must be a boolean", f.Name)
			}
		}
	}

	base, ok := biz.FieldByRole(RoleBaseRate)
	if !ok {
		return fmt.Errorf("schema must declare exactly one base_rate field")
	}
	for _, v := range base.Values {
		if _, priced := biz.Pricing.Base[v.Value]; !priced {
			return fmt.Errorf("price table missing base amount for %q", v.Value)
		}
	}

	for _, role := range []FieldRole{RoleOrigin, RoleDestination} {
		if _, ok := biz.FieldByRole(role); !ok {
			return fmt.Errorf("schema must declare a %s field", role)
		}
	}

	for _, f := range biz.Fields {
		if f.Type == FieldTypeInteger && f.Max != 0 && f.Max < f.Min {
			return fmt.Errorf("integer field %q has max < min", f.Name)
		}
	}

	return nil
}
