// Package ext implements post-build extension invocation (§4.7): loading a
// minibuild.ext description already attached to a module (via
// description.Loader.LoadModule's #import handling) and running its
// command line once the module's primary artifact has been published.
package ext

import (
	"strings"

	"github.com/bitswalk/minibuild/description"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
)

// Extension is one validated minibuild.ext description, ready to be
// invoked against a set of template variables (§3 "Extension description").
type Extension struct {
	Name              string
	Type              string
	CallType          string
	Cmdline           string
	NativeDepends     []string
	ObjDirNativeAsVar []string
	VarsRequired      []string
	LocalVarsRequired []string

	desc *description.BuildDescription
}

// Load validates desc against the ext_type/ext_call_type closed
// enumerations (§4.1 step 10) and returns the Extension it describes.
func Load(desc *description.BuildDescription) (*Extension, error) {
	name := desc.Get(grammar.KeyExtName)
	if !name.Set() || name.String() == "" {
		return nil, errs.New(errs.DomainDescription, "ext-name-missing", "extension description missing required key 'ext_name'")
	}
	typ := desc.Get(grammar.KeyExtType)
	if !inSet(typ.String(), grammar.AllExtTypes) {
		return nil, errs.New(errs.DomainDescription, "ext-type-bad-enum", "ext_type '%s' is not one of %v", typ.String(), grammar.AllExtTypes)
	}
	callType := desc.Get(grammar.KeyExtCallType)
	if !inSet(callType.String(), grammar.AllExtCallTypes) {
		return nil, errs.New(errs.DomainDescription, "ext-call-type-bad-enum", "ext_call_type '%s' is not one of %v", callType.String(), grammar.AllExtCallTypes)
	}
	cmdline := desc.Get(grammar.KeyExtCallCmdline)
	if !cmdline.Set() || cmdline.String() == "" {
		return nil, errs.New(errs.DomainDescription, "ext-cmdline-missing", "extension '%s' missing required key 'ext_call_cmdline'", name.String())
	}
	return &Extension{
		Name:              name.String(),
		Type:              typ.String(),
		CallType:          callType.String(),
		Cmdline:           cmdline.String(),
		NativeDepends:     desc.Get(grammar.KeyExtNativeDepends).List(),
		ObjDirNativeAsVar: desc.Get(grammar.KeyExtObjDirNativeAsVar).List(),
		VarsRequired:      desc.Get(grammar.KeyExtVarsRequired).List(),
		LocalVarsRequired: desc.Get(grammar.KeyExtLocalVarsRequired).List(),
		desc:              desc,
	}, nil
}

func inSet(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

// resolveCmdline substitutes every ${VAR} reference in e.Cmdline from vars,
// after checking that every name in VarsRequired/LocalVarsRequired is
// present (§4.7 "the extension description enumerates required
// variables... the engine substitutes variables").
func (e *Extension) resolveCmdline(vars map[string]string) (string, error) {
	for _, required := range [][]string{e.VarsRequired, e.LocalVarsRequired} {
		for _, name := range required {
			if _, ok := vars[name]; !ok {
				return "", errs.New(errs.DomainBuild, "ext-var-missing",
					"extension '%s' requires variable '%s' which was not supplied", e.Name, name)
			}
		}
	}
	out := e.Cmdline
	for name, val := range vars {
		out = strings.ReplaceAll(out, "${"+name+"}", val)
	}
	return out, nil
}
