package registry

import (
	"fmt"
	"regexp"
)

// confdirKey expands to the directory of the loaded configuration file.
const confdirKey = "confdir"

// literalPercent is the escape for a literal '%'.
const literalPercent = "%%"

var referencePattern = regexp.MustCompile(`%%|%\(([A-Za-z0-9_.-]+)\)s`)

// expander resolves %(key)s references in string and list values. Keys
// resolve to confdir, then an option of the same group, then of DefaultGroup.
// Referenced values are expanded first; cycles fail with ErrInterpolation.
// %% yields a literal '%'. Secret values are taken literally.
type expander struct {
	values  map[key]Value
	confdir string
	done    map[key]Value
	active  map[key]bool
}

func interpolate(values map[key]Value, confdir string) error {
	x := &expander{
		values:  values,
		confdir: confdir,
		done:    make(map[key]Value, len(values)),
		active:  make(map[key]bool),
	}
	for k := range values {
		if _, err := x.resolve(k); err != nil {
			return err
		}
	}
	for k, v := range x.done {
		values[k] = v
	}
	return nil
}

func (x *expander) resolve(k key) (Value, error) {
	if v, ok := x.done[k]; ok {
		return v, nil
	}
	if x.active[k] {
		return Value{}, fmt.Errorf("%w: %s refers to itself", ErrInterpolation, k)
	}
	x.active[k] = true
	defer delete(x.active, k)

	v := x.values[k]
	if v.Secret {
		x.done[k] = v
		return v, nil
	}
	switch v.Kind {
	case KindString:
		expanded, err := x.expand(v.Value.(string), k)
		if err != nil {
			return Value{}, err
		}
		v.Value = expanded
	case KindStringList:
		items := v.Value.([]string)
		out := make([]string, len(items))
		for i, item := range items {
			expanded, err := x.expand(item, k)
			if err != nil {
				return Value{}, err
			}
			out[i] = expanded
		}
		v.Value = out
	}
	x.done[k] = v
	return v, nil
}

func (x *expander) expand(s string, owner key) (string, error) {
	var failed error
	out := referencePattern.ReplaceAllStringFunc(s, func(match string) string {
		if failed != nil {
			return match
		}
		if match == literalPercent {
			return "%"
		}
		name := referencePattern.FindStringSubmatch(match)[1]
		if name == confdirKey {
			return x.confdir
		}
		for _, k := range []key{{group: owner.group, name: name}, {group: DefaultGroup, name: name}} {
			if _, ok := x.values[k]; !ok {
				continue
			}
			v, err := x.resolve(k)
			if err != nil {
				failed = err
				return match
			}
			return v.Kind.Format(v.Value)
		}
		failed = fmt.Errorf("%w: %s references unknown key %q", ErrInterpolation, owner, name)
		return match
	})
	return out, failed
}
