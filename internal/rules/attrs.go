package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pankaj-dahiya-devops/cloudsweep/internal/models"
	"github.com/pankaj-dahiya-devops/cloudsweep/internal/providers"
)

// Attribute accessors accept both the in-memory shapes adapters build and the
// shapes encoding/json produces when resources are loaded from a file. Each
// returns present=false for a missing or nil attribute and an error for a
// value of the wrong type.

func boolAttr(r models.Resource, key string) (val, present bool, err error) {
	v, ok := r.Attr(key)
	if !ok || v == nil {
		return false, false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, true, nil
	case string:
		parsed, perr := strconv.ParseBool(b)
		if perr != nil {
			return false, true, fmt.Errorf("attribute %q: %q is not a boolean", key, b)
		}
		return parsed, true, nil
	}
	return false, true, fmt.Errorf("attribute %q: %T is not a boolean", key, v)
}

func numberAttr(r models.Resource, key string) (val float64, present bool, err error) {
	v, ok := r.Attr(key)
	if !ok || v == nil {
		return 0, false, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, true, fmt.Errorf("attribute %q: %w", key, err)
	}
	return f, true, nil
}

func stringAttr(r models.Resource, key string) (val string, present bool, err error) {
	v, ok := r.Attr(key)
	if !ok || v == nil {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", true, fmt.Errorf("attribute %q: %T is not a string", key, v)
	}
	return s, true, nil
}

// timeAttr reads an RFC 3339 string or a time.Time.
func timeAttr(r models.Resource, key string) (val time.Time, present bool, err error) {
	v, ok := r.Attr(key)
	if !ok || v == nil {
		return time.Time{}, false, nil
	}
	switch t := v.(type) {
	case time.Time:
		return t, true, nil
	case string:
		parsed, perr := time.Parse(time.RFC3339, t)
		if perr != nil {
			return time.Time{}, true, fmt.Errorf("attribute %q: %q is not an RFC 3339 time", key, t)
		}
		return parsed, true, nil
	}
	return time.Time{}, true, fmt.Errorf("attribute %q: %T is not a time", key, v)
}

// stringsAttr reads a list of strings; a single string counts as a list of
// one.
func stringsAttr(r models.Resource, key string) (val []string, present bool, err error) {
	v, ok := r.Attr(key)
	if !ok || v == nil {
		return nil, false, nil
	}
	out, err := toStrings(v)
	if err != nil {
		return nil, true, fmt.Errorf("attribute %q: %w", key, err)
	}
	return out, true, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%T is not a number", v)
}

func toStrings(v any) ([]string, error) {
	switch list := v.(type) {
	case string:
		return []string{list}, nil
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: %T is not a string", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%T is not a list of strings", v)
}

// ingressRule is one normalised inbound permission.
type ingressRule struct {
	protocol string
	fromPort int
	toPort   int
	cidrs    []string
}

func (in ingressRule) coversPort(port int) bool {
	return in.fromPort <= port && port <= in.toPort
}

// tcpLike reports whether the rule's protocol can carry a TCP connection.
func (in ingressRule) tcpLike() bool {
	switch strings.ToLower(in.protocol) {
	case "", "tcp", "6", "-1", "all", "*":
		return true
	}
	return false
}

func (in ingressRule) world() bool {
	for _, c := range in.cidrs {
		if providers.IsWorldCIDR(c) {
			return true
		}
	}
	return false
}

// ingressRules reads the structured ingress attribute and, when present, the
// flat form (ingress_cidrs with port or open_ports) that hand-written fixtures
// use.
func ingressRules(r models.Resource) ([]ingressRule, error) {
	var out []ingressRule

	if v, ok := r.Attr(models.AttrIngress); ok && v != nil {
		entries, isList := v.([]any)
		if !isList {
			if typed, ok := v.([]map[string]any); ok {
				for _, e := range typed {
					entries = append(entries, e)
				}
			} else {
				return nil, fmt.Errorf("attribute %q: %T is not a list", models.AttrIngress, v)
			}
		}
		for i, e := range entries {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("attribute %q[%d]: %T is not an object", models.AttrIngress, i, e)
			}
			rule, err := parseIngressEntry(m)
			if err != nil {
				return nil, fmt.Errorf("attribute %q[%d]: %w", models.AttrIngress, i, err)
			}
			out = append(out, rule)
		}
	}

	cidrs, hasCIDRs, err := stringsAttr(r, models.AttrIngressCIDRs)
	if err != nil {
		return nil, err
	}
	if !hasCIDRs {
		cidrs, hasCIDRs, err = stringsAttr(r, "ingressCidrs")
		if err != nil {
			return nil, err
		}
	}
	if hasCIDRs {
		ports, err := flatPorts(r)
		if err != nil {
			return nil, err
		}
		for _, p := range ports {
			out = append(out, ingressRule{protocol: "tcp", fromPort: p, toPort: p, cidrs: cidrs})
		}
	}
	return out, nil
}

func flatPorts(r models.Resource) ([]int, error) {
	var ports []int
	if p, ok, err := numberAttr(r, models.AttrPort); err != nil {
		return nil, err
	} else if ok {
		ports = append(ports, int(p))
	}
	if v, ok := r.Attr(models.AttrOpenPorts); ok && v != nil {
		list, isList := v.([]any)
		if !isList {
			if ints, ok := v.([]int); ok {
				for _, p := range ints {
					ports = append(ports, p)
				}
				return ports, nil
			}
			return nil, fmt.Errorf("attribute %q: %T is not a list", models.AttrOpenPorts, v)
		}
		for i, item := range list {
			f, err := toFloat(item)
			if err != nil {
				return nil, fmt.Errorf("attribute %q[%d]: %w", models.AttrOpenPorts, i, err)
			}
			ports = append(ports, int(f))
		}
	}
	return ports, nil
}

func parseIngressEntry(m map[string]any) (ingressRule, error) {
	var rule ingressRule
	if p, ok := m["protocol"]; ok && p != nil {
		s, isString := p.(string)
		if !isString {
			return rule, fmt.Errorf("protocol: %T is not a string", p)
		}
		rule.protocol = s
	}
	from, err := entryPort(m, "from_port")
	if err != nil {
		return rule, err
	}
	to, err := entryPort(m, "to_port")
	if err != nil {
		return rule, err
	}
	rule.fromPort, rule.toPort = from, to
	if c, ok := m["cidrs"]; ok && c != nil {
		cidrs, err := toStrings(c)
		if err != nil {
			return rule, fmt.Errorf("cidrs: %w", err)
		}
		rule.cidrs = cidrs
	}
	return rule, nil
}

func entryPort(m map[string]any, key string) (int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%s missing", key)
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return int(f), nil
}

// ageDays returns how many whole days t lies before now.
func ageDays(now, t time.Time) float64 {
	return now.Sub(t).Hours() / 24
}
